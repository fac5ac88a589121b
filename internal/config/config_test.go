package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
exchange:
  symbol: BTCUSDT
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "sim", cfg.Exchange.Mode)
	assert.Equal(t, "BTCUSDT", cfg.Exchange.Symbol)
	assert.Equal(t, "1m", cfg.Trading.CycleInterval)
	assert.Equal(t, 3, cfg.Trading.GridLevels)
	assert.Equal(t, 2, cfg.Risk.Cascade.MakerTicksAboveBid)
	assert.Equal(t, 5, cfg.Risk.Cascade.TakerTicksBelowBid)
	assert.Equal(t, 90, cfg.Risk.Cascade.EscalateAfterSeconds)
	assert.Equal(t, "data/state.json", cfg.State.Path)
	assert.Equal(t, 3, cfg.State.Backups)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  log_level: debug
  http_addr: ":9090"
exchange:
  mode: sim
  symbol: ethusdt
  sim:
    start_price: 3000
trading:
  cycle_interval: 30s
  grid_levels: 5
  grid_spacing_pct: 0.004
risk:
  max_hold_minutes: 120
  cascade:
    escalate_after_seconds: 45
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9090", cfg.App.HTTPAddr)
	assert.Equal(t, 3000.0, cfg.Exchange.Sim.StartPrice)
	assert.Equal(t, "30s", cfg.Trading.CycleInterval)
	assert.Equal(t, 5, cfg.Trading.GridLevels)
	assert.Equal(t, 0.004, cfg.Trading.GridSpacingPct)
	assert.Equal(t, 120, cfg.Risk.MaxHoldMinutes)
	assert.Equal(t, 45, cfg.Risk.Cascade.EscalateAfterSeconds)
}

func TestLoadRejectsMissingSymbol(t *testing.T) {
	_, err := Load(writeConfig(t, `
exchange:
  mode: sim
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

func TestLoadRejectsBadMode(t *testing.T) {
	_, err := Load(writeConfig(t, `
exchange:
  mode: paper
  symbol: BTCUSDT
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestLoadLiveModeRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
exchange:
  mode: live
  symbol: BTCUSDT
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
exchange:
  symbol: BTCUSDT
trading:
  cycle_interval: soon
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle_interval")
}

func TestLoadRejectsIncompleteTelegram(t *testing.T) {
	_, err := Load(writeConfig(t, `
exchange:
  symbol: BTCUSDT
notify:
  telegram:
    enabled: true
    bot_token: abc
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GEMINITRADER_EXCHANGE_API_KEY", "env-key")
	t.Setenv("GEMINITRADER_EXCHANGE_API_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, `
exchange:
  mode: live
  symbol: BTCUSDT
`))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.Secret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	_, err = Load("")
	require.Error(t, err)
}

func TestEffectiveYAMLMasksSecrets(t *testing.T) {
	t.Setenv("GEMINITRADER_EXCHANGE_API_KEY", "supersecretkey123")
	t.Setenv("GEMINITRADER_EXCHANGE_API_SECRET", "anothersecret456")

	cfg, err := Load(writeConfig(t, `
exchange:
  mode: live
  symbol: BTCUSDT
`))
	require.NoError(t, err)

	out, err := cfg.EffectiveYAML()
	require.NoError(t, err)
	s := string(out)
	assert.NotContains(t, s, "supersecretkey123")
	assert.NotContains(t, s, "anothersecret456")
	assert.Contains(t, s, "BTCUSDT")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("abcd"))
	assert.Equal(t, "ab******89", mask("ab34567889"))
}
