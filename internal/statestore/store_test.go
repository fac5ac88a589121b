package statestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
)

func sampleLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New("BTCUSDT", 1000)
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, l.AddGridOrder(ledger.NewGridOrder(100, 0.5, now)))
	require.NoError(t, l.AddGridOrder(ledger.NewGridOrder(99, 0.5, now)))
	buy := ledger.NewGridOrder(98, 1, now)
	require.NoError(t, l.AddGridOrder(buy))
	l.ApplyFill(buy, now)
	require.NoError(t, l.SetTakeProfit(ledger.NewTakeProfitOrder(101, 1, now)))
	return l
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 2)
	require.NoError(t, err)

	l := sampleLedger(t)
	require.NoError(t, s.Save(l))

	got, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, l.Symbol, got.Symbol)
	assert.Len(t, got.GridOrders, 2)
	require.NotNil(t, got.TakeProfit)
	assert.Equal(t, 101.0, got.TakeProfit.Price)
	assert.InDelta(t, l.QuoteBalance, got.QuoteBalance, 1e-9)
	assert.InDelta(t, 1, got.Position.Quantity, 1e-9)
	require.NotNil(t, got.Position.EntryTime)
}

func TestLoadMissingIsFreshStart(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "state.json"), 2)
	require.NoError(t, err)

	l, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, l)
}

func TestSaveRotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 2)
	require.NoError(t, err)

	l := sampleLedger(t)
	require.NoError(t, s.Save(l))
	require.NoError(t, s.Save(l))
	require.NoError(t, s.Save(l))
	require.NoError(t, s.Save(l))

	assert.FileExists(t, path)
	assert.FileExists(t, path+".bak1")
	assert.FileExists(t, path+".bak2")
	assert.NoFileExists(t, path+".bak3")
}

func TestLoadFallsBackToBackupOnCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 2)
	require.NoError(t, err)

	l := sampleLedger(t)
	require.NoError(t, s.Save(l))
	require.NoError(t, s.Save(l))

	// Truncate the primary mid-document.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	got, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "BTCUSDT", got.Symbol)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 0)
	require.NoError(t, err)

	// Valid JSON, wrong shape: side outside the enum.
	bad := `{"version":1,"saved_at":"2026-01-01T00:00:00Z","ledger":{
		"symbol":"BTCUSDT",
		"grid_orders":[{"kind":"grid","side":"SHORT","price":1,"quantity":1,
			"client_id":"x","status":"NEW",
			"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}],
		"position":{"quantity":0,"entry_price":0},
		"quote_balance":0,"base_balance":0,
		"updated_at":"2026-01-01T00:00:00Z"}}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	l, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, l)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 0)
	require.NoError(t, err)

	l := sampleLedger(t)
	require.NoError(t, s.Save(l))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	bumped := strings.Replace(string(data), `"version": 1`, `"version": 99`, 1)
	require.NotEqual(t, string(data), bumped)
	require.NoError(t, os.WriteFile(path, []byte(bumped), 0o644))

	got, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestAllCopiesCorruptIsFreshStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 1)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(path+".bak1", []byte("{"), 0o644))

	l, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, l)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, 1)
	require.NoError(t, err)

	require.NoError(t, s.Save(sampleLedger(t)))
	assert.NoFileExists(t, path+".tmp")
}
