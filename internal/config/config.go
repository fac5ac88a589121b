// Package config loads and validates the trader configuration from a YAML
// file, with environment-variable overrides for credentials.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads the config file at path, applies env overrides
// (GEMINITRADER_EXCHANGE_API_KEY etc.), fills defaults and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GEMINITRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about; credentials
	// are usually absent from the file, so bind them explicitly.
	for _, key := range []string{
		"exchange.api_key",
		"exchange.api_secret",
		"notify.telegram.bot_token",
		"notify.telegram.chat_id",
	} {
		_ = v.BindEnv(key)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EffectiveYAML renders the loaded configuration with secrets masked, for
// the -dump-config flag and startup logging.
func (c *Config) EffectiveYAML() ([]byte, error) {
	redacted := *c
	redacted.Exchange.APIKey = mask(redacted.Exchange.APIKey)
	redacted.Exchange.Secret = mask(redacted.Exchange.Secret)
	redacted.Notify.Telegram.BotToken = mask(redacted.Notify.Telegram.BotToken)
	return yaml.Marshal(redacted)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
