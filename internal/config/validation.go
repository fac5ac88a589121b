package config

import (
	"fmt"
	"strings"

	"github.com/skittixch/GeminiTrader-sub000/internal/scheduler"
)

func validate(c *Config) error {
	mode := strings.ToLower(strings.TrimSpace(c.Exchange.Mode))
	switch mode {
	case "live", "sim":
	default:
		return fmt.Errorf("exchange.mode must be live or sim, got %q", c.Exchange.Mode)
	}
	if strings.TrimSpace(c.Exchange.Symbol) == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if mode == "live" {
		if c.Exchange.APIKey == "" || c.Exchange.Secret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required in live mode")
		}
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Trading.CycleInterval); !ok {
		return fmt.Errorf("trading.cycle_interval %q is not a valid interval", c.Trading.CycleInterval)
	}
	if c.Trading.GridSpacingPct >= 1 {
		return fmt.Errorf("trading.grid_spacing_pct must be a fraction below 1, got %v", c.Trading.GridSpacingPct)
	}
	if c.Trading.TakeProfitPct >= 1 {
		return fmt.Errorf("trading.take_profit_pct must be a fraction below 1, got %v", c.Trading.TakeProfitPct)
	}
	if c.Risk.MinProfitRatio < 0 {
		return fmt.Errorf("risk.min_profit_ratio must not be negative")
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
