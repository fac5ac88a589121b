package config

// Config is the full runtime configuration of the trader.
type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading" yaml:"trading"`
	Risk     RiskConfig     `mapstructure:"risk" yaml:"risk"`
	State    StateConfig    `mapstructure:"state" yaml:"state"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
}

type AppConfig struct {
	Env      string `mapstructure:"env" yaml:"env"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogPath  string `mapstructure:"log_path" yaml:"log_path"`
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
}

// ExchangeConfig selects and parameterizes the order gateway. Mode is
// "live" (Binance spot) or "sim" (candle-driven in-process exchange).
type ExchangeConfig struct {
	Mode    string `mapstructure:"mode" yaml:"mode"`
	Symbol  string `mapstructure:"symbol" yaml:"symbol"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Secret  string `mapstructure:"api_secret" yaml:"api_secret"`
	BaseURL string `mapstructure:"rest_base_url" yaml:"rest_base_url"`

	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds" yaml:"http_timeout_seconds"`
	ProxyEnabled       bool   `mapstructure:"proxy_enabled" yaml:"proxy_enabled"`
	ProxyURL           string `mapstructure:"proxy_url" yaml:"proxy_url"`

	Sim SimConfig `mapstructure:"sim" yaml:"sim"`
}

// SimConfig provides the trading rules and seed price the simulator cannot
// fetch from a real exchange.
type SimConfig struct {
	TickSize    float64 `mapstructure:"tick_size" yaml:"tick_size"`
	StepSize    float64 `mapstructure:"step_size" yaml:"step_size"`
	MinNotional float64 `mapstructure:"min_notional" yaml:"min_notional"`
	StartPrice  float64 `mapstructure:"start_price" yaml:"start_price"`
	DriftPct    float64 `mapstructure:"drift_pct" yaml:"drift_pct"`
	RangePct    float64 `mapstructure:"range_pct" yaml:"range_pct"`
}

type TradingConfig struct {
	CycleInterval       string  `mapstructure:"cycle_interval" yaml:"cycle_interval"`
	InitialQuoteBalance float64 `mapstructure:"initial_quote_balance" yaml:"initial_quote_balance"`
	GridLevels          int     `mapstructure:"grid_levels" yaml:"grid_levels"`
	GridSpacingPct      float64 `mapstructure:"grid_spacing_pct" yaml:"grid_spacing_pct"`
	LevelQuote          float64 `mapstructure:"level_quote" yaml:"level_quote"`
	TakeProfitPct       float64 `mapstructure:"take_profit_pct" yaml:"take_profit_pct"`
}

// RiskConfig controls the forced-exit trigger and the cascade pricing.
type RiskConfig struct {
	MaxHoldMinutes int     `mapstructure:"max_hold_minutes" yaml:"max_hold_minutes"`
	MinProfitRatio float64 `mapstructure:"min_profit_ratio" yaml:"min_profit_ratio"`

	Cascade CascadeConfig `mapstructure:"cascade" yaml:"cascade"`
}

type CascadeConfig struct {
	MakerTicksAboveBid   int `mapstructure:"maker_ticks_above_bid" yaml:"maker_ticks_above_bid"`
	TakerTicksBelowBid   int `mapstructure:"taker_ticks_below_bid" yaml:"taker_ticks_below_bid"`
	EscalateAfterSeconds int `mapstructure:"escalate_after_seconds" yaml:"escalate_after_seconds"`
}

type StateConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Backups int    `mapstructure:"backups" yaml:"backups"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}
