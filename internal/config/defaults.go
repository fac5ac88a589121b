package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Exchange.Mode == "" {
		c.Exchange.Mode = "sim"
	}
	if c.Exchange.HTTPTimeoutSeconds <= 0 {
		c.Exchange.HTTPTimeoutSeconds = 15
	}
	if c.Exchange.Sim.TickSize <= 0 {
		c.Exchange.Sim.TickSize = 0.01
	}
	if c.Exchange.Sim.StepSize <= 0 {
		c.Exchange.Sim.StepSize = 0.0001
	}
	if c.Exchange.Sim.StartPrice <= 0 {
		c.Exchange.Sim.StartPrice = 100
	}
	if c.Exchange.Sim.RangePct <= 0 {
		c.Exchange.Sim.RangePct = 0.005
	}
	if c.Trading.CycleInterval == "" {
		c.Trading.CycleInterval = "1m"
	}
	if c.Trading.InitialQuoteBalance <= 0 {
		c.Trading.InitialQuoteBalance = 10000
	}
	if c.Trading.GridLevels <= 0 {
		c.Trading.GridLevels = 3
	}
	if c.Trading.GridSpacingPct <= 0 {
		c.Trading.GridSpacingPct = 0.01
	}
	if c.Trading.LevelQuote <= 0 {
		c.Trading.LevelQuote = 100
	}
	if c.Trading.TakeProfitPct <= 0 {
		c.Trading.TakeProfitPct = 0.015
	}
	if c.Risk.MaxHoldMinutes <= 0 {
		c.Risk.MaxHoldMinutes = 24 * 60
	}
	if c.Risk.Cascade.MakerTicksAboveBid <= 0 {
		c.Risk.Cascade.MakerTicksAboveBid = 2
	}
	if c.Risk.Cascade.TakerTicksBelowBid <= 0 {
		c.Risk.Cascade.TakerTicksBelowBid = 5
	}
	if c.Risk.Cascade.EscalateAfterSeconds <= 0 {
		c.Risk.Cascade.EscalateAfterSeconds = 90
	}
	if c.State.Path == "" {
		c.State.Path = "data/state.json"
	}
	if c.State.Backups <= 0 {
		c.State.Backups = 3
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal.db"
	}
}
