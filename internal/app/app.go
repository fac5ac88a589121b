// Package app assembles the trader from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/skittixch/GeminiTrader-sub000/internal/config"
	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/binance"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/sim"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/cascade"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
	"github.com/skittixch/GeminiTrader-sub000/internal/market"
	"github.com/skittixch/GeminiTrader-sub000/internal/metrics"
	"github.com/skittixch/GeminiTrader-sub000/internal/notifier"
	"github.com/skittixch/GeminiTrader-sub000/internal/scheduler"
	"github.com/skittixch/GeminiTrader-sub000/internal/statestore"
	"github.com/skittixch/GeminiTrader-sub000/internal/store/journal"
	"github.com/skittixch/GeminiTrader-sub000/internal/trader"
	httpserver "github.com/skittixch/GeminiTrader-sub000/internal/transport/http"
)

// App holds the assembled components.
type App struct {
	cfg      *config.Config
	cfgPath  string
	interval time.Duration
	trader   *trader.Trader
	server   *httpserver.Server
	journal  *journal.Store
}

// New builds everything from cfg. cfgPath is kept for the hot-reload
// watcher and may be empty.
func New(cfg *config.Config, cfgPath string) (*App, error) {
	interval, ok := scheduler.ParseIntervalDuration(cfg.Trading.CycleInterval)
	if !ok {
		return nil, fmt.Errorf("app: bad cycle interval %q", cfg.Trading.CycleInterval)
	}

	store, err := statestore.New(cfg.State.Path, cfg.State.Backups)
	if err != nil {
		return nil, err
	}
	l, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	if found {
		logger.Infof("app: restored ledger: position %.8f @ %.8f, %d grid orders",
			l.Position.Quantity, l.Position.EntryPrice, len(l.GridOrders))
	} else {
		logger.Infof("app: no prior state, starting a fresh ledger for %s", cfg.Exchange.Symbol)
		l = ledger.New(strings.ToUpper(cfg.Exchange.Symbol), cfg.Trading.InitialQuoteBalance)
	}

	gw, simGw, feed, err := buildGateway(cfg, interval)
	if err != nil {
		return nil, err
	}

	var jr *journal.Store
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	set := metrics.New(reg)

	var note notifier.Notifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		note = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	tr, err := trader.New(trader.Deps{
		Symbol:  l.Symbol,
		Gateway: gw,
		Ledger:  l,
		Store:   store,
		Planner: trader.LadderPlanner{
			Levels:        cfg.Trading.GridLevels,
			SpacingPct:    cfg.Trading.GridSpacingPct,
			LevelQuote:    cfg.Trading.LevelQuote,
			TakeProfitPct: cfg.Trading.TakeProfitPct,
		},
		Risk: trader.RiskPolicy{
			MaxHold:        time.Duration(cfg.Risk.MaxHoldMinutes) * time.Minute,
			MinProfitRatio: cfg.Risk.MinProfitRatio,
		},
		Cascade: cascade.Config{
			MakerTicksAboveBid: cfg.Risk.Cascade.MakerTicksAboveBid,
			TakerTicksBelowBid: cfg.Risk.Cascade.TakerTicksBelowBid,
			EscalateAfter:      time.Duration(cfg.Risk.Cascade.EscalateAfterSeconds) * time.Second,
		},
		Journal:    jr,
		Metrics:    set,
		Notifier:   note,
		SimGateway: simGw,
		Feed:       feed,
	})
	if err != nil {
		return nil, err
	}

	var server *httpserver.Server
	if cfg.App.HTTPAddr != "" {
		server = httpserver.New(cfg.App.HTTPAddr, tr.Snapshot, func() string {
			return string(tr.CascadeState())
		}, jr, reg)
	}

	return &App{
		cfg:      cfg,
		cfgPath:  cfgPath,
		interval: interval,
		trader:   tr,
		server:   server,
		journal:  jr,
	}, nil
}

func buildGateway(cfg *config.Config, interval time.Duration) (exchange.OrderGateway, *sim.Gateway, *sim.WalkFeed, error) {
	symbol := strings.ToUpper(strings.TrimSpace(cfg.Exchange.Symbol))
	switch strings.ToLower(cfg.Exchange.Mode) {
	case "live":
		gw, err := binance.New(binance.Config{
			Symbol:       symbol,
			APIKey:       cfg.Exchange.APIKey,
			APISecret:    cfg.Exchange.Secret,
			RESTBaseURL:  cfg.Exchange.BaseURL,
			HTTPTimeout:  time.Duration(cfg.Exchange.HTTPTimeoutSeconds) * time.Second,
			ProxyEnabled: cfg.Exchange.ProxyEnabled,
			RESTProxyURL: cfg.Exchange.ProxyURL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return gw, nil, nil, nil
	case "sim":
		simCfg := cfg.Exchange.Sim
		flt := filters.SymbolFilters{
			Symbol:      symbol,
			TickSize:    simCfg.TickSize,
			StepSize:    simCfg.StepSize,
			MinNotional: simCfg.MinNotional,
		}
		now := time.Now().UnixMilli()
		start := market.Candle{
			OpenTime:  now,
			CloseTime: now,
			Open:      simCfg.StartPrice,
			High:      simCfg.StartPrice,
			Low:       simCfg.StartPrice,
			Close:     simCfg.StartPrice,
		}
		gw := sim.New(symbol, flt, start)
		feed := sim.NewWalkFeed(simCfg.StartPrice, simCfg.DriftPct, simCfg.RangePct, interval, time.Now().UnixNano())
		return gw, gw, feed, nil
	default:
		return nil, nil, nil, fmt.Errorf("app: unknown exchange mode %q", cfg.Exchange.Mode)
	}
}

// Run drives the cycle loop, the HTTP server and the config watcher until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.journal != nil {
			if err := a.journal.Close(); err != nil {
				logger.Warnf("app: closing journal: %v", err)
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Every(ctx, a.interval, a.trader.Cycle, func(err error) {
			logger.Errorf("app: cycle failed: %v", err)
		})
	})

	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(ctx)
		})
	}

	if a.cfgPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.cfgPath, func(fresh *config.Config) {
				logger.SetLevel(fresh.App.LogLevel)
			})
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
