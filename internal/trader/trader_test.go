package trader

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/sim"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/cascade"
	"github.com/skittixch/GeminiTrader-sub000/internal/market"
	"github.com/skittixch/GeminiTrader-sub000/internal/statestore"
	"github.com/skittixch/GeminiTrader-sub000/internal/store/journal"
)

// scriptFeed replays a fixed candle sequence, repeating the last bar once
// the script runs out.
type scriptFeed struct {
	candles []market.Candle
	i       int
}

func bar(low, high, close float64) market.Candle {
	now := time.Now().UnixMilli()
	return market.Candle{OpenTime: now, CloseTime: now, Open: close, High: high, Low: low, Close: close}
}

func (f *scriptFeed) Next(context.Context) (market.Candle, error) {
	if f.i >= len(f.candles) {
		return f.candles[len(f.candles)-1], nil
	}
	c := f.candles[f.i]
	f.i++
	return c, nil
}

type fixture struct {
	trader *Trader
	gw     *sim.Gateway
	ledger *ledger.Ledger
	store  *statestore.Store
}

func newFixture(t *testing.T, feed CandleFeed, risk RiskPolicy) *fixture {
	t.Helper()
	flt := filters.SymbolFilters{Symbol: "BTCUSDT", TickSize: 0.01, StepSize: 0.001, MinNotional: 5}
	start := bar(100, 100, 100)
	gw := sim.New("BTCUSDT", flt, start)
	l := ledger.New("BTCUSDT", 10000)
	store, err := statestore.New(filepath.Join(t.TempDir(), "state.json"), 1)
	require.NoError(t, err)

	tr, err := New(Deps{
		Symbol:  "BTCUSDT",
		Gateway: gw,
		Ledger:  l,
		Store:   store,
		Planner: LadderPlanner{
			Levels:        3,
			SpacingPct:    0.01,
			LevelQuote:    100,
			TakeProfitPct: 0.01,
		},
		Risk:       risk,
		Cascade:    cascade.Config{EscalateAfter: time.Minute},
		SimGateway: gw,
		Feed:       feed,
	})
	require.NoError(t, err)
	return &fixture{trader: tr, gw: gw, ledger: l, store: store}
}

func TestNewRequiresCoreDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestNewRequiresFeedWithSimGateway(t *testing.T) {
	flt := filters.SymbolFilters{Symbol: "BTCUSDT", TickSize: 0.01}
	gw := sim.New("BTCUSDT", flt, bar(100, 100, 100))
	store, err := statestore.New(filepath.Join(t.TempDir(), "state.json"), 1)
	require.NoError(t, err)

	_, err = New(Deps{
		Symbol:     "BTCUSDT",
		Gateway:    gw,
		Ledger:     ledger.New("BTCUSDT", 10000),
		Store:      store,
		Planner:    LadderPlanner{Levels: 1, SpacingPct: 0.01, LevelQuote: 100},
		SimGateway: gw, // no Feed
	})
	require.Error(t, err)
}

func TestCyclePlacesInitialGrid(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{bar(99.5, 100.5, 100)}}
	f := newFixture(t, feed, RiskPolicy{})

	require.NoError(t, f.trader.Cycle(context.Background()))

	snap := f.trader.Snapshot()
	assert.Len(t, snap.GridOrders, 3)
	assert.Nil(t, snap.TakeProfit)
	assert.True(t, snap.Position.Flat())

	open, err := f.gw.ListOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 3)

	// The cycle persisted a snapshot.
	restored, found, err := f.store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, restored.GridOrders, 3)
}

func TestCycleFillOpensPositionAndPlacesExit(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{
		bar(99.5, 100.5, 100), // place the grid
		bar(98.5, 99.5, 99),   // dip through the top rung
	}}
	f := newFixture(t, feed, RiskPolicy{})
	ctx := context.Background()

	require.NoError(t, f.trader.Cycle(ctx))
	require.NoError(t, f.trader.Cycle(ctx))

	snap := f.trader.Snapshot()
	assert.False(t, snap.Position.Flat())
	assert.InDelta(t, 98.99, snap.Position.EntryPrice, 1e-9)
	assert.Less(t, snap.QuoteBalance, 10000.0)
	assert.Positive(t, snap.BaseBalance)

	require.NotNil(t, snap.TakeProfit)
	assert.Greater(t, snap.TakeProfit.Price, snap.Position.EntryPrice)
	assert.InDelta(t, snap.Position.Quantity, snap.TakeProfit.Quantity, 1e-9)

	// The grid was replenished to the full ladder below the entry.
	assert.Len(t, snap.GridOrders, 3)
}

func TestCycleRoundTripReturnsToFlat(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{
		bar(99.5, 100.5, 100),  // place the grid
		bar(98.5, 99.5, 99),    // buy fill at 98.99
		bar(99.5, 101, 100.5),  // take-profit fills on the rally
	}}
	f := newFixture(t, feed, RiskPolicy{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.trader.Cycle(ctx))
	}

	snap := f.trader.Snapshot()
	assert.True(t, snap.Position.Flat())
	assert.Nil(t, snap.TakeProfit)
	assert.InDelta(t, 0, snap.BaseBalance, 1e-9)
	// Bought at 98.99, sold one percent higher: the round trip nets out
	// positive.
	assert.Greater(t, snap.QuoteBalance, 10000.0)
	assert.Equal(t, cascade.StateInactive, f.trader.CascadeState())
}

func TestCycleTimeStopArmsCascadeAndTearsDownGrid(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{
		bar(99.5, 100.5, 100),
		bar(98.5, 99.5, 99), // open the position
		bar(98.5, 99.5, 99), // stagnate
	}}
	f := newFixture(t, feed, RiskPolicy{MaxHold: 30 * time.Minute, MinProfitRatio: 0.001})
	ctx := context.Background()

	require.NoError(t, f.trader.Cycle(ctx))
	require.NoError(t, f.trader.Cycle(ctx))

	// Age the position past the time stop.
	stale := time.Now().Add(-time.Hour)
	f.ledger.Position.EntryTime = &stale

	require.NoError(t, f.trader.Cycle(ctx))

	snap := f.trader.Snapshot()
	assert.Equal(t, cascade.StateInitial, f.trader.CascadeState())
	require.NotNil(t, snap.Cascade)
	assert.Nil(t, snap.TakeProfit, "take-profit must be gone before the cascade works")
	assert.Empty(t, snap.GridOrders, "no buying while force-exiting")

	// Only the cascade sell remains on the book.
	open, err := f.gw.ListOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, ledger.SideSell, open[0].Side)
	assert.Equal(t, snap.Cascade.ClientID, open[0].ClientID)
}

func TestCycleCascadeFillResolvesExit(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{
		bar(99.5, 100.5, 100),
		bar(98.5, 99.5, 99),
		bar(98.5, 99.5, 99),
		bar(98.5, 101, 100), // the cascade sell above the bid gets taken
	}}
	f := newFixture(t, feed, RiskPolicy{MaxHold: 30 * time.Minute, MinProfitRatio: 0.001})
	ctx := context.Background()

	require.NoError(t, f.trader.Cycle(ctx))
	require.NoError(t, f.trader.Cycle(ctx))
	stale := time.Now().Add(-time.Hour)
	f.ledger.Position.EntryTime = &stale
	require.NoError(t, f.trader.Cycle(ctx))
	require.Equal(t, cascade.StateInitial, f.trader.CascadeState())

	require.NoError(t, f.trader.Cycle(ctx))

	snap := f.trader.Snapshot()
	assert.True(t, snap.Position.Flat())
	assert.Nil(t, snap.Cascade)
	assert.Equal(t, cascade.StateResolved, f.trader.CascadeState())
}

func TestCycleJournalsLifecycleActions(t *testing.T) {
	feed := &scriptFeed{candles: []market.Candle{
		bar(99.5, 100.5, 100), // initial grid
		bar(98.5, 99.5, 99),   // buy fill, exit placed, grid replenished
		bar(98.5, 99.5, 99),   // time-stop: cascade triggers and escalates
		bar(98.5, 99.5, 99),   // the aggressive sell gets taken
	}}
	flt := filters.SymbolFilters{Symbol: "BTCUSDT", TickSize: 0.01, StepSize: 0.001, MinNotional: 5}
	gw := sim.New("BTCUSDT", flt, bar(100, 100, 100))
	l := ledger.New("BTCUSDT", 10000)
	store, err := statestore.New(filepath.Join(t.TempDir(), "state.json"), 1)
	require.NoError(t, err)
	jr, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jr.Close() })

	tr, err := New(Deps{
		Symbol:  "BTCUSDT",
		Gateway: gw,
		Ledger:  l,
		Store:   store,
		Planner: LadderPlanner{
			Levels:        3,
			SpacingPct:    0.01,
			LevelQuote:    100,
			TakeProfitPct: 0.01,
		},
		Risk:    RiskPolicy{MaxHold: 30 * time.Minute, MinProfitRatio: 0.001},
		Cascade: cascade.Config{EscalateAfter: time.Nanosecond},
		Journal: jr,

		SimGateway: gw,
		Feed:       feed,
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tr.Cycle(ctx))
	require.NoError(t, tr.Cycle(ctx))
	stale := time.Now().Add(-time.Hour)
	l.Position.EntryTime = &stale
	require.NoError(t, tr.Cycle(ctx))
	require.Equal(t, cascade.StateAggressive, tr.CascadeState())
	require.NoError(t, tr.Cycle(ctx))
	require.Equal(t, cascade.StateResolved, tr.CascadeState())

	actions, err := jr.RecentActions(ctx, 50)
	require.NoError(t, err)
	byAction := map[string]int{}
	for _, a := range actions {
		byAction[a.Action]++
	}
	// Three grid rungs, one replenished rung and the take-profit went out;
	// the take-profit and the three rungs came down for the cascade.
	assert.Equal(t, 5, byAction[journal.ActionPlace])
	assert.Equal(t, 4, byAction[journal.ActionCancel])
	assert.Equal(t, 1, byAction[journal.ActionCascadeTrigger])
	assert.Equal(t, 1, byAction[journal.ActionCascadeEscalate])
	assert.Equal(t, 1, byAction[journal.ActionCascadeResolve])

	fills, err := jr.RecentFills(ctx, 50)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, string(ledger.KindCascade), fills[0].Kind)
	assert.Equal(t, string(ledger.KindGrid), fills[1].Kind)
}

func TestRestartAdoptsCascadeFromLedger(t *testing.T) {
	flt := filters.SymbolFilters{Symbol: "BTCUSDT", TickSize: 0.01, StepSize: 0.001, MinNotional: 5}
	gw := sim.New("BTCUSDT", flt, bar(100, 100, 100))
	l := ledger.New("BTCUSDT", 10000)
	buy := ledger.NewGridOrder(99, 1, time.Now())
	require.NoError(t, l.AddGridOrder(buy))
	l.ApplyFill(buy, time.Now())
	require.NoError(t, l.SetCascade(ledger.NewCascadeOrder(100.01, 1, time.Now())))
	store, err := statestore.New(filepath.Join(t.TempDir(), "state.json"), 1)
	require.NoError(t, err)

	tr, err := New(Deps{
		Symbol:     "BTCUSDT",
		Gateway:    gw,
		Ledger:     l,
		Store:      store,
		Planner:    LadderPlanner{Levels: 3, SpacingPct: 0.01, LevelQuote: 100, TakeProfitPct: 0.01},
		SimGateway: gw,
		Feed:       &scriptFeed{candles: []market.Candle{bar(99.5, 100, 100)}},
	})
	require.NoError(t, err)

	assert.Equal(t, cascade.StateInitial, tr.CascadeState())
}

func TestLadderPlannerSpacesLevelsBelowBid(t *testing.T) {
	p := LadderPlanner{Levels: 3, SpacingPct: 0.01, LevelQuote: 100, TakeProfitPct: 0.015}
	l := ledger.New("BTCUSDT", 10000)

	levels, err := p.PlanGrid(context.Background(), l, exchange.BookTop{Bid: 100, Ask: 100.02})
	require.NoError(t, err)

	require.Len(t, levels, 3)
	assert.InDelta(t, 99, levels[0].Price, 1e-9)
	assert.InDelta(t, 98.01, levels[1].Price, 1e-9)
	assert.InDelta(t, 97.0299, levels[2].Price, 1e-9)
	for _, lvl := range levels {
		assert.InDelta(t, 100, lvl.Price*lvl.Quantity, 1e-6)
	}
}

func TestLadderPlannerAnchorsToEntryWhenHolding(t *testing.T) {
	p := LadderPlanner{Levels: 1, SpacingPct: 0.01, LevelQuote: 100}
	l := ledger.New("BTCUSDT", 10000)
	buy := ledger.NewGridOrder(95, 1, time.Now())
	require.NoError(t, l.AddGridOrder(buy))
	l.ApplyFill(buy, time.Now())

	// The price rebounded above the entry; the ladder stays anchored below
	// the entry instead of chasing the bid up.
	levels, err := p.PlanGrid(context.Background(), l, exchange.BookTop{Bid: 100})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.InDelta(t, 95*0.99, levels[0].Price, 1e-9)
}

func TestLadderPlannerTakeProfit(t *testing.T) {
	p := LadderPlanner{TakeProfitPct: 0.015}
	l := ledger.New("BTCUSDT", 10000)

	target, err := p.PlanTakeProfit(context.Background(), l)
	require.NoError(t, err)
	assert.Zero(t, target, "flat position plans no exit")

	buy := ledger.NewGridOrder(100, 1, time.Now())
	require.NoError(t, l.AddGridOrder(buy))
	l.ApplyFill(buy, time.Now())

	target, err = p.PlanTakeProfit(context.Background(), l)
	require.NoError(t, err)
	assert.InDelta(t, 101.5, target, 1e-9)
}
