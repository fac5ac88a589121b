// Package trader owns the per-cycle control flow: detect fills, settle
// them, check the risk control, converge the grid and the exit order, and
// snapshot the ledger after every step that changed it. Everything runs on
// one goroutine; the only concurrent access is read-only snapshots for the
// HTTP layer, guarded by a mutex.
package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/sim"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/cascade"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/fill"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/grid"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/takeprofit"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
	"github.com/skittixch/GeminiTrader-sub000/internal/market"
	"github.com/skittixch/GeminiTrader-sub000/internal/metrics"
	"github.com/skittixch/GeminiTrader-sub000/internal/notifier"
	"github.com/skittixch/GeminiTrader-sub000/internal/statestore"
	"github.com/skittixch/GeminiTrader-sub000/internal/store/journal"
)

// RiskPolicy is the time-stop that arms the cascade: a position held past
// MaxHold whose unrealized profit is still under MinProfitRatio gets forced
// out.
type RiskPolicy struct {
	MaxHold        time.Duration
	MinProfitRatio float64
}

// CandleFeed supplies the next market bar in simulation mode.
type CandleFeed interface {
	Next(ctx context.Context) (market.Candle, error)
}

// Deps wires a Trader. Gateway, Ledger, Store and Planner are required;
// Journal, Metrics and Notifier may be nil.
type Deps struct {
	Symbol   string
	Gateway  exchange.OrderGateway
	Ledger   *ledger.Ledger
	Store    *statestore.Store
	Planner  Planner
	Risk     RiskPolicy
	Cascade  cascade.Config
	Journal  *journal.Store
	Metrics  *metrics.Set
	Notifier notifier.Notifier

	// SimGateway and Feed drive the market in simulation mode; both nil in
	// live mode.
	SimGateway *sim.Gateway
	Feed       CandleFeed
}

// Trader runs the lifecycle cycle.
type Trader struct {
	mu sync.Mutex

	symbol   string
	gw       exchange.OrderGateway
	ledger   *ledger.Ledger
	store    *statestore.Store
	planner  Planner
	risk     RiskPolicy
	journal  *journal.Store
	metrics  *metrics.Set
	notify   notifier.Notifier
	simGw    *sim.Gateway
	feed     CandleFeed
	detector *fill.Detector
	grid     *grid.Reconciler
	tp       *takeprofit.Manager
	cascade  *cascade.Engine
	now      func() time.Time
}

func New(d Deps) (*Trader, error) {
	if d.Gateway == nil || d.Ledger == nil || d.Store == nil || d.Planner == nil {
		return nil, fmt.Errorf("trader: gateway, ledger, store and planner are required")
	}
	if (d.SimGateway == nil) != (d.Feed == nil) {
		return nil, fmt.Errorf("trader: sim gateway and candle feed must be set together")
	}
	n := d.Notifier
	if n == nil {
		n = notifier.Noop{}
	}
	t := &Trader{
		symbol:   d.Symbol,
		gw:       d.Gateway,
		ledger:   d.Ledger,
		store:    d.Store,
		planner:  d.Planner,
		risk:     d.Risk,
		journal:  d.Journal,
		metrics:  d.Metrics,
		notify:   n,
		simGw:    d.SimGateway,
		feed:     d.Feed,
		detector: fill.New(d.Gateway),
		grid:     grid.New(d.Gateway),
		tp:       takeprofit.New(d.Gateway),
		cascade:  cascade.New(d.Gateway, d.Cascade),
		now:      time.Now,
	}
	// A cascade order surviving a restart means an escalation was in flight.
	t.cascade.Adopt(d.Ledger)
	return t, nil
}

// Snapshot returns a deep copy of the ledger for concurrent readers.
func (t *Trader) Snapshot() *ledger.Ledger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Clone()
}

// CascadeState exposes the escalation stage for the HTTP layer and metrics.
func (t *Trader) CascadeState() cascade.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cascade.State()
}

// Cycle runs one full pass. Errors inside a step are recovered locally and
// logged; Cycle itself fails only on context cancellation or a dead candle
// feed.
func (t *Trader) Cycle(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := t.now()
	defer func() {
		if t.metrics != nil {
			t.metrics.CycleDuration.Observe(t.now().Sub(start).Seconds())
			t.metrics.ObserveLedger(t.ledger, t.cascade.Active())
		}
	}()

	// 1. Fills.
	fills, err := t.detectFills(ctx)
	if err != nil {
		return err
	}
	for _, f := range fills {
		t.settleFill(ctx, f)
	}
	if len(fills) > 0 {
		t.persist("fills")
	}

	// 2. Risk control.
	if t.checkRiskTrigger(ctx) {
		t.persist("cascade-trigger")
	}

	// 3. Grid and/or cascade.
	if t.cascade.Active() {
		t.stepCascade(ctx)
		// While the cascade works the exit, the buy grid comes down; adding
		// to a position we are force-exiting makes no sense.
		t.runReconcile(ctx, nil)
	} else {
		top, err := t.gw.BestBidAsk(ctx)
		if err != nil {
			logger.Warnf("trader: fetching book top, skipping grid pass: %v", err)
		} else {
			target, err := t.planner.PlanGrid(ctx, t.ledger, top)
			if err != nil {
				logger.Warnf("trader: grid planning failed: %v", err)
			} else {
				t.runReconcile(ctx, target)
			}
		}
	}
	t.persist("reconcile")

	// 4. Take-profit.
	var tpTarget float64
	if !t.cascade.Active() {
		tpTarget, err = t.planner.PlanTakeProfit(ctx, t.ledger)
		if err != nil {
			logger.Warnf("trader: take-profit planning failed: %v", err)
			tpTarget = 0
		}
	}
	if err := t.applyTakeProfit(ctx, tpTarget); err != nil {
		logger.Warnf("trader: take-profit pass: %v", err)
	}
	t.persist("takeprofit")

	return nil
}

func (t *Trader) detectFills(ctx context.Context) ([]ledger.Order, error) {
	if t.simGw != nil {
		c, err := t.feed.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("trader: candle feed: %w", err)
		}
		t.simGw.Advance(c)
		return t.detector.ScanCandle(t.ledger, c), nil
	}
	return t.detector.PollExchange(ctx, t.ledger), nil
}

func (t *Trader) settleFill(ctx context.Context, f ledger.Order) {
	at := t.now()
	t.ledger.ApplyFill(f, at)
	logger.Infof("trader: %s %s filled %.8f x %.8f", f.Kind, f.Side, f.Price, f.Quantity)
	if t.metrics != nil {
		t.metrics.Fills.WithLabelValues(string(f.Kind)).Inc()
	}
	if t.journal != nil {
		if err := t.journal.RecordFill(ctx, t.symbol, f, at); err != nil {
			logger.Warnf("trader: journaling fill: %v", err)
		}
	}
	if err := t.notify.SendText(fmt.Sprintf("%s fill: %s %.8f x %.8f (%s)", t.symbol, f.Side, f.Price, f.Quantity, f.Kind)); err != nil {
		logger.Debugf("trader: notify failed: %v", err)
	}
}

// checkRiskTrigger arms the cascade when the time-stop fires. Returns true
// when the ledger changed.
func (t *Trader) checkRiskTrigger(ctx context.Context) bool {
	if t.cascade.Active() || t.ledger.Position.Flat() {
		return false
	}
	held := t.ledger.Position.HeldFor(t.now())
	if t.risk.MaxHold <= 0 || held < t.risk.MaxHold {
		return false
	}
	top, err := t.gw.BestBidAsk(ctx)
	if err != nil {
		logger.Warnf("trader: risk check needs book top, retrying next cycle: %v", err)
		return false
	}
	ratio := t.ledger.Position.UnrealizedRatio(top.Bid)
	if ratio >= t.risk.MinProfitRatio {
		return false
	}
	logger.Warnf("trader: time-stop fired: held %s, pnl %.4f < %.4f, forcing exit", held, ratio, t.risk.MinProfitRatio)

	// The cascade replaces the take-profit path; clear it first.
	if err := t.applyTakeProfit(ctx, 0); err != nil {
		logger.Warnf("trader: clearing take-profit before cascade: %v", err)
		return false
	}
	if err := t.cascade.Trigger(ctx, t.ledger); err != nil {
		logger.Warnf("trader: cascade trigger: %v", err)
		return false
	}
	if t.ledger.Cascade != nil {
		t.journalAction(ctx, journal.ActionCascadeTrigger, *t.ledger.Cascade, fmt.Sprintf("held=%s pnl=%.4f", held, ratio))
	}
	if err := t.notify.SendText(fmt.Sprintf("%s time-stop: forcing exit after %s (pnl %.2f%%)", t.symbol, held.Round(time.Minute), ratio*100)); err != nil {
		logger.Debugf("trader: notify failed: %v", err)
	}
	return true
}

// applyTakeProfit runs the exit pass and journals the cancel/place it
// produced. The diff runs over the ledger slot, so only what actually
// happened on the exchange is recorded.
func (t *Trader) applyTakeProfit(ctx context.Context, target float64) error {
	var prev ledger.Order
	had := t.ledger.TakeProfit != nil
	if had {
		prev = *t.ledger.TakeProfit
	}
	err := t.tp.Apply(ctx, t.ledger, target)
	cur := t.ledger.TakeProfit
	if had && (cur == nil || cur.ClientID != prev.ClientID) {
		t.journalAction(ctx, journal.ActionCancel, prev, "")
	}
	if cur != nil && (!had || cur.ClientID != prev.ClientID) {
		t.journalAction(ctx, journal.ActionPlace, *cur, "")
	}
	return err
}

// stepCascade advances the escalation and journals the stage transition the
// step produced, if any.
func (t *Trader) stepCascade(ctx context.Context) {
	before := t.cascade.State()
	var prev ledger.Order
	if t.ledger.Cascade != nil {
		prev = *t.ledger.Cascade
	}
	if err := t.cascade.Step(ctx, t.ledger); err != nil {
		logger.Warnf("trader: cascade step: %v", err)
	}
	switch after := t.cascade.State(); {
	case after == cascade.StateAggressive && before == cascade.StateInitial && t.ledger.Cascade != nil:
		t.journalAction(ctx, journal.ActionCascadeEscalate, *t.ledger.Cascade, fmt.Sprintf("replaced %s at %.8f", prev.ClientID, prev.Price))
	case after == cascade.StateResolved && before != cascade.StateResolved:
		t.journalAction(ctx, journal.ActionCascadeResolve, prev, "")
	}
}

func (t *Trader) runReconcile(ctx context.Context, target []grid.Level) {
	sum, err := t.grid.Reconcile(ctx, t.ledger, target)
	if err != nil {
		logger.Warnf("trader: grid reconcile aborted: %v", err)
		if t.metrics != nil {
			t.metrics.ReconcileErrors.Inc()
		}
		return
	}
	if sum.Placed > 0 || sum.Cancelled > 0 || sum.Purged > 0 || sum.FailedPlace > 0 || sum.FailedCancel > 0 {
		logger.Infof("trader: grid reconciled: placed=%d cancelled=%d unchanged=%d purged=%d foreign=%d failed_place=%d failed_cancel=%d",
			sum.Placed, sum.Cancelled, sum.Unchanged, sum.Purged, sum.Foreign, sum.FailedPlace, sum.FailedCancel)
	}
	if t.metrics != nil {
		t.metrics.OrdersPlaced.WithLabelValues(string(ledger.KindGrid)).Add(float64(sum.Placed))
		t.metrics.OrdersCancelled.WithLabelValues(string(ledger.KindGrid)).Add(float64(sum.Cancelled))
	}
	for _, o := range sum.PlacedOrders {
		t.journalAction(ctx, journal.ActionPlace, o, "")
	}
	for _, o := range sum.CancelledOrders {
		t.journalAction(ctx, journal.ActionCancel, o, "")
	}
	for _, o := range sum.PurgedOrders {
		t.journalAction(ctx, journal.ActionPurge, o, "not open on exchange")
	}
}

// journalAction writes one audit row; journal failures never stall the
// cycle.
func (t *Trader) journalAction(ctx context.Context, action string, o ledger.Order, detail string) {
	if t.journal == nil {
		return
	}
	if err := t.journal.RecordAction(ctx, t.symbol, action, o, detail); err != nil {
		logger.Warnf("trader: journaling %s: %v", action, err)
	}
}

// persist snapshots the ledger; failures are logged and the loop carries
// on, losing at most this step's mutations on a crash.
func (t *Trader) persist(step string) {
	if err := t.store.Save(t.ledger); err != nil {
		logger.Errorf("trader: persisting after %s failed: %v", step, err)
	}
}
