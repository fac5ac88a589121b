// Package cascade forces a position out once the risk control decides it
// has overstayed. The engine runs a small state machine:
//
//	INACTIVE -> INITIAL -> AGGRESSIVE -> RESOLVED
//
// INITIAL rests a maker sell a few ticks above the best bid; if it has not
// filled within the escalation window the engine cancels it and reposts a
// taker sell below the best bid. There is intentionally no further step: if
// the aggressive order also fails to fill the engine simply keeps waiting.
// A market-order last resort is a known gap, left out on purpose.
package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

// State names one stage of the exit escalation.
type State string

const (
	StateInactive   State = "INACTIVE"
	StateInitial    State = "INITIAL"
	StateAggressive State = "AGGRESSIVE"
	StateResolved   State = "RESOLVED"
)

// Config tunes the two pricing steps.
type Config struct {
	// MakerTicksAboveBid prices the INITIAL order this many ticks above the
	// best bid: queued ahead of the market without crossing the spread.
	MakerTicksAboveBid int
	// TakerTicksBelowBid prices the AGGRESSIVE order this many ticks below
	// the best bid, deliberately crossing so it fills immediately.
	TakerTicksBelowBid int
	// EscalateAfter is how long INITIAL may rest unfilled before the engine
	// escalates.
	EscalateAfter time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MakerTicksAboveBid <= 0 {
		out.MakerTicksAboveBid = 2
	}
	if out.TakerTicksBelowBid <= 0 {
		out.TakerTicksBelowBid = 5
	}
	if out.EscalateAfter <= 0 {
		out.EscalateAfter = 90 * time.Second
	}
	return out
}

// Engine drives the escalation. It is owned by the cycle loop and never
// called concurrently.
type Engine struct {
	gw  exchange.OrderGateway
	cfg Config
	now func() time.Time

	state        State
	enteredAt    time.Time
	initialPrice float64
}

func New(gw exchange.OrderGateway, cfg Config) *Engine {
	return &Engine{gw: gw, cfg: cfg.withDefaults(), now: time.Now, state: StateInactive}
}

// State returns the current stage.
func (e *Engine) State() State { return e.state }

// Active reports whether an escalation is in flight.
func (e *Engine) Active() bool {
	return e.state == StateInitial || e.state == StateAggressive
}

// Adopt rebuilds engine state after a restart: a cascade order surviving in
// the reloaded ledger means an escalation was in flight. The stage restarts
// at INITIAL with the order's placement time, so an overdue escalation fires
// on the next step.
func (e *Engine) Adopt(l *ledger.Ledger) {
	if l.Cascade == nil {
		e.state = StateInactive
		return
	}
	e.state = StateInitial
	e.enteredAt = l.Cascade.CreatedAt
	e.initialPrice = l.Cascade.Price
	logger.Infof("cascade: adopted in-flight exit order %s at %.8f", l.Cascade.ClientID, l.Cascade.Price)
}

// Trigger starts the escalation for the ledger's full position. The
// take-profit order must already be gone; the two exits never coexist. A
// failure leaves the engine INACTIVE so the trigger retries next cycle.
func (e *Engine) Trigger(ctx context.Context, l *ledger.Ledger) error {
	if e.state != StateInactive && e.state != StateResolved {
		return nil
	}
	if l.Position.Flat() {
		return nil
	}
	if l.TakeProfit != nil {
		return fmt.Errorf("cascade: take-profit still active, refusing to trigger")
	}

	flt, err := e.gw.SymbolFilters(ctx)
	if err != nil {
		return fmt.Errorf("cascade: fetching symbol filters: %w", err)
	}
	top, err := e.gw.BestBidAsk(ctx)
	if err != nil {
		return fmt.Errorf("cascade: fetching book top: %w", err)
	}

	raw := top.Bid + float64(e.cfg.MakerTicksAboveBid)*flt.TickSize
	price := flt.AdjustPrice(raw)
	qty := flt.AdjustQuantity(l.Position.Quantity)
	if err := flt.Validate(price, qty); err != nil {
		return fmt.Errorf("cascade: initial order fails filters: %w", err)
	}

	o := ledger.NewCascadeOrder(price, qty, e.now())
	placed, err := e.gw.PlaceLimitOrder(ctx, ledger.SideSell, price, qty, o.ClientID)
	if err != nil {
		return fmt.Errorf("cascade: placing initial order: %w", err)
	}
	o.ExchangeID = placed.ExchangeID
	o.Status = placed.Status
	if err := l.SetCascade(o); err != nil {
		if cerr := e.gw.CancelOrder(ctx, exchange.Ref(o)); cerr != nil && !exchange.IsInactive(cerr) {
			logger.Errorf("cascade: cancel of untracked order %s failed: %v", o.ClientID, cerr)
		}
		return fmt.Errorf("cascade: registering initial order: %w", err)
	}

	e.state = StateInitial
	e.enteredAt = e.now()
	e.initialPrice = price
	logger.Infof("cascade: INITIAL maker exit %.8f x %.8f (bid %.8f +%d ticks)", price, qty, top.Bid, e.cfg.MakerTicksAboveBid)
	return nil
}

// Step advances the machine once per cycle. Resolution (fill or flat
// position through any path) is detected first; otherwise an overdue
// INITIAL order escalates. A failed escalation leaves INITIAL standing so
// the attempt repeats.
func (e *Engine) Step(ctx context.Context, l *ledger.Ledger) error {
	if !e.Active() {
		return nil
	}
	if l.ResolveCascade() {
		logger.Infof("cascade: resolved (position flat or exit order gone)")
		e.state = StateResolved
		e.initialPrice = 0
		return nil
	}
	if e.state != StateInitial {
		return nil
	}
	if e.now().Sub(e.enteredAt) < e.cfg.EscalateAfter {
		return nil
	}
	return e.escalate(ctx, l)
}

func (e *Engine) escalate(ctx context.Context, l *ledger.Ledger) error {
	cur := l.Cascade
	if cur == nil {
		return nil
	}
	flt, err := e.gw.SymbolFilters(ctx)
	if err != nil {
		return fmt.Errorf("cascade: fetching symbol filters: %w", err)
	}
	top, err := e.gw.BestBidAsk(ctx)
	if err != nil {
		return fmt.Errorf("cascade: fetching book top: %w", err)
	}

	raw := top.Bid - float64(e.cfg.TakerTicksBelowBid)*flt.TickSize
	price := flt.AdjustPrice(raw)
	// The aggressive price must undercut the maker attempt even if the bid
	// has run up since.
	if price >= e.initialPrice && flt.TickSize > 0 {
		price = flt.AdjustPrice(e.initialPrice - flt.TickSize)
	}
	qty := flt.AdjustQuantity(l.Position.Quantity)
	if err := flt.Validate(price, qty); err != nil {
		return fmt.Errorf("cascade: aggressive order fails filters, staying in INITIAL: %w", err)
	}

	cerr := e.gw.CancelOrder(ctx, exchange.Ref(*cur))
	if cerr != nil && !exchange.IsInactive(cerr) {
		return fmt.Errorf("cascade: cancelling initial order: %w", cerr)
	}
	if exchange.IsInactive(cerr) {
		// The maker order resolved while we were deciding; let the fill
		// detector settle it before anything new goes out.
		logger.Infof("cascade: initial order already inactive, deferring to fill detection")
		return nil
	}
	l.ClearCascade()

	o := ledger.NewCascadeOrder(price, qty, e.now())
	placed, err := e.gw.PlaceLimitOrder(ctx, ledger.SideSell, price, qty, o.ClientID)
	if err != nil {
		// The old order is gone and the new one failed: the slot stays empty
		// and the position unprotected until the next cycle retriggers.
		e.state = StateInactive
		return fmt.Errorf("cascade: placing aggressive order: %w", err)
	}
	o.ExchangeID = placed.ExchangeID
	o.Status = placed.Status
	if err := l.SetCascade(o); err != nil {
		e.state = StateInactive
		return fmt.Errorf("cascade: registering aggressive order: %w", err)
	}

	e.state = StateAggressive
	e.enteredAt = e.now()
	logger.Infof("cascade: AGGRESSIVE taker exit %.8f x %.8f (bid %.8f -%d ticks)", price, qty, top.Bid, e.cfg.TakerTicksBelowBid)
	return nil
}
