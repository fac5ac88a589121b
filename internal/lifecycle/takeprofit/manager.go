// Package takeprofit keeps the ledger's single exit order in line with the
// planned target: at most one SELL sized to the whole position, replaced
// only when the plan moves by more than half a filter increment. Anything
// closer is float recomputation noise and not worth losing queue position
// over.
package takeprofit

import (
	"context"
	"fmt"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

// Manager converges the take-profit slot each cycle.
type Manager struct {
	gw  exchange.OrderGateway
	now func() time.Time
}

func New(gw exchange.OrderGateway) *Manager {
	return &Manager{gw: gw, now: time.Now}
}

// Apply ensures the ledger holds the correct take-profit order for
// targetPrice, or none. A zero target, a flat position, or an active
// cascade all mean "no take-profit order". Transient gateway errors leave
// the ledger unchanged; the same convergence reruns next cycle.
func (m *Manager) Apply(ctx context.Context, l *ledger.Ledger, targetPrice float64) error {
	// The cascade engine owns the exit while it is working the position.
	if l.Cascade != nil {
		return m.ensureAbsent(ctx, l)
	}
	if targetPrice <= 0 || l.Position.Flat() {
		return m.ensureAbsent(ctx, l)
	}

	flt, err := m.gw.SymbolFilters(ctx)
	if err != nil {
		return fmt.Errorf("takeprofit: fetching symbol filters: %w", err)
	}
	price, qty, err := flt.AdjustAndValidate(targetPrice, l.Position.Quantity)
	if err != nil {
		// An invalid target never goes on the book; clearing any stale order
		// is safer than leaving one priced off a broken plan.
		logger.Warnf("takeprofit: target %.8f x %.8f fails filters, clearing: %v", targetPrice, l.Position.Quantity, err)
		return m.ensureAbsent(ctx, l)
	}

	if cur := l.TakeProfit; cur != nil {
		if flt.WithinPriceTolerance(cur.Price, price) && flt.WithinQuantityTolerance(cur.Quantity, qty) {
			return nil
		}
		if err := m.cancel(ctx, l, *cur); err != nil {
			return err
		}
	}

	o := ledger.NewTakeProfitOrder(price, qty, m.now())
	placed, err := m.gw.PlaceLimitOrder(ctx, ledger.SideSell, price, qty, o.ClientID)
	if err != nil {
		return fmt.Errorf("takeprofit: placing %.8f x %.8f: %w", price, qty, err)
	}
	o.ExchangeID = placed.ExchangeID
	o.Status = placed.Status
	if err := l.SetTakeProfit(o); err != nil {
		// Should be unreachable: the cascade guard ran above. Pull the order
		// back rather than leave it untracked.
		if cerr := m.gw.CancelOrder(ctx, exchange.Ref(o)); cerr != nil && !exchange.IsInactive(cerr) {
			logger.Errorf("takeprofit: cancel of untracked order %s failed: %v", o.ClientID, cerr)
		}
		return fmt.Errorf("takeprofit: registering order: %w", err)
	}
	logger.Infof("takeprofit: working %.8f x %.8f (%s)", price, qty, o.ClientID)
	return nil
}

func (m *Manager) ensureAbsent(ctx context.Context, l *ledger.Ledger) error {
	cur := l.TakeProfit
	if cur == nil {
		return nil
	}
	return m.cancel(ctx, l, *cur)
}

func (m *Manager) cancel(ctx context.Context, l *ledger.Ledger, o ledger.Order) error {
	err := m.gw.CancelOrder(ctx, exchange.Ref(o))
	if err != nil && !exchange.IsInactive(err) {
		return fmt.Errorf("takeprofit: cancelling %s: %w", o.ClientID, err)
	}
	l.ClearTakeProfit()
	return nil
}
