// Package grid converges the ledger's working buy grid onto a freshly
// planned target. Levels are keyed by price: a working order at a price the
// plan no longer contains is cancelled, a planned price with no working
// order gets one placed, and matching prices are left alone. Quantity
// drift at a matching price is deliberately not corrected; replacing a
// live order over a size delta costs queue position for no benefit.
package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

// Level is one planned grid rung.
type Level struct {
	Price    float64
	Quantity float64
}

// Summary reports what one reconciliation pass did.
type Summary struct {
	Placed       int `json:"placed"`
	Cancelled    int `json:"cancelled"`
	Unchanged    int `json:"unchanged"`
	FailedPlace  int `json:"failed_place"`
	FailedCancel int `json:"failed_cancel"`
	// Purged counts ledger orders dropped because the exchange no longer
	// listed them, before the diff ran.
	Purged int `json:"purged"`
	// Foreign counts open exchange orders the ledger does not know. They are
	// logged and left untouched.
	Foreign int `json:"foreign"`

	// The orders behind the counts, for the audit journal.
	PlacedOrders    []ledger.Order `json:"-"`
	CancelledOrders []ledger.Order `json:"-"`
	PurgedOrders    []ledger.Order `json:"-"`
}

// Reconciler issues the minimal cancel/place set against the gateway.
type Reconciler struct {
	gw  exchange.OrderGateway
	now func() time.Time
}

func New(gw exchange.OrderGateway) *Reconciler {
	return &Reconciler{gw: gw, now: time.Now}
}

// Reconcile first squares the ledger against the exchange's open-order list,
// then applies the price-keyed diff. The returned error is non-nil only when
// the authoritative open-order list could not be fetched; in that case
// nothing was mutated and the whole pass reruns next cycle.
func (r *Reconciler) Reconcile(ctx context.Context, l *ledger.Ledger, target []Level) (Summary, error) {
	var sum Summary

	open, err := r.gw.ListOpenOrders(ctx)
	if err != nil {
		return sum, fmt.Errorf("grid: listing open orders: %w", err)
	}
	r.syncLedger(l, open, &sum)

	flt, err := r.gw.SymbolFilters(ctx)
	if err != nil {
		return sum, fmt.Errorf("grid: fetching symbol filters: %w", err)
	}

	// Working orders hold filter-adjusted prices; round the plan onto the
	// tick grid first so the diff keys match what was actually placed.
	target = alignTarget(target, flt)

	r.cancelStale(ctx, l, target, &sum)
	for _, o := range l.GridOrders {
		if levelAt(target, o.Price) != nil {
			sum.Unchanged++
		}
	}
	r.placeMissing(ctx, l, target, flt, &sum)

	return sum, nil
}

func alignTarget(target []Level, flt filters.SymbolFilters) []Level {
	out := make([]Level, 0, len(target))
	for _, lvl := range target {
		out = append(out, Level{Price: flt.AdjustPrice(lvl.Price), Quantity: lvl.Quantity})
	}
	return out
}

// syncLedger purges ledger grid orders the exchange no longer lists (they
// filled or were cancelled out-of-band; the fill detector had its chance
// first) and flags open exchange orders the ledger never placed. Unknown
// orders are never adopted; acting on an order we cannot attribute is worse
// than leaving it alone.
func (r *Reconciler) syncLedger(l *ledger.Ledger, open []exchange.Order, sum *Summary) {
	byClient := make(map[string]exchange.Order, len(open))
	byExchange := make(map[string]exchange.Order, len(open))
	for _, o := range open {
		if o.ClientID != "" {
			byClient[o.ClientID] = o
		}
		if o.ExchangeID != "" {
			byExchange[o.ExchangeID] = o
		}
	}

	for _, o := range append([]ledger.Order(nil), l.GridOrders...) {
		if _, ok := byClient[o.ClientID]; ok {
			continue
		}
		if o.ExchangeID != "" {
			if _, ok := byExchange[o.ExchangeID]; ok {
				continue
			}
		}
		logger.Warnf("grid: ledger order %s (%.8f x %.8f) not open on exchange, purging", o.ClientID, o.Price, o.Quantity)
		l.Remove(o.ClientID)
		sum.Purged++
		sum.PurgedOrders = append(sum.PurgedOrders, o)
	}

	for _, o := range open {
		if l.FindByClientID(o.ClientID) != nil || l.FindByExchangeID(o.ExchangeID) != nil {
			continue
		}
		logger.Warnf("grid: exchange lists unknown order %s/%s (%s %.8f x %.8f), leaving alone", o.ClientID, o.ExchangeID, o.Side, o.Price, o.Quantity)
		sum.Foreign++
	}
}

func (r *Reconciler) cancelStale(ctx context.Context, l *ledger.Ledger, target []Level, sum *Summary) {
	for _, o := range append([]ledger.Order(nil), l.GridOrders...) {
		if levelAt(target, o.Price) != nil {
			continue
		}
		err := r.gw.CancelOrder(ctx, exchange.Ref(o))
		switch {
		case err == nil:
			l.Remove(o.ClientID)
			sum.Cancelled++
			sum.CancelledOrders = append(sum.CancelledOrders, o)
		case exchange.IsInactive(err):
			// Already gone counts as cancelled.
			l.Remove(o.ClientID)
			sum.Cancelled++
			sum.CancelledOrders = append(sum.CancelledOrders, o)
		default:
			logger.Warnf("grid: cancelling stale level %.8f failed, retrying next cycle: %v", o.Price, err)
			sum.FailedCancel++
		}
	}
}

func (r *Reconciler) placeMissing(ctx context.Context, l *ledger.Ledger, target []Level, flt filters.SymbolFilters, sum *Summary) {
	for _, lvl := range target {
		if l.GridOrderAt(lvl.Price) != nil {
			continue
		}
		price, qty, err := flt.AdjustAndValidate(lvl.Price, lvl.Quantity)
		if err != nil {
			logger.Warnf("grid: level %.8f x %.8f rejected by filters: %v", lvl.Price, lvl.Quantity, err)
			sum.FailedPlace++
			continue
		}
		o := ledger.NewGridOrder(price, qty, r.now())
		placed, err := r.gw.PlaceLimitOrder(ctx, ledger.SideBuy, price, qty, o.ClientID)
		if err != nil {
			logger.Warnf("grid: placing level %.8f failed: %v", price, err)
			sum.FailedPlace++
			continue
		}
		o.ExchangeID = placed.ExchangeID
		o.Status = placed.Status
		if err := l.AddGridOrder(o); err != nil {
			// Placement went out but the ledger refused the record; cancel to
			// avoid an untracked live order.
			logger.Errorf("grid: ledger rejected placed level %.8f, cancelling: %v", price, err)
			if cerr := r.gw.CancelOrder(ctx, exchange.Ref(o)); cerr != nil && !exchange.IsInactive(cerr) {
				logger.Errorf("grid: cancel of untracked order %s failed: %v", o.ClientID, cerr)
			}
			sum.FailedPlace++
			continue
		}
		sum.Placed++
		sum.PlacedOrders = append(sum.PlacedOrders, o)
	}
}

func levelAt(target []Level, price float64) *Level {
	for i := range target {
		if filters.SamePrice(target[i].Price, price) {
			return &target[i]
		}
	}
	return nil
}
