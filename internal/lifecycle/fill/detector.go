// Package fill resolves the ledger's working orders against reported
// reality: candle crossings in simulation, status polling against the
// exchange when live. The detector only mutates the ledger's order set;
// settling balances and the position is the caller's job.
package fill

import (
	"context"

	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
	"github.com/skittixch/GeminiTrader-sub000/internal/market"
)

// StatusSource is the slice of the gateway the detector needs in live mode.
type StatusSource interface {
	GetOrder(ctx context.Context, ref exchange.OrderRef) (exchange.Order, error)
}

// Detector finds orders that reached a terminal state and removes them from
// the ledger.
type Detector struct {
	src StatusSource
}

func New(src StatusSource) *Detector {
	return &Detector{src: src}
}

// ScanCandle applies simulation fill semantics: a BUY fills when the bar's
// low touches its price, a SELL when the bar's high does, always at the
// limit price. Filled orders are removed from the ledger and returned.
func (d *Detector) ScanCandle(l *ledger.Ledger, c market.Candle) []ledger.Order {
	var fills []ledger.Order
	for _, o := range l.ActiveOrders() {
		if !crossedBar(o, c) {
			continue
		}
		o.Status = ledger.StatusFilled
		l.Remove(o.ClientID)
		fills = append(fills, o)
	}
	return fills
}

func crossedBar(o ledger.Order, c market.Candle) bool {
	switch o.Side {
	case ledger.SideBuy:
		return c.Low <= o.Price
	case ledger.SideSell:
		return c.High >= o.Price
	}
	return false
}

// PollExchange applies live fill semantics by querying each working order.
// FILLED orders are removed and reported; orders the exchange considers
// done without a fill (cancelled, expired, rejected, unknown, not found)
// are removed silently; a query error on one order leaves it in place for
// the next cycle and never blocks the rest of the batch.
func (d *Detector) PollExchange(ctx context.Context, l *ledger.Ledger) []ledger.Order {
	var fills []ledger.Order
	for _, o := range l.ActiveOrders() {
		res, err := d.src.GetOrder(ctx, exchange.Ref(o))
		if err != nil {
			if exchange.IsNotFound(err) {
				logger.Infof("fill: order %s (%s %s@%.8f) gone from exchange, dropping", o.ClientID, o.Kind, o.Side, o.Price)
				l.Remove(o.ClientID)
				continue
			}
			logger.Warnf("fill: status query for %s failed, retrying next cycle: %v", o.ClientID, err)
			continue
		}
		switch ledger.Classify(res.Status) {
		case ledger.DispositionFilled:
			o.Status = ledger.StatusFilled
			o.ExchangeID = res.ExchangeID
			l.Remove(o.ClientID)
			fills = append(fills, o)
		case ledger.DispositionInactive:
			logger.Infof("fill: order %s resolved as %s without fill, dropping", o.ClientID, res.Status)
			l.Remove(o.ClientID)
		default:
			// Still working; keep the status fresh.
			if tracked := l.FindByClientID(o.ClientID); tracked != nil {
				tracked.Status = res.Status
				tracked.ExchangeID = res.ExchangeID
			}
		}
	}
	return fills
}
