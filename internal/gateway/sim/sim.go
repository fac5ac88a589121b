// Package sim is an in-process exchange used for dry runs and tests. Orders
// rest in a book keyed by client id and fill when an advancing OHLC bar
// crosses their limit price; fills execute at the limit with no slippage.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/market"
)

// Gateway implements exchange.OrderGateway against synthetic market data.
type Gateway struct {
	symbol string
	flt    filters.SymbolFilters

	mu     sync.Mutex
	open   map[string]exchange.Order
	done   map[string]exchange.Order
	last   market.Candle
	nextID int64
}

func New(symbol string, flt filters.SymbolFilters, start market.Candle) *Gateway {
	return &Gateway{
		symbol: symbol,
		flt:    flt,
		open:   make(map[string]exchange.Order),
		done:   make(map[string]exchange.Order),
		last:   start,
	}
}

// Advance moves the simulated market to the next bar and settles every
// resting order the bar crossed. The newly filled orders are returned so a
// driver can assert on them; the fill detector re-derives the same set from
// the ledger.
func (g *Gateway) Advance(c market.Candle) []exchange.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = c
	var fills []exchange.Order
	for id, o := range g.open {
		if !crossed(o, c) {
			continue
		}
		o.Status = ledger.StatusFilled
		o.ExecutedQty = o.Quantity
		o.UpdatedAt = time.UnixMilli(c.CloseTime)
		g.done[id] = o
		delete(g.open, id)
		fills = append(fills, o)
	}
	return fills
}

// LastCandle returns the bar the market currently sits on.
func (g *Gateway) LastCandle() market.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func crossed(o exchange.Order, c market.Candle) bool {
	switch o.Side {
	case ledger.SideBuy:
		return c.Low <= o.Price
	case ledger.SideSell:
		return c.High >= o.Price
	}
	return false
}

func (g *Gateway) PlaceLimitOrder(_ context.Context, side ledger.Side, price, qty float64, clientID string) (exchange.Order, error) {
	if err := g.flt.Validate(price, qty); err != nil {
		return exchange.Order{}, fmt.Errorf("sim place: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.open[clientID]; exists {
		return exchange.Order{}, fmt.Errorf("sim place: duplicate client id %s", clientID)
	}
	g.nextID++
	now := time.UnixMilli(g.last.CloseTime)
	o := exchange.Order{
		Symbol:     g.symbol,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		ClientID:   clientID,
		ExchangeID: strconv.FormatInt(g.nextID, 10),
		Status:     ledger.StatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	g.open[clientID] = o
	return o, nil
}

func (g *Gateway) CancelOrder(_ context.Context, ref exchange.OrderRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.lookupLocked(ref, g.open)
	if !ok {
		// Already filled, cancelled, or never seen: all count as inactive.
		return exchange.ErrAlreadyInactive
	}
	o.Status = ledger.StatusCanceled
	o.UpdatedAt = time.UnixMilli(g.last.CloseTime)
	g.done[o.ClientID] = o
	delete(g.open, o.ClientID)
	return nil
}

func (g *Gateway) GetOrder(_ context.Context, ref exchange.OrderRef) (exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.lookupLocked(ref, g.open); ok {
		return o, nil
	}
	if o, ok := g.lookupLocked(ref, g.done); ok {
		return o, nil
	}
	return exchange.Order{}, exchange.ErrOrderNotFound
}

func (g *Gateway) ListOpenOrders(_ context.Context) ([]exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]exchange.Order, 0, len(g.open))
	for _, o := range g.open {
		out = append(out, o)
	}
	return out, nil
}

// BestBidAsk synthesizes a one-tick spread around the last close.
func (g *Gateway) BestBidAsk(_ context.Context) (exchange.BookTop, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tick := g.flt.TickSize
	if tick <= 0 {
		tick = g.last.Close * 0.0001
	}
	return exchange.BookTop{
		Bid: g.last.Close - tick,
		Ask: g.last.Close + tick,
	}, nil
}

func (g *Gateway) SymbolFilters(_ context.Context) (filters.SymbolFilters, error) {
	return g.flt, nil
}

func (g *Gateway) lookupLocked(ref exchange.OrderRef, book map[string]exchange.Order) (exchange.Order, bool) {
	if ref.ClientID != "" {
		o, ok := book[ref.ClientID]
		return o, ok
	}
	if ref.ExchangeID != "" {
		for _, o := range book {
			if o.ExchangeID == ref.ExchangeID {
				return o, true
			}
		}
	}
	return exchange.Order{}, false
}
