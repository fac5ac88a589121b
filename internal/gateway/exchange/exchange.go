// Package exchange defines the order-gateway abstraction the lifecycle
// components talk to. Implementations are the live Binance gateway and the
// candle-driven simulator; the core never sees which one it has.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
)

var (
	// ErrOrderNotFound is returned by GetOrder when the exchange has no
	// record of the order.
	ErrOrderNotFound = errors.New("order not found on exchange")
	// ErrAlreadyInactive is returned by CancelOrder when the order was
	// already filled, cancelled or expired. Callers treat this as a
	// successful cancel.
	ErrAlreadyInactive = errors.New("order already inactive")
)

// IsNotFound reports whether err means the exchange does not know the order.
func IsNotFound(err error) bool { return errors.Is(err, ErrOrderNotFound) }

// IsInactive reports whether a cancel failed only because the order was
// already done.
func IsInactive(err error) bool { return errors.Is(err, ErrAlreadyInactive) }

// OrderRef identifies an order for cancel/status calls. The locally
// generated client id is preferred; the exchange id is the fallback for
// orders adopted from a reload.
type OrderRef struct {
	ClientID   string
	ExchangeID string
}

// Ref builds an OrderRef from a ledger order.
func Ref(o ledger.Order) OrderRef {
	return OrderRef{ClientID: o.ClientID, ExchangeID: o.ExchangeID}
}

// Order is the exchange-side order record.
type Order struct {
	Symbol      string
	Side        ledger.Side
	Price       float64
	Quantity    float64
	ExecutedQty float64
	ClientID    string
	ExchangeID  string
	Status      ledger.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookTop is the current best bid and ask.
type BookTop struct {
	Bid float64
	Ask float64
}

// OrderGateway is the full surface the lifecycle core consumes. Calls are
// synchronous; timeout and retry policy live inside the implementation.
type OrderGateway interface {
	// PlaceLimitOrder submits a GTC limit order under the given client id.
	PlaceLimitOrder(ctx context.Context, side ledger.Side, price, qty float64, clientID string) (Order, error)

	// CancelOrder cancels by reference. Returns ErrAlreadyInactive (possibly
	// wrapped) when the order is already in a terminal state.
	CancelOrder(ctx context.Context, ref OrderRef) error

	// GetOrder fetches the current order record, ErrOrderNotFound when the
	// exchange has no trace of it.
	GetOrder(ctx context.Context, ref OrderRef) (Order, error)

	// ListOpenOrders returns every order currently open for the symbol.
	ListOpenOrders(ctx context.Context) ([]Order, error)

	// BestBidAsk returns the top of book.
	BestBidAsk(ctx context.Context) (BookTop, error)

	// SymbolFilters returns the trading rules for the symbol.
	SymbolFilters(ctx context.Context) (filters.SymbolFilters, error)
}
