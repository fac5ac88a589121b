// Package ledger holds the in-memory record of a single position and the
// exchange orders working it: the buy grid, the lone take-profit order and
// the lone cascade-exit order. Every other subsystem mutates trading state
// exclusively through this package.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status mirrors the exchange order-status vocabulary.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusExpired         Status = "EXPIRED"
	StatusRejected        Status = "REJECTED"
	StatusUnknown         Status = "UNKNOWN"
)

// Kind discriminates what role an order plays in the ledger. Orders are
// tagged at construction; the role never changes.
type Kind string

const (
	KindGrid       Kind = "grid"
	KindTakeProfit Kind = "take_profit"
	KindCascade    Kind = "cascade"
)

// Disposition is the ledger-level classification of a status.
type Disposition int

const (
	// DispositionActive means the order is still working on the book.
	DispositionActive Disposition = iota
	// DispositionFilled means the order executed in full.
	DispositionFilled
	// DispositionInactive means the order is done without a full fill
	// (cancelled, expired, rejected, or in an unknown terminal state).
	DispositionInactive
)

// Classify maps a status onto its disposition. All status interpretation in
// the fill detector and reconciler goes through here.
func Classify(s Status) Disposition {
	switch s {
	case StatusNew, StatusPartiallyFilled:
		return DispositionActive
	case StatusFilled:
		return DispositionFilled
	default:
		return DispositionInactive
	}
}

// Order is one exchange order tracked by the ledger. Price and quantity are
// fixed at construction; any change is modeled as cancel-then-place. Only
// Status (and the exchange id, once the order is accepted) mutate.
type Order struct {
	Kind       Kind      `json:"kind"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	ClientID   string    `json:"client_id"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Notional is price times quantity.
func (o Order) Notional() float64 { return o.Price * o.Quantity }

// Active reports whether the order still works on the book.
func (o Order) Active() bool { return Classify(o.Status) == DispositionActive }

// NewClientID returns a fresh locally-generated client order id. UUID
// strings are 36 characters, the maximum the exchange accepts.
func NewClientID() string { return uuid.NewString() }

func newOrder(kind Kind, side Side, price, qty float64, now time.Time) Order {
	return Order{
		Kind:      kind,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		ClientID:  NewClientID(),
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewGridOrder builds an unsubmitted grid BUY order.
func NewGridOrder(price, qty float64, now time.Time) Order {
	return newOrder(KindGrid, SideBuy, price, qty, now)
}

// NewTakeProfitOrder builds an unsubmitted take-profit SELL order.
func NewTakeProfitOrder(price, qty float64, now time.Time) Order {
	return newOrder(KindTakeProfit, SideSell, price, qty, now)
}

// NewCascadeOrder builds an unsubmitted cascade-exit SELL order.
func NewCascadeOrder(price, qty float64, now time.Time) Order {
	return newOrder(KindCascade, SideSell, price, qty, now)
}
