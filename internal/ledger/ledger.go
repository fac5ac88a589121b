package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/filters"
)

var (
	// ErrExitConflict guards the take-profit / cascade mutual exclusion.
	ErrExitConflict = errors.New("take-profit and cascade orders are mutually exclusive")
	// ErrDuplicateLevel rejects a second grid order at an existing price.
	ErrDuplicateLevel = errors.New("grid level already present at price")
	// ErrWrongKind rejects an order registered under the wrong slot.
	ErrWrongKind = errors.New("order kind does not match slot")
)

// Ledger is the single source of truth for one symbol's trading state. It is
// owned by the cycle loop and never accessed concurrently; methods keep the
// structural invariants and leave persistence to the caller.
type Ledger struct {
	Symbol       string    `json:"symbol"`
	GridOrders   []Order   `json:"grid_orders"`
	TakeProfit   *Order    `json:"take_profit,omitempty"`
	Cascade      *Order    `json:"cascade,omitempty"`
	Position     Position  `json:"position"`
	QuoteBalance float64   `json:"quote_balance"`
	BaseBalance  float64   `json:"base_balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New returns an empty ledger with the given starting quote balance.
func New(symbol string, quoteBalance float64) *Ledger {
	return &Ledger{Symbol: symbol, QuoteBalance: quoteBalance}
}

// AddGridOrder registers a working grid BUY order. Prices are unique per
// level by construction in the planner; a duplicate indicates a caller bug.
func (l *Ledger) AddGridOrder(o Order) error {
	if o.Kind != KindGrid || o.Side != SideBuy {
		return fmt.Errorf("%w: got kind=%s side=%s", ErrWrongKind, o.Kind, o.Side)
	}
	if l.GridOrderAt(o.Price) != nil {
		return fmt.Errorf("%w: %.10f", ErrDuplicateLevel, o.Price)
	}
	l.GridOrders = append(l.GridOrders, o)
	l.touch()
	return nil
}

// GridOrderAt returns the grid order working at the exact price, or nil.
func (l *Ledger) GridOrderAt(price float64) *Order {
	for i := range l.GridOrders {
		if filters.SamePrice(l.GridOrders[i].Price, price) {
			return &l.GridOrders[i]
		}
	}
	return nil
}

// SetTakeProfit installs the sole take-profit order. Fails while a cascade
// order is active.
func (l *Ledger) SetTakeProfit(o Order) error {
	if o.Kind != KindTakeProfit || o.Side != SideSell {
		return fmt.Errorf("%w: got kind=%s side=%s", ErrWrongKind, o.Kind, o.Side)
	}
	if l.Cascade != nil {
		return ErrExitConflict
	}
	cp := o
	l.TakeProfit = &cp
	l.touch()
	return nil
}

// SetCascade installs the sole cascade-exit order. Fails while a take-profit
// order is active.
func (l *Ledger) SetCascade(o Order) error {
	if o.Kind != KindCascade || o.Side != SideSell {
		return fmt.Errorf("%w: got kind=%s side=%s", ErrWrongKind, o.Kind, o.Side)
	}
	if l.TakeProfit != nil {
		return ErrExitConflict
	}
	cp := o
	l.Cascade = &cp
	l.touch()
	return nil
}

// ClearTakeProfit drops the take-profit slot. Idempotent.
func (l *Ledger) ClearTakeProfit() {
	if l.TakeProfit != nil {
		l.TakeProfit = nil
		l.touch()
	}
}

// ClearCascade drops the cascade slot. Idempotent.
func (l *Ledger) ClearCascade() {
	if l.Cascade != nil {
		l.Cascade = nil
		l.touch()
	}
}

// ActiveOrders returns every order the ledger is currently tracking, grid
// levels first, then the exit order if any.
func (l *Ledger) ActiveOrders() []Order {
	out := make([]Order, 0, len(l.GridOrders)+1)
	out = append(out, l.GridOrders...)
	if l.TakeProfit != nil {
		out = append(out, *l.TakeProfit)
	}
	if l.Cascade != nil {
		out = append(out, *l.Cascade)
	}
	return out
}

// FindByClientID locates a tracked order by its locally-generated id.
func (l *Ledger) FindByClientID(clientID string) *Order {
	if clientID == "" {
		return nil
	}
	for i := range l.GridOrders {
		if l.GridOrders[i].ClientID == clientID {
			return &l.GridOrders[i]
		}
	}
	if l.TakeProfit != nil && l.TakeProfit.ClientID == clientID {
		return l.TakeProfit
	}
	if l.Cascade != nil && l.Cascade.ClientID == clientID {
		return l.Cascade
	}
	return nil
}

// FindByExchangeID locates a tracked order by the exchange-assigned id.
func (l *Ledger) FindByExchangeID(exchangeID string) *Order {
	if exchangeID == "" {
		return nil
	}
	for i := range l.GridOrders {
		if l.GridOrders[i].ExchangeID == exchangeID {
			return &l.GridOrders[i]
		}
	}
	if l.TakeProfit != nil && l.TakeProfit.ExchangeID == exchangeID {
		return l.TakeProfit
	}
	if l.Cascade != nil && l.Cascade.ExchangeID == exchangeID {
		return l.Cascade
	}
	return nil
}

// Remove drops the order with the given client id from whichever slot holds
// it. Returns false when nothing was tracked under the id.
func (l *Ledger) Remove(clientID string) bool {
	for i := range l.GridOrders {
		if l.GridOrders[i].ClientID == clientID {
			l.GridOrders = append(l.GridOrders[:i], l.GridOrders[i+1:]...)
			l.touch()
			return true
		}
	}
	if l.TakeProfit != nil && l.TakeProfit.ClientID == clientID {
		l.TakeProfit = nil
		l.touch()
		return true
	}
	if l.Cascade != nil && l.Cascade.ClientID == clientID {
		l.Cascade = nil
		l.touch()
		return true
	}
	return false
}

// ApplyFill settles a filled order: the order leaves the ledger and the
// position and both balances move in the same call. Fills execute at the
// order's limit price.
func (l *Ledger) ApplyFill(o Order, at time.Time) {
	l.Remove(o.ClientID)
	switch o.Side {
	case SideBuy:
		l.QuoteBalance -= o.Notional()
		l.BaseBalance += o.Quantity
		l.Position.applyBuy(o.Price, o.Quantity, at)
	case SideSell:
		l.QuoteBalance += o.Notional()
		l.BaseBalance -= o.Quantity
		l.Position.applySell(o.Quantity)
	}
	l.touch()
}

// ResolveCascade reports whether the cascade path has nothing left to do:
// either the position is flat or no cascade order survives.
func (l *Ledger) ResolveCascade() bool {
	return l.Position.Flat() || l.Cascade == nil
}

// Clone returns a deep copy safe to hand to persistence or the HTTP layer
// while the loop keeps mutating the original.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	cp := *l
	cp.GridOrders = append([]Order(nil), l.GridOrders...)
	if l.TakeProfit != nil {
		tp := *l.TakeProfit
		cp.TakeProfit = &tp
	}
	if l.Cascade != nil {
		ca := *l.Cascade
		cp.Cascade = &ca
	}
	if l.Position.EntryTime != nil {
		t := *l.Position.EntryTime
		cp.Position.EntryTime = &t
	}
	return &cp
}

func (l *Ledger) touch() { l.UpdatedAt = time.Now().UTC() }
