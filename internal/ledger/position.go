package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// qtyEpsilon absorbs float dust when a sell returns the position to flat.
var qtyEpsilon = decimal.NewFromFloat(1e-9)

// Position is the net holding accumulated by grid fills. Invariant:
// Quantity == 0 exactly when EntryPrice == 0 and EntryTime == nil.
type Position struct {
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
}

// Flat reports whether nothing is held.
func (p Position) Flat() bool { return p.Quantity == 0 }

// HeldFor returns how long the position has been open at now, or zero when
// flat.
func (p Position) HeldFor(now time.Time) time.Duration {
	if p.EntryTime == nil {
		return 0
	}
	return now.Sub(*p.EntryTime)
}

// UnrealizedRatio is the profit ratio of the holding at the given price
// (0.01 == +1%). Zero when flat.
func (p Position) UnrealizedRatio(price float64) float64 {
	if p.Flat() || p.EntryPrice <= 0 || price <= 0 {
		return 0
	}
	return price/p.EntryPrice - 1
}

// applyBuy folds a buy fill into the volume-weighted entry price. The first
// buy stamps the entry time.
func (p *Position) applyBuy(price, qty float64, at time.Time) {
	if qty <= 0 {
		return
	}
	oldQty := decimal.NewFromFloat(p.Quantity)
	addQty := decimal.NewFromFloat(qty)
	newQty := oldQty.Add(addQty)
	oldCost := oldQty.Mul(decimal.NewFromFloat(p.EntryPrice))
	addCost := addQty.Mul(decimal.NewFromFloat(price))
	p.EntryPrice, _ = oldCost.Add(addCost).Div(newQty).Float64()
	p.Quantity, _ = newQty.Float64()
	if p.EntryTime == nil {
		t := at
		p.EntryTime = &t
	}
}

// applySell reduces the holding. Reaching zero (within epsilon) resets the
// entry price and entry time together, restoring the flat invariant.
func (p *Position) applySell(qty float64) {
	if qty <= 0 {
		return
	}
	rem := decimal.NewFromFloat(p.Quantity).Sub(decimal.NewFromFloat(qty))
	if rem.Abs().Cmp(qtyEpsilon) <= 0 || rem.Sign() < 0 {
		*p = Position{}
		return
	}
	p.Quantity, _ = rem.Float64()
}
