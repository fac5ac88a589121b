// Package filters implements exchange trading-rule adjustment: price tick
// rounding, quantity step rounding and minimum-notional validation. All
// rounding is downward so an adjusted order never exceeds the intended
// price or size.
package filters

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNonPositive indicates the adjusted price or quantity collapsed to
	// zero or below.
	ErrNonPositive = errors.New("adjusted price or quantity is non-positive")
	// ErrBelowMinNotional indicates price*quantity is under the symbol
	// minimum.
	ErrBelowMinNotional = errors.New("notional below symbol minimum")
	// ErrOutOfBounds indicates a configured min/max price or quantity bound
	// was violated.
	ErrOutOfBounds = errors.New("price or quantity outside symbol bounds")
)

// SymbolFilters carries the per-symbol trading rules reported by the
// exchange. Zero-valued bounds mean "no bound".
type SymbolFilters struct {
	Symbol      string  `json:"symbol"`
	TickSize    float64 `json:"tick_size"`
	StepSize    float64 `json:"step_size"`
	MinNotional float64 `json:"min_notional"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	MinQty      float64 `json:"min_qty"`
	MaxQty      float64 `json:"max_qty"`
}

// AdjustPrice rounds price down to the nearest tick multiple. A zero tick
// size leaves the price untouched.
func (f SymbolFilters) AdjustPrice(price float64) float64 {
	return floorToIncrement(price, f.TickSize)
}

// AdjustQuantity rounds quantity down to the nearest step multiple. A zero
// step size leaves the quantity untouched.
func (f SymbolFilters) AdjustQuantity(qty float64) float64 {
	return floorToIncrement(qty, f.StepSize)
}

// Validate checks an already-adjusted (price, qty) pair against the symbol
// rules. Errors wrap the package sentinels.
func (f SymbolFilters) Validate(price, qty float64) error {
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("%w: price=%.10f qty=%.10f", ErrNonPositive, price, qty)
	}
	if f.MinPrice > 0 && price < f.MinPrice {
		return fmt.Errorf("%w: price %.10f < min price %.10f", ErrOutOfBounds, price, f.MinPrice)
	}
	if f.MaxPrice > 0 && price > f.MaxPrice {
		return fmt.Errorf("%w: price %.10f > max price %.10f", ErrOutOfBounds, price, f.MaxPrice)
	}
	if f.MinQty > 0 && qty < f.MinQty {
		return fmt.Errorf("%w: qty %.10f < min qty %.10f", ErrOutOfBounds, qty, f.MinQty)
	}
	if f.MaxQty > 0 && qty > f.MaxQty {
		return fmt.Errorf("%w: qty %.10f > max qty %.10f", ErrOutOfBounds, qty, f.MaxQty)
	}
	if f.MinNotional > 0 {
		notional := decFromFloat(price).Mul(decFromFloat(qty))
		if notional.Cmp(decFromFloat(f.MinNotional)) < 0 {
			return fmt.Errorf("%w: %s < %.10f", ErrBelowMinNotional, notional.String(), f.MinNotional)
		}
	}
	return nil
}

// AdjustAndValidate applies both roundings then validates the result.
func (f SymbolFilters) AdjustAndValidate(price, qty float64) (float64, float64, error) {
	p := f.AdjustPrice(price)
	q := f.AdjustQuantity(qty)
	if err := f.Validate(p, q); err != nil {
		return p, q, err
	}
	return p, q, nil
}

// WithinPriceTolerance reports whether two prices differ by less than half a
// tick. Used to suppress cancel/replace churn from float recomputation noise.
func (f SymbolFilters) WithinPriceTolerance(a, b float64) bool {
	return withinTolerance(a, b, f.TickSize)
}

// WithinQuantityTolerance is WithinPriceTolerance for quantities and the
// step size.
func (f SymbolFilters) WithinQuantityTolerance(a, b float64) bool {
	return withinTolerance(a, b, f.StepSize)
}

func withinTolerance(a, b, increment float64) bool {
	if increment <= 0 {
		return decFromFloat(a).Cmp(decFromFloat(b)) == 0
	}
	diff := decFromFloat(a).Sub(decFromFloat(b)).Abs()
	half := decFromFloat(increment).Div(decimal.NewFromInt(2))
	return diff.Cmp(half) < 0
}

func floorToIncrement(value, increment float64) float64 {
	if value <= 0 {
		return 0
	}
	if increment <= 0 {
		return value
	}
	v := decFromFloat(value)
	inc := decFromFloat(increment)
	out, _ := v.Div(inc).Floor().Mul(inc).Float64()
	return out
}

func decFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// SamePrice reports exact price equality under decimal comparison. Grid
// levels are keyed by price, so equality must not go through float
// subtraction.
func SamePrice(a, b float64) bool {
	return decFromFloat(a).Cmp(decFromFloat(b)) == 0
}
