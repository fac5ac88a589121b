package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/skittixch/GeminiTrader-sub000/internal/market"
)

// WalkFeed generates a random-walk candle stream for dry runs. Each Next
// call produces one bar: close drifts by DriftPct on average, high/low
// extend RangePct around the open/close span.
type WalkFeed struct {
	price    float64
	driftPct float64
	rangePct float64
	step     time.Duration
	clock    int64
	rng      *rand.Rand
}

// NewWalkFeed seeds the walk at start with the given per-bar drift and
// range fractions. step is the bar duration.
func NewWalkFeed(start, driftPct, rangePct float64, step time.Duration, seed int64) *WalkFeed {
	return &WalkFeed{
		price:    start,
		driftPct: driftPct,
		rangePct: rangePct,
		step:     step,
		clock:    time.Now().UnixMilli(),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (f *WalkFeed) Next(ctx context.Context) (market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return market.Candle{}, err
	}
	open := f.price
	move := (f.rng.Float64()*2 - 1 + f.driftPct) * f.rangePct
	closePx := open * (1 + move)
	if closePx <= 0 {
		closePx = open
	}
	hi, lo := open, closePx
	if closePx > open {
		hi = closePx
		lo = open
	}
	span := open * f.rangePct * f.rng.Float64()
	c := market.Candle{
		OpenTime:  f.clock,
		CloseTime: f.clock + f.step.Milliseconds(),
		Open:      open,
		High:      hi + span,
		Low:       lo - span,
		Close:     closePx,
		Volume:    f.rng.Float64() * 100,
	}
	f.price = closePx
	f.clock = c.CloseTime
	return c, nil
}
