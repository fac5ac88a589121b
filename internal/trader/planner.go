package trader

import (
	"context"

	"github.com/skittixch/GeminiTrader-sub000/internal/gateway/exchange"
	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/lifecycle/grid"
)

// Planner supplies the desired grid and exit target each cycle. The
// lifecycle core treats it as an external collaborator: any zone-detection
// or confidence-weighted sizing logic lives behind this interface.
type Planner interface {
	// PlanGrid returns the target buy ladder given the current ledger and
	// top of book. An empty slice means "no grid".
	PlanGrid(ctx context.Context, l *ledger.Ledger, top exchange.BookTop) ([]grid.Level, error)

	// PlanTakeProfit returns the desired exit price, or 0 for none.
	PlanTakeProfit(ctx context.Context, l *ledger.Ledger) (float64, error)
}

// LadderPlanner is the built-in reference planner: a fixed number of levels
// spaced geometrically below the reference price, each buying a fixed quote
// amount, with a take-profit a fixed percentage above entry.
type LadderPlanner struct {
	Levels        int
	SpacingPct    float64
	LevelQuote    float64
	TakeProfitPct float64
}

func (p LadderPlanner) PlanGrid(_ context.Context, l *ledger.Ledger, top exchange.BookTop) ([]grid.Level, error) {
	ref := top.Bid
	// Once holding, ladder below the entry so the grid keeps averaging down
	// instead of chasing a rebounding price.
	if !l.Position.Flat() && l.Position.EntryPrice > 0 && l.Position.EntryPrice < ref {
		ref = l.Position.EntryPrice
	}
	if ref <= 0 {
		return nil, nil
	}
	out := make([]grid.Level, 0, p.Levels)
	price := ref
	for i := 0; i < p.Levels; i++ {
		price = price * (1 - p.SpacingPct)
		if price <= 0 {
			break
		}
		out = append(out, grid.Level{Price: price, Quantity: p.LevelQuote / price})
	}
	return out, nil
}

func (p LadderPlanner) PlanTakeProfit(_ context.Context, l *ledger.Ledger) (float64, error) {
	if l.Position.Flat() || l.Position.EntryPrice <= 0 {
		return 0, nil
	}
	return l.Position.EntryPrice * (1 + p.TakeProfitPct), nil
}
