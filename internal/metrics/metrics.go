// Package metrics exposes the cycle loop's vitals to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
)

// Set bundles every collector the trader touches.
type Set struct {
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	Fills           *prometheus.CounterVec
	ReconcileErrors prometheus.Counter
	CycleDuration   prometheus.Histogram

	PositionQty   prometheus.Gauge
	EntryPrice    prometheus.Gauge
	QuoteBalance  prometheus.Gauge
	GridOrders    prometheus.Gauge
	CascadeActive prometheus.Gauge
}

// New registers the collectors with reg and returns the set.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geminitrader_orders_placed_total",
			Help: "Orders submitted to the exchange, by kind.",
		}, []string{"kind"}),
		OrdersCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geminitrader_orders_cancelled_total",
			Help: "Orders cancelled (including already-inactive), by kind.",
		}, []string{"kind"}),
		Fills: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geminitrader_fills_total",
			Help: "Fills settled into the ledger, by kind.",
		}, []string{"kind"}),
		ReconcileErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "geminitrader_reconcile_errors_total",
			Help: "Reconciliation passes aborted on gateway errors.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "geminitrader_cycle_duration_seconds",
			Help:    "Wall time of one full lifecycle cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		PositionQty: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geminitrader_position_quantity",
			Help: "Base asset currently held.",
		}),
		EntryPrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geminitrader_position_entry_price",
			Help: "Volume-weighted average entry price, 0 when flat.",
		}),
		QuoteBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geminitrader_quote_balance",
			Help: "Free quote currency in the ledger.",
		}),
		GridOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geminitrader_grid_orders",
			Help: "Grid orders currently working.",
		}),
		CascadeActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geminitrader_cascade_active",
			Help: "1 while a cascade exit is in flight.",
		}),
	}
}

// ObserveLedger refreshes the gauges from the current ledger.
func (s *Set) ObserveLedger(l *ledger.Ledger, cascadeActive bool) {
	if s == nil || l == nil {
		return
	}
	s.PositionQty.Set(l.Position.Quantity)
	s.EntryPrice.Set(l.Position.EntryPrice)
	s.QuoteBalance.Set(l.QuoteBalance)
	s.GridOrders.Set(float64(len(l.GridOrders)))
	if cascadeActive {
		s.CascadeActive.Set(1)
	} else {
		s.CascadeActive.Set(0)
	}
}
