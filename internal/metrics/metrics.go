// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every counter/gauge the engine publishes. Constructed
// once at startup and passed by reference into the components that
// record against it.
type Registry struct {
	VetoesTotal        *prometheus.CounterVec
	SignalsTotal        *prometheus.CounterVec
	OrdersSubmitted     *prometheus.CounterVec
	OrdersFilled        *prometheus.CounterVec
	OrdersRejected      *prometheus.CounterVec
	KillSwitchTrips     prometheus.Counter
	EmergencyShutdowns  prometheus.Counter
	DailyPnL            prometheus.Gauge
	WeeklyPnL           prometheus.Gauge
	OpenPositions       prometheus.Gauge
	RegimeGauge         *prometheus.GaugeVec
	BacktestDuration    prometheus.Histogram
	StrategyCircuitBreaks *prometheus.CounterVec
}

// New registers and returns the engine's metric set against reg.
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		VetoesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "vetoes_total",
			Help:      "Count of veto-chain rejections by gate kind.",
		}, []string{"kind"}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "signals_total",
			Help:      "Count of strategy signals by direction.",
		}, []string{"direction"}),
		OrdersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "orders_submitted_total",
			Help:      "Count of orders submitted to the bridge by side.",
		}, []string{"side"}),
		OrdersFilled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "orders_filled_total",
			Help:      "Count of orders filled by side.",
		}, []string{"side"}),
		OrdersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "orders_rejected_total",
			Help:      "Count of orders rejected by the bridge by reason.",
		}, []string{"reason"}),
		KillSwitchTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "kill_switch_trips_total",
			Help:      "Count of order-executor kill-switch trips.",
		}),
		EmergencyShutdowns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "emergency_shutdowns_total",
			Help:      "Count of RiskGuard emergency shutdowns.",
		}),
		DailyPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trader",
			Name:      "daily_pnl_twd",
			Help:      "Current daily realized P&L in TWD.",
		}),
		WeeklyPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trader",
			Name:      "weekly_pnl_twd",
			Help:      "Current weekly realized P&L in TWD.",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trader",
			Name:      "open_positions",
			Help:      "Number of currently open positions.",
		}),
		RegimeGauge: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trader",
			Name:      "regime_scale_factor",
			Help:      "Current position scale factor per symbol's regime.",
		}, []string{"symbol", "regime"}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trader",
			Name:      "backtest_duration_seconds",
			Help:      "Wall-clock duration of a single (strategy,symbol) backtest evaluation.",
			Buckets:   prometheus.DefBuckets,
		}),
		StrategyCircuitBreaks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "strategy_circuit_breaks_total",
			Help:      "Count of strategy circuit-breaker trips by strategy name.",
		}, []string{"strategy"}),
	}
}
