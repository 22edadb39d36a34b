// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"equity-factor-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	PortfolioValue prometheus.Gauge

	// Simulation metrics
	TradesTotal     *prometheus.CounterVec
	ExitsTotal      *prometheus.CounterVec
	LateStopLosses  prometheus.Counter
	RebalancesTotal *prometheus.CounterVec
	DegradedSymbols prometheus.Gauge
	StaleMarks      prometheus.Gauge

	// Data metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	SymbolsExcluded  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_factor_lab"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Run metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest wall-clock duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PortfolioValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "final_portfolio_value",
			Help:      "Final portfolio value of the most recent run",
		}),

		// Simulation metrics
		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of simulated fills by action",
		}, []string{"action"}),
		ExitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "exits_total",
			Help:      "Total number of position exits by reason",
		}, []string{"reason"}),
		LateStopLosses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "late_stop_losses_total",
			Help:      "Stop-loss exits whose loss overshot the threshold tolerance",
		}),
		RebalancesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "rebalances_total",
			Help:      "Total number of rebalances by regime",
		}, []string{"trend", "volatility"}),
		DegradedSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "degraded_symbols",
			Help:      "Symbols that received a neutral reading in the most recent run",
		}),
		StaleMarks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "stale_marks",
			Help:      "Positions valued at an earlier close in the most recent run",
		}),

		// Data metrics
		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "provider_requests_total",
			Help:      "History requests by source and outcome",
		}, []string{"source", "status"}),
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "provider_latency_seconds",
			Help:      "History request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		SymbolsExcluded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "symbols_excluded_total",
			Help:      "Universe symbols dropped for lack of history",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last completed run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// OnTrade counts a simulated fill and, for sells, its exit reason.
func (m *Metrics) OnTrade(trade domain.Trade) {
	m.TradesTotal.WithLabelValues(trade.Action).Inc()
	if trade.Exit == nil {
		return
	}
	m.ExitsTotal.WithLabelValues(string(trade.Exit.ExitReason)).Inc()
	if trade.Exit.LateStopLoss {
		m.LateStopLosses.Inc()
	}
}

// OnRebalance counts a rebalance under its regime.
func (m *Metrics) OnRebalance(rec domain.RebalanceRecord) {
	m.RebalancesTotal.WithLabelValues(string(rec.Regime.Trend), string(rec.Regime.Volatility)).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(res *domain.BacktestResult, elapsed time.Duration) {
	status := res.Status
	if res.Cancelled {
		status = "CANCELLED"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.DegradedSymbols.Set(float64(res.Tracking.DegradedSymbolCount))
	m.StaleMarks.Set(float64(res.Tracking.StaleMarks))
	m.SymbolsExcluded.Add(float64(len(res.Excluded)))
	if res.Status == domain.RunStatusCompleted && !res.Cancelled {
		m.PortfolioValue.Set(res.PerformanceMetrics.EndValue)
		m.LastSuccessfulRun.Set(float64(time.Now().Unix()))
	}
}

// RecordProviderCall records one history request.
func (m *Metrics) RecordProviderCall(source string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderRequests.WithLabelValues(source, status).Inc()
	m.ProviderLatency.WithLabelValues(source).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
