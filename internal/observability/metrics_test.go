package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"equity-factor-lab/internal/domain"
)

func TestMetrics_TradeAndRebalanceCounters(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.OnTrade(domain.Trade{Action: domain.ActionBuy})
	m.OnTrade(domain.Trade{Action: domain.ActionSell, Exit: &domain.ExitDetails{
		ExitReason:   domain.ExitReasonStopLoss,
		LateStopLoss: true,
	}})
	m.OnTrade(domain.Trade{Action: domain.ActionSell, Exit: &domain.ExitDetails{
		ExitReason: domain.ExitReasonScoreDropped,
	}})
	m.OnRebalance(domain.RebalanceRecord{Regime: domain.RegimeLabel{Trend: domain.TrendBull, Volatility: domain.VolatilityLow}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues(domain.ActionBuy)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues(domain.ActionSell)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExitsTotal.WithLabelValues("STOP_LOSS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LateStopLosses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebalancesTotal.WithLabelValues("BULL", "LOW")))
}

func TestMetrics_RecordRun(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "")

	m.RecordRun(&domain.BacktestResult{
		Status:             domain.RunStatusCompleted,
		PerformanceMetrics: domain.PerformanceMetrics{EndValue: 123456},
		Tracking:           domain.TrackingStatistics{DegradedSymbolCount: 3, StaleMarks: 2},
		Excluded:           []string{"XYZ"},
	}, 2*time.Second)
	m.RecordRun(&domain.BacktestResult{Status: domain.RunStatusCompleted, Cancelled: true}, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(domain.RunStatusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("CANCELLED")))
	assert.Equal(t, 123456.0, testutil.ToFloat64(m.PortfolioValue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SymbolsExcluded))
	assert.Positive(t, testutil.ToFloat64(m.LastSuccessfulRun))
}

func TestMetrics_ProviderAndDB(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.RecordProviderCall("yahoo", 0.1, nil)
	m.RecordProviderCall("yahoo", 0.2, errors.New("timeout"))
	m.RecordDBQuery("sqlite", "save_run", 0.01, errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("yahoo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("yahoo", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("sqlite", "save_run")))
}
