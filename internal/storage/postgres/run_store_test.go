package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

func createTestRun(finished time.Time, totalReturn float64) (domain.BacktestConfig, *domain.BacktestResult) {
	cfg := domain.BacktestConfig{
		StartDate:          time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2022, 12, 30, 0, 0, 0, 0, time.UTC),
		InitialCapital:     100000,
		RebalanceFrequency: domain.RebalanceMonthly,
		TopNStocks:         2,
		Universe:           []string{"AAPL", "MSFT", "NVDA"},
		Benchmark:          "SPY",
		AgentWeights:       domain.WeightVector{domain.FactorMomentum: 1},
	}
	result := &domain.BacktestResult{
		Status:     domain.RunStatusCompleted,
		FinishedAt: finished,
		PerformanceMetrics: domain.PerformanceMetrics{
			TotalReturn: totalReturn,
			CAGR:        0.12,
			SharpeRatio: 0.9,
			MaxDrawdown: -0.18,
		},
		Trades: []domain.Trade{
			{TradeID: "t1", Date: cfg.StartDate, Action: domain.ActionBuy, Symbol: "AAPL", Shares: 10, Price: 100, Value: 1000},
			{
				TradeID: "t2", Date: cfg.EndDate, Action: domain.ActionSell, Symbol: "AAPL", Shares: 10, Price: 80, Value: 800,
				Exit: &domain.ExitDetails{ExitReason: domain.ExitReasonStopLoss, PnLPct: -0.2, StopLossTriggered: true},
			},
		},
		Tracking: domain.TrackingStatistics{
			ExitsByReason: map[domain.ExitReason]int{domain.ExitReasonStopLoss: 1},
		},
	}
	return cfg, result
}

func TestRunStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	cfg, result := createTestRun(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 0.35)
	require.NoError(t, store.Save(ctx, "run-001", cfg, result))

	got, err := store.Get(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, "run-001", got.RunID)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, cfg.Universe, got.Config.Universe)
	assert.InDelta(t, 0.35, got.PerformanceMetrics.TotalReturn, 1e-12)
	require.Len(t, got.Trades, 2)
	require.NotNil(t, got.Trades[1].Exit)
	assert.Equal(t, domain.ExitReasonStopLoss, got.Trades[1].Exit.ExitReason)
	assert.Equal(t, 1, got.Tracking.ExitsByReason[domain.ExitReasonStopLoss])
}

func TestRunStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	cfg, result := createTestRun(time.Now().UTC(), 0.1)
	require.NoError(t, store.Save(ctx, "run-dup", cfg, result))

	err := store.Save(ctx, "run-dup", cfg, result)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewRunStore(pool).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		cfg, result := createTestRun(base.Add(time.Duration(i)*time.Hour), float64(i))
		require.NoError(t, store.Save(ctx, id, cfg, result))
	}

	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "run-c", list[0].RunID)
	assert.Equal(t, "run-b", list[1].RunID)
	assert.Equal(t, 2, list[0].TradeCount)
	assert.True(t, list[0].StartDate.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}
