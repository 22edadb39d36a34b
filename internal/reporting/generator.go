// Package reporting renders backtest results as Markdown, CSV and console tables.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore storage.RunStore
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore) *Generator {
	return &Generator{
		runStore: runStore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a stored run and builds its report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	res, err := g.runStore.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return Build(res, g.now()), nil
}

// Build turns a result into a Report.
func Build(res *domain.BacktestResult, generatedAt time.Time) *Report {
	cfg := res.Config
	r := &Report{
		GeneratedAt:    generatedAt,
		RunID:          res.RunID,
		Status:         res.Status,
		Failure:        res.Failure,
		Cancelled:      res.Cancelled,
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		InitialCapital: cfg.InitialCapital,
		Frequency:      cfg.RebalanceFrequency,
		TopN:           cfg.TopNStocks,
		Benchmark:      cfg.Benchmark,
		Universe:       len(cfg.Universe),
		Excluded:       res.Excluded,
		Metrics:        res.PerformanceMetrics,

		StoppedPositions:    res.Tracking.StoppedPositions,
		RecoveryRate:        res.Tracking.RecoveryRate,
		FalsePositives:      res.Tracking.FalsePositiveCount,
		LateStopLosses:      res.Tracking.LateStopLosses,
		DegradedSymbolCount: res.Tracking.DegradedSymbolCount,
		StaleMarks:          res.Tracking.StaleMarks,
	}

	r.Exits = generateExits(res.Tracking)
	r.Regimes = generateRegimes(res.Rebalances)
	r.Rebalances = generateRebalances(res.Rebalances)
	return r
}

func generateExits(stats domain.TrackingStatistics) []ExitRow {
	rows := make([]ExitRow, 0, len(domain.ExitReasons))
	for _, reason := range domain.ExitReasons {
		rows = append(rows, ExitRow{
			Reason:         reason,
			Count:          stats.ExitsByReason[reason],
			AvgHoldingDays: stats.AvgHoldingDaysByReason[reason],
		})
	}
	return rows
}

func generateRegimes(recs []domain.RebalanceRecord) []RegimeRow {
	type acc struct {
		n       int
		targets int
	}
	byKey := make(map[string]*acc)
	for _, rec := range recs {
		key := rec.Regime.Key()
		a, ok := byKey[key]
		if !ok {
			a = &acc{}
			byKey[key] = a
		}
		a.n++
		a.targets += rec.Posture.TargetPositions
	}

	rows := make([]RegimeRow, 0, len(byKey))
	for key, a := range byKey {
		rows = append(rows, RegimeRow{
			Regime:     key,
			Rebalances: a.n,
			AvgTarget:  float64(a.targets) / float64(a.n),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Regime < rows[j].Regime })
	return rows
}

func generateRebalances(recs []domain.RebalanceRecord) []RebalanceRow {
	rows := make([]RebalanceRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, RebalanceRow{
			Date:           rec.Date,
			Regime:         rec.Regime.Key(),
			Selected:       rec.Selected,
			AvgScore:       rec.AvgScore,
			PortfolioValue: rec.PortfolioValue,
			Sells:          rec.Sells,
			Buys:           rec.Buys,
		})
	}
	return rows
}
