package reporting

import (
	"time"

	"equity-factor-lab/internal/domain"
)

// Report is the rendered view of one backtest run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Status      string
	Failure     string
	Cancelled   bool

	// Configuration echo
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	Frequency      string
	TopN           int
	Benchmark      string
	Universe       int
	Excluded       []string

	// Performance
	Metrics domain.PerformanceMetrics

	// Exits (in precedence order)
	Exits []ExitRow

	// Stop-loss diagnostics
	StoppedPositions    int
	RecoveryRate        float64
	FalsePositives      int
	LateStopLosses      []domain.LateStopLoss
	DegradedSymbolCount int
	StaleMarks          int

	// Regimes (sorted by regime key)
	Regimes []RegimeRow

	// Rebalance log (chronological)
	Rebalances []RebalanceRow
}

// ExitRow summarises exits for one reason.
type ExitRow struct {
	Reason         domain.ExitReason
	Count          int
	AvgHoldingDays float64
}

// RegimeRow counts rebalances spent in one regime.
type RegimeRow struct {
	Regime     string
	Rebalances int
	AvgTarget  float64
}

// RebalanceRow is one entry of the rebalance log.
type RebalanceRow struct {
	Date           time.Time
	Regime         string
	Selected       []string
	AvgScore       float64 // mean composite score of Selected
	PortfolioValue float64 // after trading
	Sells          int
	Buys           int
}
