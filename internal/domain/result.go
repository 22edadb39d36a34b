package domain

import "time"

// Run status values.
const (
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// EquityPoint is the portfolio valuation at the close of a trading day.
type EquityPoint struct {
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolio_value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	DailyReturn    float64   `json:"daily_return"`
}

// RebalanceRecord captures what happened on one rebalance date.
type RebalanceRecord struct {
	Date           time.Time          `json:"date"`
	Regime         RegimeLabel        `json:"regime"`
	Weights        WeightVector       `json:"weights"`
	Posture        RiskPosture        `json:"posture"`
	Selected       []string           `json:"selected_symbols"` // rank order
	Scores         map[string]float64 `json:"scores"`           // composite score per ranked symbol
	AvgScore       float64            `json:"avg_score"`        // mean composite of Selected
	PortfolioValue float64            `json:"portfolio_value"`  // equity after the trades
	Sells          int                `json:"sells"`
	Buys           int                `json:"buys"`
	Carried        int                `json:"carried"` // held positions kept unchanged
	EquityPre      float64            `json:"equity_pre"`
	EquityPost     float64            `json:"equity_post"`
}

// PerformanceMetrics summarises an equity curve.
type PerformanceMetrics struct {
	StartValue     float64 `json:"start_value"`
	EndValue       float64 `json:"final_value"`
	Years          float64 `json:"years"`
	TotalReturn    float64 `json:"total_return"`
	CAGR           float64 `json:"cagr"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"` // <= 0
	CalmarRatio    float64 `json:"calmar_ratio"`
	WinRate        float64 `json:"win_rate"` // closed trades with pnl > 0
	ClosedTrades   int     `json:"closed_trades"`
	TotalTrades    int     `json:"total_trades"`
	TotalCosts     float64 `json:"total_costs"`
	BenchmarkTotal float64 `json:"benchmark_return"`
	BenchmarkCAGR  float64 `json:"benchmark_cagr"`
	Outperformance float64 `json:"outperformance_vs_benchmark"` // TotalReturn - BenchmarkTotal
}

// TrackingStatistics summarises exit attribution for a run.
type TrackingStatistics struct {
	TotalExits             int                    `json:"total_exits"`
	ExitsByReason          map[ExitReason]int     `json:"exits_by_reason"`
	AvgHoldingDaysByReason map[ExitReason]float64 `json:"avg_holding_days_by_reason"`
	StoppedPositions       int                    `json:"stopped_positions"`
	Stopped                []StoppedPosition      `json:"stopped"` // recovery watches by stop date
	RecoveredPositions     int                    `json:"recovered_positions"`
	RecoveryRate           float64                `json:"recovery_rate"`
	FalsePositiveCount     int                    `json:"false_positive_count"`
	LateStopLosses         []LateStopLoss         `json:"late_stop_losses"`
	DegradedSymbolCount    int                    `json:"degraded_symbol_count"`
	StaleMarks             int                    `json:"stale_marks"`
}

// BacktestResult is the complete output of one run. The performance
// metrics are embedded so they serialise at the top level.
type BacktestResult struct {
	RunID     string         `json:"run_id"`
	Status    string         `json:"status"` // COMPLETED | FAILED
	Failure   string         `json:"failure,omitempty"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Config    BacktestConfig `json:"config"`

	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	NumRebalances  int       `json:"num_rebalances"`
	PerformanceMetrics

	EquityCurve    []EquityPoint      `json:"equity_curve"`
	Trades         []Trade            `json:"trade_log"`
	Rebalances     []RebalanceRecord  `json:"rebalance_log"`
	Tracking       TrackingStatistics `json:"tracking_statistics"`
	Excluded       []string           `json:"excluded_symbols,omitempty"` // no data for the window
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	FinalPositions []Position         `json:"final_positions,omitempty"`
}

// RunSummary is a lightweight listing row for a stored run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalReturn float64   `json:"total_return"`
	CAGR        float64   `json:"cagr"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TradeCount  int       `json:"trade_count"`
}

// Summary builds the listing row for the result.
func (r *BacktestResult) Summary() RunSummary {
	return RunSummary{
		RunID:       r.RunID,
		CreatedAt:   r.FinishedAt,
		Status:      r.Status,
		StartDate:   r.Config.StartDate,
		EndDate:     r.Config.EndDate,
		TotalReturn: r.TotalReturn,
		CAGR:        r.CAGR,
		SharpeRatio: r.SharpeRatio,
		MaxDrawdown: r.MaxDrawdown,
		TradeCount:  len(r.Trades),
	}
}
