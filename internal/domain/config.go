package domain

import "time"

// Rebalance frequencies.
const (
	RebalanceMonthly   = "monthly"
	RebalanceQuarterly = "quarterly"
)

// BacktestConfig describes one backtest run.
// It is echoed verbatim into the result and persisted with the run.
type BacktestConfig struct {
	StartDate          time.Time    `yaml:"start_date" json:"start_date"`
	EndDate            time.Time    `yaml:"end_date" json:"end_date"`
	InitialCapital     float64      `yaml:"initial_capital" json:"initial_capital"`
	RebalanceFrequency string       `yaml:"rebalance_frequency" json:"rebalance_frequency"` // monthly | quarterly
	TopNStocks         int          `yaml:"top_n_stocks" json:"top_n_stocks"`
	Universe           []string     `yaml:"universe" json:"universe"`
	Benchmark          string       `yaml:"benchmark" json:"benchmark"`
	TransactionCost    float64      `yaml:"transaction_cost_fraction" json:"transaction_cost_fraction"`
	WeightPreset       string       `yaml:"weight_preset" json:"weight_preset,omitempty"`
	AgentWeights       WeightVector `yaml:"agent_weights" json:"agent_weights"`

	EnableRiskManagement  bool    `yaml:"enable_risk_management" json:"enable_risk_management"`
	EnableRegimeDetection bool    `yaml:"enable_regime_detection" json:"enable_regime_detection"`
	StopLossThreshold     float64 `yaml:"stop_loss_threshold" json:"stop_loss_threshold"`
	RiskFreeRate          float64 `yaml:"risk_free_rate" json:"risk_free_rate"`

	LookbackDays   int `yaml:"lookback_days" json:"lookback_days"`     // calendar days loaded before StartDate
	ScoringWorkers int `yaml:"scoring_workers" json:"scoring_workers"` // bounded scoring fan-out
}
