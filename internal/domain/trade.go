package domain

import "time"

// Trade actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// ExitReason classifies why a position was closed.
type ExitReason string

// Exit reasons, highest precedence first.
const (
	ExitReasonStopLoss        ExitReason = "STOP_LOSS"
	ExitReasonRegimeReduction ExitReason = "REGIME_REDUCTION"
	ExitReasonScoreDropped    ExitReason = "SCORE_DROPPED"
	ExitReasonRebalance       ExitReason = "REBALANCE"
)

// ExitReasons lists all reasons in precedence order.
var ExitReasons = []ExitReason{
	ExitReasonStopLoss,
	ExitReasonRegimeReduction,
	ExitReasonScoreDropped,
	ExitReasonRebalance,
}

// Precedence returns the rank of the reason; lower wins.
func (r ExitReason) Precedence() int {
	for i, reason := range ExitReasons {
		if reason == r {
			return i
		}
	}
	return len(ExitReasons)
}

// Position is an open holding owned by the simulator.
type Position struct {
	Symbol               string      `json:"symbol"`
	EntryDate            time.Time   `json:"entry_date"`
	EntryPrice           float64     `json:"entry_price"`
	Shares               int64       `json:"shares"`
	EntryScore           float64     `json:"entry_score"`
	EntryRank            int         `json:"entry_rank"` // 1-based
	EntryRegime          RegimeLabel `json:"entry_regime"`
	PortfolioSizeAtEntry int         `json:"portfolio_size_at_entry"` // target count at entry

	MaxPrice  float64   `json:"max_price"`  // highest close while held
	MinPrice  float64   `json:"min_price"`  // lowest close while held
	LastPrice float64   `json:"last_price"` // most recent mark
	LastDate  time.Time `json:"last_date"`  // date of LastPrice
}

// MarketValue returns shares valued at the last mark.
func (p *Position) MarketValue() float64 {
	return float64(p.Shares) * p.LastPrice
}

// ReturnAt returns (price - entry) / entry.
func (p *Position) ReturnAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// ExitDetails is the attribution attached to every SELL.
type ExitDetails struct {
	ExitReason        ExitReason `json:"exit_reason"`
	EntryDate         time.Time  `json:"entry_date"`
	ExitDate          time.Time  `json:"exit_date"`
	EntryPrice        float64    `json:"entry_price"`
	ExitPrice         float64    `json:"exit_price"`
	PnLPct            float64    `json:"pnl_pct"` // (exit - entry) / entry
	HoldingPeriodDays int        `json:"holding_period_days"`
	MaxPriceWhileHeld float64    `json:"max_price_while_held"`
	MinPriceWhileHeld float64    `json:"min_price_while_held"`
	EntryScore        float64    `json:"entry_score"`
	EntryRank         int        `json:"entry_rank"`
	EntryRegime       string     `json:"entry_regime"`
	StopLossTriggered bool       `json:"stop_loss_triggered"`
	StopLossThreshold float64    `json:"stop_loss_threshold"`
	LateStopLoss      bool       `json:"late_stop_loss,omitempty"` // loss overshot threshold + tolerance
}

// Trade is one executed fill.
type Trade struct {
	TradeID         string       `json:"trade_id"` // deterministic hash
	Date            time.Time    `json:"date"`
	Action          string       `json:"action"` // BUY | SELL
	Symbol          string       `json:"symbol"`
	Shares          int64        `json:"shares"`
	Price           float64      `json:"price"`
	Value           float64      `json:"value"` // shares * price
	TransactionCost float64      `json:"transaction_cost"`
	EntryScore      float64      `json:"entry_score,omitempty"`  // BUY only
	EntryRank       int          `json:"entry_rank,omitempty"`   // BUY only
	Exit            *ExitDetails `json:"exit_details,omitempty"` // SELL only
}

// StoppedPosition follows a stop-lossed symbol to see whether it recovered.
type StoppedPosition struct {
	Symbol         string     `json:"symbol"`
	StopDate       time.Time  `json:"stop_date"`
	StopPrice      float64    `json:"stop_price"`
	EntryPrice     float64    `json:"entry_price"`
	WindowEnd      time.Time  `json:"window_end"` // StopDate + recovery window
	Recovered      bool       `json:"recovered"`
	RecoveryDate   *time.Time `json:"recovery_date,omitempty"`
	DaysToRecovery int        `json:"days_to_recovery,omitempty"`
	FalsePositive  bool       `json:"false_positive"` // recovered within the false-positive window
	Closed         bool       `json:"closed"`         // no longer monitored
}

// LateStopLoss records a stop that fired after the loss overshot the threshold.
type LateStopLoss struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	PnLPct    float64   `json:"pnl_pct"`
	Threshold float64   `json:"threshold"`
}
