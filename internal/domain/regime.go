package domain

import "time"

// Trend is the directional component of a market regime.
type Trend string

// Trend values.
const (
	TrendBull     Trend = "BULL"
	TrendBear     Trend = "BEAR"
	TrendSideways Trend = "SIDEWAYS"
)

// Volatility is the dispersion component of a market regime.
type Volatility string

// Volatility values.
const (
	VolatilityLow    Volatility = "LOW"
	VolatilityNormal Volatility = "NORMAL"
	VolatilityHigh   Volatility = "HIGH"
)

// RegimeLabel is the classified market state on a date.
type RegimeLabel struct {
	Date       time.Time  `json:"date"`
	Trend      Trend      `json:"trend"`
	Volatility Volatility `json:"volatility"`
	Fallback   bool       `json:"fallback,omitempty"` // classification failed, defaults used
}

// Key returns the table key, e.g. "BULL/LOW".
func (r RegimeLabel) Key() string {
	return string(r.Trend) + "/" + string(r.Volatility)
}

// RiskPosture is the sizing stance attached to a regime.
type RiskPosture struct {
	TargetPositions    int     `json:"target_positions"`     // number of holdings to aim for
	TargetCashFraction float64 `json:"target_cash_fraction"` // 0..1 of equity held as cash
}

// RegimeDecision bundles everything derived from a regime classification.
type RegimeDecision struct {
	Label   RegimeLabel  `json:"label"`
	Weights WeightVector `json:"weights"`
	Posture RiskPosture  `json:"posture"`
}
