// Package regime classifies the market regime from the benchmark series and
// maps it to factor weights and a risk posture.
package regime

import (
	"errors"
	"fmt"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/indicators"
)

// ErrInsufficientHistory is returned when the benchmark is too short to
// classify.
var ErrInsufficientHistory = errors.New("insufficient benchmark history for regime")

// Classifier labels a date from the benchmark closes visible on it.
type Classifier interface {
	Classify(closes []float64, asOf time.Time) (domain.RegimeLabel, error)
}

// TrendVol is the default classifier: moving-average trend plus drift, and
// realized volatility against its own rolling percentiles.
type TrendVol struct {
	ShortMA     int     // default 50
	LongMA      int     // default 200
	DriftWindow int     // default 60
	DriftBand   float64 // default 0.02
	VolWindow   int     // default 20
	VolHistory  int     // default 252 observations
	LowPct      float64 // default 0.25
	HighPct     float64 // default 0.75
}

// DefaultClassifier returns TrendVol with its default parameters.
func DefaultClassifier() TrendVol {
	return TrendVol{
		ShortMA:     50,
		LongMA:      200,
		DriftWindow: 60,
		DriftBand:   0.02,
		VolWindow:   20,
		VolHistory:  252,
		LowPct:      0.25,
		HighPct:     0.75,
	}
}

// minVolObservations is the shortest volatility history used for percentiles.
const minVolObservations = 20

// Classify labels asOf. closes must not extend past asOf.
func (c TrendVol) Classify(closes []float64, asOf time.Time) (domain.RegimeLabel, error) {
	label := domain.RegimeLabel{Date: asOf}

	short, okShort := indicators.SMA(closes, c.ShortMA)
	long, okLong := indicators.SMA(closes, c.LongMA)
	drift, okDrift := indicators.PeriodReturn(closes, c.DriftWindow)
	if !okShort || !okLong || !okDrift {
		return label, fmt.Errorf("%w: %d closes", ErrInsufficientHistory, len(closes))
	}

	switch {
	case short > long && drift > c.DriftBand:
		label.Trend = domain.TrendBull
	case short < long && drift < -c.DriftBand:
		label.Trend = domain.TrendBear
	default:
		label.Trend = domain.TrendSideways
	}

	// Only the last VolHistory+VolWindow closes feed the rolling window.
	need := c.VolHistory + c.VolWindow
	window := closes
	if len(window) > need {
		window = window[len(window)-need:]
	}
	vols := indicators.RollingVol(window, c.VolWindow)
	if len(vols) > c.VolHistory {
		vols = vols[len(vols)-c.VolHistory:]
	}
	if len(vols) < minVolObservations {
		return label, fmt.Errorf("%w: %d volatility observations", ErrInsufficientHistory, len(vols))
	}

	current := vols[len(vols)-1]
	switch {
	case current > indicators.Percentile(vols, c.HighPct):
		label.Volatility = domain.VolatilityHigh
	case current < indicators.Percentile(vols, c.LowPct):
		label.Volatility = domain.VolatilityLow
	default:
		label.Volatility = domain.VolatilityNormal
	}
	return label, nil
}
