package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Factor names understood by the scorer and the weight presets.
const (
	FactorFundamentals      = "fundamentals"
	FactorMomentum          = "momentum"
	FactorQuality           = "quality"
	FactorSentiment         = "sentiment"
	FactorInstitutionalFlow = "institutional_flow"
)

// AllFactors lists the built-in factors in canonical order.
var AllFactors = []string{
	FactorFundamentals,
	FactorMomentum,
	FactorQuality,
	FactorSentiment,
	FactorInstitutionalFlow,
}

// Neutral values substituted when an analyzer cannot produce a reading.
const (
	NeutralScore      = 50.0
	NeutralConfidence = 0.2
)

// FactorReading is one factor's point-in-time opinion of a symbol.
// A reading dated D never uses data after D.
type FactorReading struct {
	Symbol     string             `json:"symbol"`
	Date       time.Time          `json:"date"`
	Factor     string             `json:"factor"`
	Score      float64            `json:"score"`      // 0..100
	Confidence float64            `json:"confidence"` // 0..1
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Reasoning  string             `json:"reasoning,omitempty"`
	Degraded   bool               `json:"degraded,omitempty"` // neutral default substituted
}

// NeutralReading returns the default reading used when an analyzer fails.
func NeutralReading(symbol, factor string, date time.Time, reason string) FactorReading {
	return FactorReading{
		Symbol:     symbol,
		Date:       date,
		Factor:     factor,
		Score:      NeutralScore,
		Confidence: NeutralConfidence,
		Reasoning:  reason,
		Degraded:   true,
	}
}

// WeightVector maps factor name to weight. A valid vector sums to 1.0.
type WeightVector map[string]float64

// WeightTolerance is the allowed deviation of a weight sum from 1.0.
const WeightTolerance = 1e-6

// Sum returns the total of all weights, added in factor name order so the
// result does not depend on map iteration.
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, k := range w.Factors() {
		total += w[k]
	}
	return total
}

// Clone returns an independent copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Normalized returns a copy scaled so the weights sum to 1.0.
// A vector with a non-positive sum is returned as an equal-weight vector.
func (w WeightVector) Normalized() WeightVector {
	out := make(WeightVector, len(w))
	total := w.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		if len(w) == 0 {
			return out
		}
		eq := 1.0 / float64(len(w))
		for k := range w {
			out[k] = eq
		}
		return out
	}
	for k, v := range w {
		out[k] = v / total
	}
	return out
}

// Validate checks that all weights are non-negative and sum to 1.0.
func (w WeightVector) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("weight vector is empty")
	}
	for _, k := range w.Factors() {
		v := w[k]
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight for %s must be non-negative, got %v", k, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.8f", sum)
	}
	return nil
}

// Factors returns the factor names sorted alphabetically.
func (w WeightVector) Factors() []string {
	names := make([]string, 0, len(w))
	for k := range w {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
