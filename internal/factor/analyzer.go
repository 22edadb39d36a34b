package factor

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Errors returned by analyzers. Both are recovered by the Scorer.
var (
	ErrFundamentalsUnavailable = errors.New("fundamentals unavailable")
	ErrInsufficientHistory     = errors.New("insufficient history")
)

// Analysis is an analyzer's raw verdict.
type Analysis struct {
	Score      float64            `json:"score"`      // 0..100
	Confidence float64            `json:"confidence"` // 0..1
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Reasoning  string             `json:"reasoning,omitempty"`
}

// validate rejects out-of-range or non-finite output.
func (a Analysis) validate() error {
	if math.IsNaN(a.Score) || a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("score %v outside [0,100]", a.Score)
	}
	if math.IsNaN(a.Confidence) || a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", a.Confidence)
	}
	return nil
}

// Analyzer scores one factor from a point-in-time snapshot.
// Implementations must be pure functions of the snapshot.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, snap *Snapshot) (Analysis, error)
}

// needHistory fails when the snapshot has fewer than n bars.
func needHistory(snap *Snapshot, n int) error {
	if snap.Bars < n {
		return fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, snap.Bars, n)
	}
	return nil
}
