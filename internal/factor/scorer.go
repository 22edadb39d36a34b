package factor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
)

// HistorySource exposes point-in-time price history.
type HistorySource interface {
	// Slice returns the points of symbol dated on or before asOf.
	Slice(symbol string, asOf time.Time) []domain.PricePoint
}

// FundamentalsSource optionally supplies point-in-time fundamentals.
type FundamentalsSource interface {
	Fundamentals(symbol string, asOf time.Time) (map[string]float64, bool)
}

// ScorerOptions configures a Scorer.
type ScorerOptions struct {
	History      HistorySource
	Fundamentals FundamentalsSource // optional
	Analyzers    []Analyzer         // defaults to Builtin()
	Logger       zerolog.Logger
}

// Scorer runs every analyzer over a symbol's point-in-time snapshot.
// It is safe for concurrent use when the analyzers are.
type Scorer struct {
	history      HistorySource
	fundamentals FundamentalsSource
	analyzers    []Analyzer
	logger       zerolog.Logger
}

// NewScorer creates a Scorer. Analyzers are ordered by name; a later
// analyzer with the same name replaces an earlier one.
func NewScorer(opts ScorerOptions) *Scorer {
	analyzers := opts.Analyzers
	if len(analyzers) == 0 {
		analyzers = Builtin()
	}
	byName := make(map[string]Analyzer, len(analyzers))
	for _, a := range analyzers {
		byName[a.Name()] = a
	}
	ordered := make([]Analyzer, 0, len(byName))
	for _, a := range byName {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name() < ordered[j].Name() })

	return &Scorer{
		history:      opts.History,
		fundamentals: opts.Fundamentals,
		analyzers:    ordered,
		logger:       opts.Logger,
	}
}

// Factors returns the analyzer names in evaluation order.
func (s *Scorer) Factors() []string {
	names := make([]string, len(s.analyzers))
	for i, a := range s.analyzers {
		names[i] = a.Name()
	}
	return names
}

// Score returns one reading per factor for symbol as of asOf.
// ok is false when the symbol has no visible history at asOf.
// A failing or invalid analyzer yields a neutral degraded reading.
func (s *Scorer) Score(ctx context.Context, symbol string, asOf time.Time) (map[string]domain.FactorReading, bool) {
	snap, ok := buildSnapshot(s.history, s.fundamentals, symbol, asOf)
	if !ok {
		return nil, false
	}

	readings := make(map[string]domain.FactorReading, len(s.analyzers))
	for _, a := range s.analyzers {
		readings[a.Name()] = s.analyze(ctx, a, snap)
	}
	return readings, true
}

// buildSnapshot assembles the point-in-time view of symbol at asOf.
func buildSnapshot(history HistorySource, fundamentals FundamentalsSource, symbol string, asOf time.Time) (*Snapshot, bool) {
	pts := history.Slice(symbol, asOf)
	if len(pts) == 0 {
		return nil, false
	}
	snap := NewSnapshot(symbol, asOf, pts)
	if fundamentals != nil {
		if f, ok := fundamentals.Fundamentals(symbol, asOf); ok {
			snap.Fundamentals = f
		}
	}
	return snap, true
}

func (s *Scorer) analyze(ctx context.Context, a Analyzer, snap *Snapshot) domain.FactorReading {
	name := a.Name()

	res, err := a.Analyze(ctx, snap)
	if err == nil {
		err = res.validate()
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("symbol", snap.Symbol).
			Str("factor", name).
			Time("as_of", snap.AsOf).
			Msg("factor degraded to neutral")
		return domain.NeutralReading(snap.Symbol, name, snap.AsOf, fmt.Sprintf("neutral default: %v", err))
	}

	var metrics map[string]float64
	if len(res.Metrics) > 0 {
		metrics = make(map[string]float64, len(res.Metrics))
		for k, v := range res.Metrics {
			metrics[k] = v
		}
	}
	return domain.FactorReading{
		Symbol:     snap.Symbol,
		Date:       snap.AsOf,
		Factor:     name,
		Score:      res.Score,
		Confidence: res.Confidence,
		Metrics:    metrics,
		Reasoning:  res.Reasoning,
	}
}

// Composite combines readings into one score using
// sum(w*score*confidence) / sum(w*confidence). When every weighted
// confidence is zero it falls back to the plain weighted mean.
// Factors missing from readings are skipped.
func Composite(readings map[string]domain.FactorReading, weights domain.WeightVector) float64 {
	var num, den, plainNum, plainDen float64
	for _, f := range weights.Factors() {
		w := weights[f]
		r, ok := readings[f]
		if !ok || w <= 0 {
			continue
		}
		num += w * r.Score * r.Confidence
		den += w * r.Confidence
		plainNum += w * r.Score
		plainDen += w
	}
	switch {
	case den > 0:
		return num / den
	case plainDen > 0:
		return plainNum / plainDen
	default:
		return domain.NeutralScore
	}
}

// Degraded reports whether any reading is a neutral substitute.
func Degraded(readings map[string]domain.FactorReading) bool {
	for _, r := range readings {
		if r.Degraded {
			return true
		}
	}
	return false
}
