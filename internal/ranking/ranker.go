// Package ranking combines factor readings into a deterministic ranking.
package ranking

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/factor"
)

// Scorer produces factor readings for a symbol at a date.
type Scorer interface {
	Score(ctx context.Context, symbol string, asOf time.Time) (map[string]domain.FactorReading, bool)
}

// Ranked is one symbol's place in a ranking.
type Ranked struct {
	Symbol    string
	Rank      int // 1-based
	Composite float64
	Readings  map[string]domain.FactorReading
}

// Ranker scores a universe in a bounded worker pool and orders the result.
type Ranker struct {
	scorer  Scorer
	workers int
}

// New creates a Ranker with at most workers concurrent scorings.
func New(scorer Scorer, workers int) *Ranker {
	if workers < 1 {
		workers = 1
	}
	return &Ranker{scorer: scorer, workers: workers}
}

// Rank scores every symbol visible at asOf and returns them by composite
// score descending, ties broken alphabetically. Symbols without visible
// history are left out.
func (r *Ranker) Rank(ctx context.Context, universe []string, asOf time.Time, weights domain.WeightVector) ([]Ranked, error) {
	results := make([]*Ranked, len(universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sym := range universe {
		i, sym := i, sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			readings, ok := r.scorer.Score(gctx, sym, asOf)
			if !ok {
				return nil
			}
			results[i] = &Ranked{
				Symbol:    sym,
				Composite: factor.Composite(readings, weights),
				Readings:  readings,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := make([]Ranked, 0, len(results))
	for _, res := range results {
		if res != nil {
			ranked = append(ranked, *res)
		}
	}
	Sort(ranked)
	return ranked, nil
}

// Sort orders by composite descending then symbol ascending, and assigns ranks.
func Sort(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
}

// Select returns the first n entries of a sorted ranking.
func Select(ranked []Ranked, n int) []Ranked {
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Position returns the 1-based rank of symbol, or 0 if absent.
func Position(ranked []Ranked, symbol string) int {
	for _, r := range ranked {
		if r.Symbol == symbol {
			return r.Rank
		}
	}
	return 0
}
