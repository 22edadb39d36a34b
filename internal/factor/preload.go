package factor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-factor-lab/internal/calendar"
)

// Networked is implemented by analyzers that call out of process.
type Networked interface {
	Analyzer
	Networked() bool
}

// Networked reports true: every Analyze is an HTTP round trip.
func (a *RemoteAnalyzer) Networked() bool { return true }

type preloadKey struct {
	symbol string
	day    int64
}

type preloadAnswer struct {
	analysis Analysis
	err      error
}

// PreloadedAnalyzer serves analyses computed ahead of the run. A snapshot
// outside the preloaded grid fails, which the scorer turns into a neutral
// reading.
type PreloadedAnalyzer struct {
	name    string
	answers map[preloadKey]preloadAnswer
}

var _ Analyzer = (*PreloadedAnalyzer)(nil)

// PreloadOptions configures Preload.
type PreloadOptions struct {
	History      HistorySource
	Fundamentals FundamentalsSource // optional
	Symbols      []string
	Dates        []time.Time
	Workers      int
}

// Preload runs a for every symbol on every date and keeps the answers.
// Per-call failures are stored and replayed; only cancellation aborts.
func Preload(ctx context.Context, a Analyzer, opts PreloadOptions) (*PreloadedAnalyzer, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	p := &PreloadedAnalyzer{
		name:    a.Name(),
		answers: make(map[preloadKey]preloadAnswer, len(opts.Symbols)*len(opts.Dates)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, day := range opts.Dates {
		for _, sym := range opts.Symbols {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				snap, ok := buildSnapshot(opts.History, opts.Fundamentals, sym, day)
				if !ok {
					return nil
				}
				res, err := a.Analyze(gctx, snap)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				p.answers[preloadKey{sym, calendar.Day(day).Unix()}] = preloadAnswer{res, err}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("preload %s: %w", p.name, err)
	}
	return p, nil
}

// Name returns the wrapped analyzer's factor.
func (p *PreloadedAnalyzer) Name() string { return p.name }

// Len returns the number of stored answers.
func (p *PreloadedAnalyzer) Len() int { return len(p.answers) }

// Analyze returns the stored answer for the snapshot's symbol and day.
func (p *PreloadedAnalyzer) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	ans, ok := p.answers[preloadKey{snap.Symbol, calendar.Day(snap.AsOf).Unix()}]
	if !ok {
		return Analysis{}, fmt.Errorf("%s: no preloaded analysis for %s on %s", p.name, snap.Symbol, snap.AsOf.Format("2006-01-02"))
	}
	return ans.analysis, ans.err
}
