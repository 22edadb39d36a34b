package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/provider"
	"equity-factor-lab/internal/storage"
)

// Source is a remote history provider.
type Source = provider.Provider

// batchSource fetches many symbols in one request.
type batchSource interface {
	Batch(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PricePoint, error)
}

// Sink stores daily bars.
type Sink interface {
	WriteBars(ctx context.Context, bars []domain.SymbolBar) error
}

// lastDater reports the newest stored bar of a symbol.
type lastDater interface {
	LastDate(ctx context.Context, symbol string) (time.Time, error)
}

// storeSink writes into a storage.PriceStore. The store rejects duplicate
// days, so Ingest resumes after LastDate for each symbol.
type storeSink struct {
	storage.PriceStore
}

func (s storeSink) WriteBars(ctx context.Context, bars []domain.SymbolBar) error {
	return s.InsertBars(ctx, bars)
}

// Options configures one ingest run.
type Options struct {
	Source  Source
	Sink    Sink
	Symbols []string
	Start   time.Time
	End     time.Time
	Workers int
	Logger  zerolog.Logger
}

// Stats summarizes an ingest run.
type Stats struct {
	Symbols  int
	Bars     int
	UpToDate int
	Empty    []string
}

// Ingest fetches [Start, End] for every symbol and writes the bars to the
// sink. Symbols with no data are reported in Stats.Empty rather than failing.
func Ingest(ctx context.Context, opts Options) (Stats, error) {
	from, err := resumePoints(ctx, opts)
	if err != nil {
		return Stats{}, err
	}

	var (
		stats   Stats
		pending []string
		start   = opts.End.AddDate(0, 0, 1)
	)
	for _, sym := range opts.Symbols {
		if from[sym].After(opts.End) {
			stats.UpToDate++
			continue
		}
		pending = append(pending, sym)
		if from[sym].Before(start) {
			start = from[sym]
		}
	}
	if len(pending) == 0 {
		return stats, nil
	}

	bySymbol, err := fetch(ctx, opts.Source, pending, start, opts.End, opts.Workers)
	if err != nil {
		return stats, err
	}

	for _, sym := range pending {
		var bars []domain.SymbolBar
		for _, p := range bySymbol[sym] {
			if p.Date.Before(from[sym]) {
				continue
			}
			bars = append(bars, domain.SymbolBar{Symbol: sym, PricePoint: p})
		}
		if len(bars) == 0 {
			stats.Empty = append(stats.Empty, sym)
			opts.Logger.Warn().Str("symbol", sym).Msg("no new bars returned")
			continue
		}
		if err := opts.Sink.WriteBars(ctx, bars); err != nil {
			return stats, fmt.Errorf("write %s: %w", sym, err)
		}
		stats.Symbols++
		stats.Bars += len(bars)
		opts.Logger.Debug().Str("symbol", sym).Int("bars", len(bars)).Msg("stored")
	}
	sort.Strings(stats.Empty)
	return stats, nil
}

// resumePoints returns the first day to fetch for each symbol.
func resumePoints(ctx context.Context, opts Options) (map[string]time.Time, error) {
	start := calendar.Day(opts.Start)
	from := make(map[string]time.Time, len(opts.Symbols))
	ld, ok := opts.Sink.(lastDater)
	for _, sym := range opts.Symbols {
		from[sym] = start
		if !ok {
			continue
		}
		last, err := ld.LastDate(ctx, sym)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("last stored date for %s: %w", sym, err)
		}
		if next := calendar.Day(last).AddDate(0, 0, 1); next.After(start) {
			from[sym] = next
		}
	}
	return from, nil
}

func fetch(ctx context.Context, src Source, symbols []string, start, end time.Time, workers int) (map[string][]domain.PricePoint, error) {
	if b, ok := src.(batchSource); ok {
		out, err := b.Batch(ctx, symbols, start, end)
		if err != nil {
			return nil, fmt.Errorf("batch fetch: %w", err)
		}
		return out, nil
	}

	if workers < 1 {
		workers = 1
	}
	var (
		mu  sync.Mutex
		out = make(map[string][]domain.PricePoint, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sym := range symbols {
		g.Go(func() error {
			points, err := src.History(gctx, sym, start, end)
			if errors.Is(err, provider.ErrNoData) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w", sym, err)
			}
			mu.Lock()
			out[sym] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
