// Package series holds the point-in-time price history of a backtest.
package series

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/lookup"
	"equity-factor-lab/internal/provider"
)

// ErrInsufficientData is returned when the data cannot support a run.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError describes why a load was unusable.
type InsufficientDataError struct {
	Reason  string
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("insufficient data: %s", e.Reason)
	}
	return fmt.Sprintf("insufficient data: %s (missing: %s)", e.Reason, strings.Join(e.Missing, ", "))
}

// Is matches ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// DefaultLookbackDays is the calendar-day buffer loaded before the start date.
const DefaultLookbackDays = 400

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Provider     provider.Provider
	LookbackDays int // calendar days before start; default 400
	Workers      int // parallel fetches; default 8
	Logger       zerolog.Logger
}

// Loader performs the one-time bulk load of a backtest's history.
type Loader struct {
	opts LoaderOptions
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Loader{opts: opts}
}

// Load fetches [start - lookback, end] for every universe symbol and the
// benchmark in parallel. Symbols without data are excluded and logged.
// A missing benchmark or an empty universe yields *InsufficientDataError.
func (l *Loader) Load(ctx context.Context, universe []string, benchmark string, start, end time.Time) (*Store, error) {
	start, end = calendar.Day(start), calendar.Day(end)
	from := start.AddDate(0, 0, -l.opts.LookbackDays)
	benchmark = strings.ToUpper(benchmark)

	symbols := uniqueSymbols(append([]string{benchmark}, universe...))

	var (
		mu      sync.Mutex
		loaded  = make(map[string][]domain.PricePoint, len(symbols))
		missing []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			points, err := l.opts.Provider.History(gctx, sym, from, end)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.opts.Logger.Warn().Err(err).Str("symbol", sym).Msg("excluding symbol without history")
				mu.Lock()
				missing = append(missing, sym)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			loaded[sym] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if _, ok := loaded[benchmark]; !ok {
		return nil, &InsufficientDataError{Reason: "benchmark has no history", Missing: []string{benchmark}}
	}

	store, err := New(benchmark, universe, loaded)
	if err != nil {
		return nil, err
	}

	l.opts.Logger.Info().
		Int("symbols", len(store.Symbols())).
		Int("excluded", len(store.Excluded())).
		Time("from", from).
		Time("to", end).
		Msg("history loaded")
	return store, nil
}

// Store is an immutable set of per-symbol price series.
type Store struct {
	benchmark string
	universe  []string
	series    map[string][]domain.PricePoint
	excluded  []string
}

// New builds a Store from preloaded series. Universe symbols absent from
// series are excluded. Returns *InsufficientDataError when the benchmark or
// every universe symbol is missing.
func New(benchmark string, universe []string, series map[string][]domain.PricePoint) (*Store, error) {
	benchmark = strings.ToUpper(benchmark)
	s := &Store{
		benchmark: benchmark,
		series:    make(map[string][]domain.PricePoint, len(series)),
	}
	for sym, pts := range series {
		if len(pts) == 0 {
			continue
		}
		cp := make([]domain.PricePoint, len(pts))
		copy(cp, pts)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
		s.series[strings.ToUpper(sym)] = cp
	}

	if !s.Has(benchmark) {
		return nil, &InsufficientDataError{Reason: "benchmark has no history", Missing: []string{benchmark}}
	}

	for _, sym := range uniqueSymbols(universe) {
		if s.Has(sym) {
			s.universe = append(s.universe, sym)
		} else {
			s.excluded = append(s.excluded, sym)
		}
	}
	if len(s.universe) == 0 {
		return nil, &InsufficientDataError{Reason: "no universe symbol has history", Missing: s.excluded}
	}
	return s, nil
}

// Benchmark returns the benchmark symbol.
func (s *Store) Benchmark() string { return s.benchmark }

// Symbols returns the universe symbols with data, sorted.
func (s *Store) Symbols() []string {
	out := make([]string, len(s.universe))
	copy(out, s.universe)
	return out
}

// Excluded returns universe symbols that had no data, sorted.
func (s *Store) Excluded() []string {
	out := make([]string, len(s.excluded))
	copy(out, s.excluded)
	return out
}

// Has reports whether symbol has loaded data.
func (s *Store) Has(symbol string) bool {
	_, ok := s.series[symbol]
	return ok
}

// Slice returns the points of symbol dated on or before asOf.
// The result shares storage with the store and must not be modified.
func (s *Store) Slice(symbol string, asOf time.Time) []domain.PricePoint {
	return lookup.VisibleAt(s.series[symbol], asOf)
}

// Closes returns the closes of symbol dated on or before asOf.
func (s *Store) Closes(symbol string, asOf time.Time) []float64 {
	pts := s.Slice(symbol, asOf)
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Close
	}
	return out
}

// CloseOn returns the close of symbol on exactly date.
func (s *Store) CloseOn(symbol string, date time.Time) (float64, bool) {
	return lookup.CloseOn(s.series[symbol], date)
}

// LastCloseOnOrBefore returns the latest close at or before date and its day.
func (s *Store) LastCloseOnOrBefore(symbol string, date time.Time) (float64, time.Time, bool) {
	px, at, err := lookup.CloseAt(s.series[symbol], date)
	if err != nil {
		return 0, time.Time{}, false
	}
	return px, at, true
}

// TradingDays returns the benchmark's trading days inside [start, end].
func (s *Store) TradingDays(start, end time.Time) []time.Time {
	start, end = calendar.Day(start), calendar.Day(end)
	var days []time.Time
	for _, p := range s.series[s.benchmark] {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		days = append(days, p.Date)
	}
	return days
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
