// Package provider fetches daily price history for the backtest.
//
// A Provider returns the daily bars of one symbol inside a closed date range.
// Concrete sources (Alpaca, Yahoo, Parquet files, a PriceStore) are wrapped by
// decorators that add rate limiting, a circuit breaker and a Redis cache.
package provider

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
)

// ErrNoData is returned when a source has no bars for the requested range.
var ErrNoData = errors.New("no price data for range")

// Provider is the historical data contract consumed by the series store.
type Provider interface {
	// History returns daily bars for symbol with Date in [start, end],
	// ordered by Date ASC. Returns ErrNoData when nothing is available.
	History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)

// History calls f.
func (f Func) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	return f(ctx, symbol, start, end)
}

// normalize sorts points, truncates dates to UTC days, drops bars outside
// [start, end] or without a usable close, and keeps the last bar per day.
func normalize(points []domain.PricePoint, start, end time.Time) []domain.PricePoint {
	start, end = calendar.Day(start), calendar.Day(end)

	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		p.Date = calendar.Day(p.Date)
		if p.Date.Before(start) || p.Date.After(end) || !p.Valid() {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// canonicalSymbol upper-cases and trims a ticker.
func canonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
