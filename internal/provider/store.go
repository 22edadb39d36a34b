package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// StoreProvider serves history from a storage.PriceStore (ClickHouse or memory).
type StoreProvider struct {
	store storage.PriceStore
}

var _ Provider = (*StoreProvider)(nil)

// NewStoreProvider wraps a price store.
func NewStoreProvider(store storage.PriceStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// History reads bars from the store.
func (p *StoreProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	points, err := p.store.GetRange(ctx, canonicalSymbol(symbol), start, end)
	if err != nil {
		return nil, fmt.Errorf("price store range %s: %w", symbol, err)
	}
	points = normalize(points, start, end)
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// Static serves fixed in-memory series. Used by tests and fixtures.
type Static struct {
	mu     sync.RWMutex
	series map[string][]domain.PricePoint
	calls  map[string]int
}

var _ Provider = (*Static)(nil)

// NewStatic creates a Static provider from per-symbol series.
func NewStatic(series map[string][]domain.PricePoint) *Static {
	s := &Static{
		series: make(map[string][]domain.PricePoint, len(series)),
		calls:  make(map[string]int),
	}
	for sym, pts := range series {
		cp := make([]domain.PricePoint, len(pts))
		copy(cp, pts)
		sort.Slice(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
		s.series[canonicalSymbol(sym)] = cp
	}
	return s
}

// History returns the stored bars inside the range.
func (s *Static) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = canonicalSymbol(symbol)

	s.mu.Lock()
	s.calls[symbol]++
	pts := s.series[symbol]
	s.mu.Unlock()

	out := normalize(pts, start, end)
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// Calls returns how many times History was called for symbol.
func (s *Static) Calls(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[canonicalSymbol(symbol)]
}
