package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.PricePoint // symbol -> unix day -> bar
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]map[int64]domain.PricePoint),
	}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBars adds bars. Fails entire batch on duplicate.
func (s *PriceStore) InsertBars(_ context.Context, bars []domain.SymbolBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		symbol string
		day    int64
	}
	batchKeys := make(map[key]struct{}, len(bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range bars {
		if strings.TrimSpace(b.Symbol) == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, b.Date.Unix()}
		if _, exists := s.data[b.Symbol][k.day]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		bySymbol, ok := s.data[b.Symbol]
		if !ok {
			bySymbol = make(map[int64]domain.PricePoint)
			s.data[b.Symbol] = bySymbol
		}
		bySymbol[b.Date.Unix()] = b.PricePoint
	}

	return nil
}

// GetRange retrieves bars for a symbol within [start, end], ordered by date ASC.
func (s *PriceStore) GetRange(_ context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricePoint
	for _, p := range s.data[symbol] {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// LastDate returns the most recent stored date for a symbol.
func (s *PriceStore) LastDate(_ context.Context, symbol string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, p := range s.data[symbol] {
		if p.Date.After(last) {
			last = p.Date
		}
	}
	if last.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return last, nil
}

// Symbols lists every symbol with at least one bar, sorted.
func (s *PriceStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data))
	for sym, bars := range s.data {
		if len(bars) > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
