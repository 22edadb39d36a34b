package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/provider"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daily(start time.Time, closes ...float64) []domain.PricePoint {
	pts := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		pts[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c, Open: c, High: c, Low: c, Volume: 100}
	}
	return pts
}

func TestLoader_ExcludesMissingSymbols(t *testing.T) {
	p := provider.NewStatic(map[string][]domain.PricePoint{
		"SPY":  daily(day(2024, 1, 1), 1, 2, 3),
		"AAPL": daily(day(2024, 1, 1), 10, 11, 12),
	})
	l := NewLoader(LoaderOptions{Provider: p, LookbackDays: 10, Workers: 2, Logger: zerolog.Nop()})

	s, err := l.Load(context.Background(), []string{"aapl", "MSFT", "AAPL"}, "spy", day(2024, 1, 2), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Symbols(); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("expected [AAPL], got %v", got)
	}
	if got := s.Excluded(); len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("expected [MSFT] excluded, got %v", got)
	}
	if !s.Has("AAPL") || !s.Has("SPY") || s.Has("MSFT") {
		t.Error("Has should report only loaded series")
	}
	// Lookback is loaded too.
	if got := len(s.Slice("AAPL", day(2024, 1, 3))); got != 3 {
		t.Errorf("expected 3 visible points, got %d", got)
	}
	if p.Calls("AAPL") != 1 {
		t.Errorf("expected one fetch per symbol, got %d", p.Calls("AAPL"))
	}
}

func TestLoader_MissingBenchmark(t *testing.T) {
	p := provider.NewStatic(map[string][]domain.PricePoint{
		"AAPL": daily(day(2024, 1, 1), 10),
	})
	l := NewLoader(LoaderOptions{Provider: p, Logger: zerolog.Nop()})

	_, err := l.Load(context.Background(), []string{"AAPL"}, "SPY", day(2024, 1, 1), day(2024, 1, 3))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	var ide *InsufficientDataError
	if !errors.As(err, &ide) || ide.Missing[0] != "SPY" {
		t.Errorf("expected missing SPY, got %v", err)
	}
}

func TestLoader_AllSymbolsMissing(t *testing.T) {
	p := provider.NewStatic(map[string][]domain.PricePoint{
		"SPY": daily(day(2024, 1, 1), 1),
	})
	l := NewLoader(LoaderOptions{Provider: p, Logger: zerolog.Nop()})

	_, err := l.Load(context.Background(), []string{"AAPL", "MSFT"}, "SPY", day(2024, 1, 1), day(2024, 1, 3))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestLoader_Cancelled(t *testing.T) {
	p := provider.NewStatic(map[string][]domain.PricePoint{"SPY": daily(day(2024, 1, 1), 1)})
	l := NewLoader(LoaderOptions{Provider: p, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, []string{"SPY"}, "SPY", day(2024, 1, 1), day(2024, 1, 3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStore_PointInTime(t *testing.T) {
	s, err := New("SPY", []string{"AAPL"}, map[string][]domain.PricePoint{
		"SPY":  daily(day(2024, 1, 1), 1, 2, 3, 4),
		"AAPL": {{Date: day(2024, 1, 1), Close: 10}, {Date: day(2024, 1, 3), Close: 12}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.Slice("AAPL", day(2024, 1, 2)); len(got) != 1 || got[0].Close != 10 {
		t.Errorf("slice leaked future data: %v", got)
	}
	if _, ok := s.CloseOn("AAPL", day(2024, 1, 2)); ok {
		t.Error("AAPL did not trade on Jan 2")
	}
	px, at, ok := s.LastCloseOnOrBefore("AAPL", day(2024, 1, 2))
	if !ok || px != 10 || !at.Equal(day(2024, 1, 1)) {
		t.Errorf("unexpected last close %v %v %v", px, at, ok)
	}
	if _, _, ok := s.LastCloseOnOrBefore("AAPL", day(2023, 12, 31)); ok {
		t.Error("expected no close before first bar")
	}
	if got := s.TradingDays(day(2024, 1, 2), day(2024, 1, 3)); len(got) != 2 {
		t.Errorf("expected 2 trading days, got %v", got)
	}
	if got := s.Closes("SPY", day(2024, 1, 2)); len(got) != 2 || got[1] != 2 {
		t.Errorf("unexpected closes %v", got)
	}
}
