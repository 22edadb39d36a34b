package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

func bar(symbol string, day int, close float64) domain.SymbolBar {
	return domain.SymbolBar{
		Symbol: symbol,
		PricePoint: domain.PricePoint{
			Date:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 1000,
		},
	}
}

func TestPriceStore_InsertAndGetRange(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	// Inserted out of order on purpose
	bars := []domain.SymbolBar{bar("AAPL", 4, 12), bar("AAPL", 2, 10), bar("AAPL", 3, 11), bar("MSFT", 2, 50)}
	if err := store.InsertBars(ctx, bars); err != nil {
		t.Fatalf("InsertBars failed: %v", err)
	}

	got, err := store.GetRange(ctx, "AAPL",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(got))
	}
	if got[0].Close != 10 || got[1].Close != 11 {
		t.Errorf("Expected ordered closes [10 11], got [%v %v]", got[0].Close, got[1].Close)
	}
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	if err := store.InsertBars(ctx, []domain.SymbolBar{bar("AAPL", 2, 10)}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBars(ctx, []domain.SymbolBar{bar("AAPL", 3, 11), bar("AAPL", 2, 10)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Entire batch rejected
	if _, err := store.LastDate(ctx, "AAPL"); err != nil {
		t.Fatalf("LastDate failed: %v", err)
	}
	got, _ := store.GetRange(ctx, "AAPL", time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(got) != 1 {
		t.Errorf("Expected batch to be rejected atomically, found %d bars", len(got))
	}
}

func TestPriceStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceStore()

	err := store.InsertBars(context.Background(), []domain.SymbolBar{bar("AAPL", 2, 10), bar("AAPL", 2, 10)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore()

	err := store.InsertBars(context.Background(), []domain.SymbolBar{bar("", 2, 10)})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceStore_LastDateAndSymbols(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	if _, err := store.LastDate(ctx, "AAPL"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = store.InsertBars(ctx, []domain.SymbolBar{bar("MSFT", 2, 50), bar("AAPL", 5, 10), bar("AAPL", 3, 9)})

	last, err := store.LastDate(ctx, "AAPL")
	if err != nil {
		t.Fatalf("LastDate failed: %v", err)
	}
	if last.Day() != 5 {
		t.Errorf("Expected last day 5, got %d", last.Day())
	}

	symbols, _ := store.Symbols(ctx)
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("Expected [AAPL MSFT], got %v", symbols)
	}
}
