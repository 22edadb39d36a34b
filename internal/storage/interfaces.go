package storage

import (
	"context"
	"time"

	"equity-factor-lab/internal/domain"
)

// PriceStore provides access to daily_bars storage.
type PriceStore interface {
	// InsertBars adds bars. Fails entire batch on duplicate (symbol, date).
	InsertBars(ctx context.Context, bars []domain.SymbolBar) error

	// GetRange retrieves bars for a symbol within [start, end] (inclusive), ordered by date ASC.
	GetRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)

	// LastDate returns the most recent stored date for a symbol.
	// Returns ErrNotFound if the symbol has no bars.
	LastDate(ctx context.Context, symbol string) (time.Time, error)

	// Symbols lists every symbol with at least one bar, sorted.
	Symbols(ctx context.Context) ([]string, error)
}

// RunStore persists finished backtest runs.
type RunStore interface {
	// Save stores a run. Returns ErrDuplicateKey if run_id exists.
	Save(ctx context.Context, runID string, cfg domain.BacktestConfig, result *domain.BacktestResult) error

	// List returns up to limit run summaries, newest first.
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// Get retrieves a full run result. Returns ErrNotFound if not exists.
	Get(ctx context.Context, runID string) (*domain.BacktestResult, error)
}
