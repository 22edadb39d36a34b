package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// RunStore implements storage.RunStore using SQLite.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore on a migrated database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Save stores a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Save(ctx context.Context, runID string, cfg domain.BacktestConfig, result *domain.BacktestResult) error {
	if err := storage.ValidateRun(runID, result); err != nil {
		return err
	}

	cfgJSON, resultJSON, err := storage.EncodeRun(runID, cfg, result)
	if err != nil {
		return err
	}

	createdAt := result.FinishedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	m := result.PerformanceMetrics

	query := `
		INSERT INTO backtest_runs (
			run_id, created_at, status, start_date, end_date,
			total_return, cagr, sharpe_ratio, max_drawdown, trade_count,
			config, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		runID, formatTime(createdAt), result.Status, formatTime(cfg.StartDate), formatTime(cfg.EndDate),
		m.TotalReturn, m.CAGR, m.SharpeRatio, m.MaxDrawdown, len(result.Trades),
		string(cfgJSON), string(resultJSON),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// List returns up to limit run summaries, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			run_id, created_at, status, start_date, end_date,
			total_return, cagr, sharpe_ratio, max_drawdown, trade_count
		FROM backtest_runs
		ORDER BY created_at DESC, run_id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RunSummary
	for rows.Next() {
		var (
			r                   domain.RunSummary
			created, start, end string
		)
		err := rows.Scan(
			&r.RunID, &created, &r.Status, &start, &end,
			&r.TotalReturn, &r.CAGR, &r.SharpeRatio, &r.MaxDrawdown, &r.TradeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if r.StartDate, err = parseTime(start); err != nil {
			return nil, err
		}
		if r.EndDate, err = parseTime(end); err != nil {
			return nil, err
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return summaries, nil
}

// Get retrieves a full run result. Returns ErrNotFound if not exists.
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM backtest_runs WHERE run_id = ?`, runID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}
	return storage.DecodeResult([]byte(doc))
}

// Timestamps are stored as fixed-width UTC text so lexical order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
