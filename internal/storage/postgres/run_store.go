package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
// Summary columns are denormalised for listing; the full result is a JSONB document.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
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
		createdAt = time.Now().UTC()
	}
	m := result.PerformanceMetrics

	query := `
		INSERT INTO backtest_runs (
			run_id, created_at, status, start_date, end_date,
			total_return, cagr, sharpe_ratio, max_drawdown, trade_count,
			config, result
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
	`

	err = s.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			runID, createdAt, result.Status, cfg.StartDate, cfg.EndDate,
			m.TotalReturn, m.CAGR, m.SharpeRatio, m.MaxDrawdown, len(result.Trades),
			string(cfgJSON), string(resultJSON),
		)
		return err
	})
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
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RunSummary
	for rows.Next() {
		var r domain.RunSummary
		err := rows.Scan(
			&r.RunID, &r.CreatedAt, &r.Status, &r.StartDate, &r.EndDate,
			&r.TotalReturn, &r.CAGR, &r.SharpeRatio, &r.MaxDrawdown, &r.TradeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return summaries, nil
}

// Get retrieves a full run result. Returns ErrNotFound if not exists.
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	query := `SELECT result FROM backtest_runs WHERE run_id = $1`

	var doc []byte
	if err := s.pool.QueryRow(ctx, query, runID).Scan(&doc); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}

	return storage.DecodeResult(doc)
}
