package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

type barKey struct {
	symbol string
	day    int64
}

// InsertBars adds bars. Fails entire batch on duplicate (symbol, trade_date).
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
func (s *PriceStore) InsertBars(ctx context.Context, bars []domain.SymbolBar) error {
	if len(bars) == 0 {
		return nil
	}

	seen := make(map[barKey]struct{}, len(bars))
	symbols := make(map[string]struct{})
	minDate, maxDate := bars[0].Date, bars[0].Date
	for _, b := range bars {
		if b.Symbol == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := barKey{b.Symbol, dayUTC(b.Date).Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		symbols[b.Symbol] = struct{}{}
		if b.Date.Before(minDate) {
			minDate = b.Date
		}
		if b.Date.After(maxDate) {
			maxDate = b.Date
		}
	}

	existing, err := s.existingKeys(ctx, symbols, minDate, maxDate)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for k := range seen {
		if _, exists := existing[k]; exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (
			symbol, trade_date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *PriceStore) GetRange(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// LastDate returns the most recent stored date for a symbol.
func (s *PriceStore) LastDate(ctx context.Context, symbol string) (time.Time, error) {
	var (
		count uint64
		last  time.Time
	)
	err := s.conn.QueryRow(ctx,
		`SELECT count(), max(trade_date) FROM daily_bars WHERE symbol = ?`, symbol,
	).Scan(&count, &last)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last date: %w", err)
	}
	if count == 0 {
		return time.Time{}, storage.ErrNotFound
	}
	return last.UTC(), nil
}

// Symbols lists every symbol with at least one bar, sorted.
func (s *PriceStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM daily_bars`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// existingKeys loads the stored keys that could collide with a batch.
func (s *PriceStore) existingKeys(ctx context.Context, symbols map[string]struct{}, minDate, maxDate time.Time) (map[barKey]struct{}, error) {
	list := make([]string, 0, len(symbols))
	for sym := range symbols {
		list = append(list, sym)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT symbol, trade_date FROM daily_bars
		WHERE symbol IN (?) AND trade_date >= ? AND trade_date <= ?
	`, list, minDate, maxDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[barKey]struct{})
	for rows.Next() {
		var (
			sym string
			d   time.Time
		)
		if err := rows.Scan(&sym, &d); err != nil {
			return nil, err
		}
		existing[barKey{sym, dayUTC(d).Unix()}] = struct{}{}
	}
	return existing, rows.Err()
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan daily bar row: %w", err)
		}
		p.Date = dayUTC(p.Date)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bar rows: %w", err)
	}

	return points, nil
}

// dayUTC maps a Date32 value back to UTC midnight.
func dayUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
