package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"equity-factor-lab/internal/domain"
)

// barRecord is the on-disk schema of a daily bar file.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ParquetStore reads and writes daily bars as one Parquet file per symbol
// and year: <dir>/us/daily/<SYMBOL>/<YYYY>.parquet.
type ParquetStore struct {
	dir string
}

var _ Provider = (*ParquetStore)(nil)

// NewParquetStore creates a store rooted at dir.
func NewParquetStore(dir string) *ParquetStore {
	return &ParquetStore{dir: dir}
}

func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.dir, "us", "daily", canonicalSymbol(symbol), strconv.Itoa(year)+".parquet")
}

// History reads bars for one symbol from the yearly files covering the range.
func (s *ParquetStore) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	var points []domain.PricePoint
	for year := start.Year(); year <= end.Year(); year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := parquet.ReadFile[barRecord](s.barPath(symbol, year))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read parquet %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			points = append(points, recordPoint(r))
		}
	}

	points = normalize(points, start, end)
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// WriteBars merges bars into the yearly files, replacing existing bars on the
// same day.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.SymbolBar) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]barRecord)
	for _, b := range bars {
		k := key{symbol: canonicalSymbol(b.Symbol), year: b.Date.UTC().Year()}
		groups[k] = append(groups[k], pointRecord(k.symbol, b.PricePoint))
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		existing, err := parquet.ReadFile[barRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read parquet %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeRecords(existing, records)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create parquet dir: %w", err)
		}
		if err := parquet.WriteFile(path, merged); err != nil {
			return fmt.Errorf("write parquet %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// Symbols lists every symbol directory, sorted.
func (s *ParquetStore) Symbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "us", "daily"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list parquet symbols: %w", err)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// mergeRecords deduplicates by timestamp, preferring incoming records.
func mergeRecords(existing, incoming []barRecord) []barRecord {
	byTS := make(map[int64]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		byTS[r.Timestamp] = r
	}
	for _, r := range incoming {
		byTS[r.Timestamp] = r
	}
	out := make([]barRecord, 0, len(byTS))
	for _, r := range byTS {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func recordPoint(r barRecord) domain.PricePoint {
	return domain.PricePoint{
		Date:   time.UnixMilli(r.Timestamp).UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: float64(r.Volume),
	}
}

func pointRecord(symbol string, p domain.PricePoint) barRecord {
	y, m, d := p.Date.UTC().Date()
	return barRecord{
		Symbol:    symbol,
		Timestamp: time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Open:      p.Open,
		High:      p.High,
		Low:       p.Low,
		Close:     p.Close,
		Volume:    int64(p.Volume),
	}
}
