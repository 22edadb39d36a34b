package provider

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"equity-factor-lab/internal/domain"
)

// chartFetcher returns raw Yahoo chart bars for a symbol.
type chartFetcher func(symbol string, start, end time.Time) ([]*finance.ChartBar, error)

// YahooProvider reads daily bars from the Yahoo Finance chart API.
type YahooProvider struct {
	fetch chartFetcher
}

var _ Provider = (*YahooProvider)(nil)

// NewYahooProvider creates a provider backed by Yahoo Finance.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{fetch: fetchChart}
}

func fetchChart(symbol string, start, end time.Time) ([]*finance.ChartBar, error) {
	// Yahoo treats End as exclusive.
	end = end.AddDate(0, 0, 1)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []*finance.ChartBar
	for iter.Next() {
		bars = append(bars, iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// History fetches daily bars for one symbol.
func (p *YahooProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = canonicalSymbol(symbol)

	bars, err := p.fetch(symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	points := normalize(chartPoints(bars), start, end)
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// chartPoints converts decimal chart bars, scaling OHLC by the adjusted close
// ratio so splits and dividends do not show up as returns.
func chartPoints(bars []*finance.ChartBar) []domain.PricePoint {
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		if b == nil {
			continue
		}
		closePx := b.Close.InexactFloat64()
		adj := b.AdjClose.InexactFloat64()
		factor := 1.0
		if closePx > 0 && adj > 0 {
			factor = adj / closePx
		}
		points = append(points, domain.PricePoint{
			Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open.InexactFloat64() * factor,
			High:   b.High.InexactFloat64() * factor,
			Low:    b.Low.InexactFloat64() * factor,
			Close:  closePx * factor,
			Volume: float64(b.Volume),
		})
	}
	return points
}
