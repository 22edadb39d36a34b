package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"equity-factor-lab/internal/domain"
)

// alpacaClient is the subset of marketdata.Client used here.
type alpacaClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaProvider.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional data API override
	Feed      string // sip | iex
}

// AlpacaProvider reads split- and dividend-adjusted daily bars from the
// Alpaca market data API.
type AlpacaProvider struct {
	client alpacaClient
	feed   marketdata.Feed
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider creates a provider backed by the Alpaca data API.
func NewAlpacaProvider(opts AlpacaOptions) *AlpacaProvider {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = opts.BaseURL
	}
	return newAlpacaProvider(marketdata.NewClient(clientOpts), opts.Feed)
}

func newAlpacaProvider(client alpacaClient, feed string) *AlpacaProvider {
	f := marketdata.SIP
	if feed == "iex" {
		f = marketdata.IEX
	}
	return &AlpacaProvider{client: client, feed: f}
}

func (p *AlpacaProvider) request(start, end time.Time) marketdata.GetBarsRequest {
	return marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		// End is exclusive on the API side.
		End:  end.AddDate(0, 0, 1),
		Feed: p.feed,
	}
}

// History fetches daily bars for one symbol.
func (p *AlpacaProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = canonicalSymbol(symbol)

	bars, err := p.client.GetBars(symbol, p.request(start, end))
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}

	points := normalize(alpacaPoints(bars), start, end)
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// Batch fetches daily bars for several symbols in one request.
// Symbols with no bars are absent from the result.
func (p *AlpacaProvider) Batch(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	canonical := make([]string, len(symbols))
	for i, s := range symbols {
		canonical[i] = canonicalSymbol(s)
	}

	multi, err := p.client.GetMultiBars(canonical, p.request(start, end))
	if err != nil {
		return nil, fmt.Errorf("alpaca multi bars: %w", err)
	}

	out := make(map[string][]domain.PricePoint, len(multi))
	for symbol, bars := range multi {
		if points := normalize(alpacaPoints(bars), start, end); len(points) > 0 {
			out[symbol] = points
		}
	}
	return out, nil
}

func alpacaPoints(bars []marketdata.Bar) []domain.PricePoint {
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.PricePoint{
			Date:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return points
}
