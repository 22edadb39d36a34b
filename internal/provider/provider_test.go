package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	finance "github.com/piquette/finance-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-factor-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pt(date time.Time, closePx float64) domain.PricePoint {
	return domain.PricePoint{Date: date, Open: closePx, High: closePx, Low: closePx, Close: closePx, Volume: 1000}
}

func TestNormalize(t *testing.T) {
	in := []domain.PricePoint{
		pt(day(2024, 1, 5), 12),
		pt(day(2024, 1, 3).Add(14*time.Hour), 10), // intraday timestamp
		pt(day(2024, 1, 4), 0),                    // invalid close
		pt(day(2023, 12, 29), 9),                  // before range
		pt(day(2024, 1, 5), 13),                   // duplicate day, later wins
	}

	out := normalize(in, day(2024, 1, 1), day(2024, 1, 31))
	require.Len(t, out, 2)
	assert.True(t, out[0].Date.Equal(day(2024, 1, 3)))
	assert.Equal(t, 10.0, out[0].Close)
	assert.Equal(t, 13.0, out[1].Close)
}

type fakeAlpaca struct {
	bars  []marketdata.Bar
	multi map[string][]marketdata.Bar
	req   marketdata.GetBarsRequest
	err   error
}

func (f *fakeAlpaca) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func (f *fakeAlpaca) GetMultiBars(_ []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.req = req
	return f.multi, f.err
}

func TestAlpacaProvider_History(t *testing.T) {
	client := &fakeAlpaca{bars: []marketdata.Bar{
		{Timestamp: day(2024, 3, 1).Add(5 * time.Hour), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 300},
		{Timestamp: day(2024, 3, 4).Add(5 * time.Hour), Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 200},
	}}
	p := newAlpacaProvider(client, "iex")

	got, err := p.History(context.Background(), "aapl", day(2024, 3, 1), day(2024, 3, 4))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 300.0, got[0].Volume)
	assert.True(t, got[1].Date.Equal(day(2024, 3, 4)))

	assert.Equal(t, marketdata.IEX, client.req.Feed)
	assert.True(t, client.req.End.Equal(day(2024, 3, 5)), "end should be exclusive upstream")
}

func TestAlpacaProvider_Empty(t *testing.T) {
	p := newAlpacaProvider(&fakeAlpaca{}, "sip")
	_, err := p.History(context.Background(), "AAPL", day(2024, 3, 1), day(2024, 3, 4))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAlpacaProvider_Batch(t *testing.T) {
	client := &fakeAlpaca{multi: map[string][]marketdata.Bar{
		"AAPL": {{Timestamp: day(2024, 3, 1), Close: 10, Volume: 1}},
		"MSFT": nil,
	}}
	p := newAlpacaProvider(client, "sip")

	got, err := p.Batch(context.Background(), []string{"aapl", "msft"}, day(2024, 3, 1), day(2024, 3, 1))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, got["AAPL"], 1)
}

func TestChartPoints_AdjustsByAdjClose(t *testing.T) {
	bars := []*finance.ChartBar{
		{
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(110),
			Low:       decimal.NewFromInt(90),
			Close:     decimal.NewFromInt(100),
			AdjClose:  decimal.NewFromInt(50),
			Volume:    1000,
			Timestamp: int(day(2024, 2, 1).Add(14 * time.Hour).Unix()),
		},
		nil,
	}

	pts := chartPoints(bars)
	require.Len(t, pts, 1)
	assert.InDelta(t, 50.0, pts[0].Close, 1e-9)
	assert.InDelta(t, 55.0, pts[0].High, 1e-9)
	assert.Equal(t, 2024, pts[0].Date.Year())
}

func TestYahooProvider_History(t *testing.T) {
	p := &YahooProvider{fetch: func(symbol string, start, end time.Time) ([]*finance.ChartBar, error) {
		assert.Equal(t, "SPY", symbol)
		return []*finance.ChartBar{{
			Close:     decimal.NewFromFloat(400.5),
			AdjClose:  decimal.NewFromFloat(400.5),
			Timestamp: int(day(2024, 2, 1).Unix()),
		}}, nil
	}}

	got, err := p.History(context.Background(), "spy", day(2024, 1, 1), day(2024, 12, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 400.5, got[0].Close, 1e-9)
}

func TestYahooProvider_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	p := &YahooProvider{fetch: func(string, time.Time, time.Time) ([]*finance.ChartBar, error) {
		return nil, boom
	}}
	_, err := p.History(context.Background(), "SPY", day(2024, 1, 1), day(2024, 1, 2))
	assert.ErrorIs(t, err, boom)
}

func TestParquetStore_WriteAndRead(t *testing.T) {
	store := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.SymbolBar{
		{Symbol: "aapl", PricePoint: pt(day(2023, 12, 29), 190)},
		{Symbol: "AAPL", PricePoint: pt(day(2024, 1, 2), 185)},
		{Symbol: "AAPL", PricePoint: pt(day(2024, 1, 3), 184)},
	}
	require.NoError(t, store.WriteBars(ctx, bars))

	// Rewriting a day replaces it.
	require.NoError(t, store.WriteBars(ctx, []domain.SymbolBar{
		{Symbol: "AAPL", PricePoint: pt(day(2024, 1, 3), 186)},
	}))

	got, err := store.History(ctx, "AAPL", day(2023, 12, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 190.0, got[0].Close)
	assert.Equal(t, 186.0, got[2].Close)

	symbols, err := store.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)

	_, err = store.History(ctx, "MSFT", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestStatic_CopiesAndCounts(t *testing.T) {
	s := NewStatic(map[string][]domain.PricePoint{
		"spy": {pt(day(2024, 1, 3), 2), pt(day(2024, 1, 2), 1)},
	})

	got, err := s.History(context.Background(), "SPY", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 1, s.Calls("spy"))

	_, err = s.History(context.Background(), "QQQ", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRateLimited_RespectsContext(t *testing.T) {
	p := NewRateLimited(NewStatic(nil), 0.001, 1)
	ctx := context.Background()

	// First call consumes the only token.
	_, _ = p.History(ctx, "SPY", day(2024, 1, 1), day(2024, 1, 2))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := p.History(cctx, "SPY", day(2024, 1, 1), day(2024, 1, 2))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, string, time.Time, time.Time) ([]domain.PricePoint, error) {
		calls++
		return nil, errors.New("upstream 500")
	})
	p := NewCircuitBreaker(failing, BreakerOptions{MaxFailures: 2, OpenFor: time.Minute, Logger: zerolog.Nop()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.History(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 2))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.History(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 2))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestCircuitBreaker_NoDataIsNotAFailure(t *testing.T) {
	p := NewCircuitBreaker(NewStatic(nil), BreakerOptions{MaxFailures: 1, Logger: zerolog.Nop()})
	for i := 0; i < 3; i++ {
		_, err := p.History(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 2))
		assert.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

type callLog struct {
	sources []string
	errs    []error
}

func (c *callLog) RecordProviderCall(source string, _ float64, err error) {
	c.sources = append(c.sources, source)
	c.errs = append(c.errs, err)
}

func TestInstrumented_RecordsOutcome(t *testing.T) {
	log := &callLog{}
	p := NewInstrumented(NewStatic(map[string][]domain.PricePoint{
		"SPY": {pt(day(2024, 1, 2), 1)},
	}), "static", log)
	ctx := context.Background()

	_, err := p.History(ctx, "SPY", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	_, err = p.History(ctx, "QQQ", day(2024, 1, 1), day(2024, 1, 31))
	require.ErrorIs(t, err, ErrNoData)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.History(cctx, "SPY", day(2024, 1, 1), day(2024, 1, 31))
	require.Error(t, err)

	assert.Equal(t, []string{"static", "static", "static"}, log.sources)
	assert.NoError(t, log.errs[0])
	assert.NoError(t, log.errs[1], "no data is not a provider failure")
	assert.ErrorIs(t, log.errs[2], context.Canceled)
}
