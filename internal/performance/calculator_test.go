package performance

import (
	"math"
	"testing"
	"time"

	"equity-factor-lab/internal/domain"
)

var start = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

func curve(initial float64, values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	prev := initial
	for i, v := range values {
		out[i] = domain.EquityPoint{
			Date:           start.AddDate(0, 0, i),
			PortfolioValue: v,
			DailyReturn:    v/prev - 1,
		}
		prev = v
	}
	return out
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestCAGR_ClosedForm(t *testing.T) {
	got := CAGR(10000, 33901.31, 5.0)
	if !approx(got, 0.2766, 1e-4) {
		t.Errorf("expected CAGR ~0.2766, got %.6f", got)
	}
	if total := 33901.31/10000 - 1; !approx(total, 2.3901, 1e-4) {
		t.Errorf("expected total return ~2.3901, got %.6f", total)
	}
	if CAGR(0, 100, 1) != 0 || CAGR(100, 100, 0) != 0 || CAGR(100, -1, 1) != 0 {
		t.Error("degenerate inputs should yield 0")
	}
}

func TestCompute_FiveYearCurve(t *testing.T) {
	span := 5 * DaysPerYear
	days := int(span)
	c := []domain.EquityPoint{
		{Date: start, PortfolioValue: 10000},
		{Date: start.AddDate(0, 0, days), PortfolioValue: 33901.31, DailyReturn: 2.390131},
	}
	m := Compute(Input{InitialCapital: 10000, Curve: c})

	if !approx(m.TotalReturn, 2.3901, 1e-4) {
		t.Errorf("total return %v", m.TotalReturn)
	}
	if !approx(m.Years, float64(days)/DaysPerYear, 1e-12) {
		t.Errorf("years %v", m.Years)
	}
	if !approx(m.CAGR, 0.2766, 5e-4) {
		t.Errorf("cagr %v", m.CAGR)
	}
}

func TestCompute_FlatCurve(t *testing.T) {
	m := Compute(Input{InitialCapital: 1000, Curve: curve(1000, 1000, 1000, 1000, 1000)})

	if m.TotalReturn != 0 || m.Volatility != 0 || m.SharpeRatio != 0 || m.SortinoRatio != 0 {
		t.Errorf("flat curve should have zero return and risk: %+v", m)
	}
	if m.MaxDrawdown != 0 || m.CalmarRatio != 0 {
		t.Errorf("flat curve should have no drawdown: %+v", m)
	}
}

func TestCompute_DrawdownAndRatios(t *testing.T) {
	m := Compute(Input{
		InitialCapital: 100,
		RiskFreeRate:   0.0252,
		Curve:          curve(100, 110, 99, 105, 121),
	})

	if !approx(m.MaxDrawdown, -0.1, 1e-12) {
		t.Errorf("expected -10%% drawdown, got %v", m.MaxDrawdown)
	}
	if !approx(m.CalmarRatio, m.CAGR/0.1, 1e-9) {
		t.Errorf("calmar %v != cagr/0.1", m.CalmarRatio)
	}
	if m.Volatility <= 0 || m.SharpeRatio <= 0 {
		t.Errorf("expected positive volatility and sharpe: %+v", m)
	}
	// Only one day is below the risk-free rate, so downside deviation is
	// smaller than the full stddev.
	if m.SortinoRatio <= m.SharpeRatio {
		t.Errorf("sortino %v should exceed sharpe %v", m.SortinoRatio, m.SharpeRatio)
	}
	if m.EndValue != 121 || !approx(m.TotalReturn, 0.21, 1e-12) {
		t.Errorf("unexpected end state %+v", m)
	}
}

func TestCompute_TradesAndBenchmark(t *testing.T) {
	trades := []domain.Trade{
		{Action: domain.ActionBuy, TransactionCost: 1},
		{Action: domain.ActionSell, TransactionCost: 1, Exit: &domain.ExitDetails{PnLPct: 0.1}},
		{Action: domain.ActionSell, TransactionCost: 0.5, Exit: &domain.ExitDetails{PnLPct: -0.2}},
		{Action: domain.ActionSell, TransactionCost: 0.5, Exit: &domain.ExitDetails{PnLPct: 0}},
	}
	bench := []domain.PricePoint{
		{Date: start.AddDate(0, 0, -1), Close: 50}, // before the window
		{Date: start, Close: 100},
		{Date: start.AddDate(0, 0, 2), Close: 110},
		{Date: start.AddDate(0, 0, 10), Close: 500}, // after the window
	}
	m := Compute(Input{
		InitialCapital: 100,
		Curve:          curve(100, 100, 105, 120),
		Trades:         trades,
		Benchmark:      bench,
	})

	if m.ClosedTrades != 3 || m.TotalTrades != 4 || !approx(m.WinRate, 1.0/3, 1e-12) {
		t.Errorf("unexpected trade stats %+v", m)
	}
	if m.TotalCosts != 3 {
		t.Errorf("expected total costs 3, got %v", m.TotalCosts)
	}
	if !approx(m.BenchmarkTotal, 0.10, 1e-12) {
		t.Errorf("expected benchmark 10%%, got %v", m.BenchmarkTotal)
	}
	if !approx(m.Outperformance, 0.20-0.10, 1e-12) {
		t.Errorf("expected 10%% outperformance, got %v", m.Outperformance)
	}
}

func TestCompute_EmptyCurve(t *testing.T) {
	m := Compute(Input{InitialCapital: 500})
	if m.StartValue != 500 || m.EndValue != 500 || m.TotalReturn != 0 {
		t.Errorf("unexpected metrics %+v", m)
	}
}
