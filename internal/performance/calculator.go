// Package performance derives return and risk metrics from a finished run.
package performance

import (
	"math"
	"time"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/indicators"
)

// Annualization constants.
const (
	TradingDaysPerYear = 252
	DaysPerYear        = 365.25
)

// Input is everything the calculator reads.
type Input struct {
	InitialCapital float64
	RiskFreeRate   float64 // annual
	Curve          []domain.EquityPoint
	Trades         []domain.Trade
	Benchmark      []domain.PricePoint // sorted benchmark bars, clipped to the curve's window
}

// Compute calculates all metrics. An empty curve yields zero metrics with
// StartValue set.
func Compute(in Input) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{
		StartValue: in.InitialCapital,
		EndValue:   in.InitialCapital,
	}
	m.ClosedTrades, m.WinRate = computeWinRate(in.Trades)
	m.TotalTrades = len(in.Trades)
	m.TotalCosts = computeTotalCosts(in.Trades)

	n := len(in.Curve)
	if n == 0 || in.InitialCapital <= 0 {
		return m
	}

	first, last := in.Curve[0].Date, in.Curve[n-1].Date
	m.EndValue = in.Curve[n-1].PortfolioValue
	m.Years = computeYears(first, last)
	m.TotalReturn = m.EndValue/in.InitialCapital - 1
	m.CAGR = CAGR(in.InitialCapital, m.EndValue, m.Years)

	returns := make([]float64, n)
	values := make([]float64, 0, n+1)
	values = append(values, in.InitialCapital)
	for i, p := range in.Curve {
		returns[i] = p.DailyReturn
		values = append(values, p.PortfolioValue)
	}

	dailyRF := in.RiskFreeRate / TradingDaysPerYear
	stddev := indicators.StdDev(returns)
	m.Volatility = stddev * math.Sqrt(TradingDaysPerYear)
	m.SharpeRatio = computeSharpe(returns, stddev, dailyRF)
	m.SortinoRatio = computeSortino(returns, dailyRF)
	m.MaxDrawdown = indicators.MaxDrawdown(values)
	if m.MaxDrawdown < 0 {
		m.CalmarRatio = m.CAGR / math.Abs(m.MaxDrawdown)
	}

	m.BenchmarkTotal, m.BenchmarkCAGR = computeBenchmark(in.Benchmark, first, last)
	m.Outperformance = m.TotalReturn - m.BenchmarkTotal
	return m
}

// CAGR returns (final/initial)^(1/years) - 1. Non-positive inputs yield 0.
func CAGR(initial, final, years float64) float64 {
	if initial <= 0 || final <= 0 || years <= 0 {
		return 0
	}
	return math.Pow(final/initial, 1/years) - 1
}

// computeYears returns exact elapsed years between two dates.
func computeYears(start, end time.Time) float64 {
	return float64(calendar.DaysBetween(start, end)) / DaysPerYear
}

// computeSharpe annualizes the mean excess daily return over its stddev.
func computeSharpe(returns []float64, stddev, dailyRF float64) float64 {
	if stddev == 0 || len(returns) < 2 {
		return 0
	}
	return (indicators.Mean(returns) - dailyRF) / stddev * math.Sqrt(TradingDaysPerYear)
}

// computeSortino uses the downside deviation of returns below dailyRF.
func computeSortino(returns []float64, dailyRF float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		if d := r - dailyRF; d < 0 {
			sumSq += d * d
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return (indicators.Mean(returns) - dailyRF) / downside * math.Sqrt(TradingDaysPerYear)
}

// computeWinRate counts closed trades and the share with positive pnl.
func computeWinRate(trades []domain.Trade) (int, float64) {
	closed, wins := 0, 0
	for _, t := range trades {
		if t.Action != domain.ActionSell || t.Exit == nil {
			continue
		}
		closed++
		if t.Exit.PnLPct > 0 {
			wins++
		}
	}
	if closed == 0 {
		return 0, 0
	}
	return closed, float64(wins) / float64(closed)
}

func computeTotalCosts(trades []domain.Trade) float64 {
	total := 0.0
	for _, t := range trades {
		total += t.TransactionCost
	}
	return total
}

// computeBenchmark returns the benchmark's total return and CAGR from its
// first close on or after start to its last close on or before end.
func computeBenchmark(bars []domain.PricePoint, start, end time.Time) (float64, float64) {
	start, end = calendar.Day(start), calendar.Day(end)
	var firstPx, lastPx float64
	var firstAt, lastAt time.Time
	for _, b := range bars {
		if !b.Valid() || b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		if firstPx == 0 {
			firstPx, firstAt = b.Close, b.Date
		}
		lastPx, lastAt = b.Close, b.Date
	}
	if firstPx == 0 {
		return 0, 0
	}
	total := lastPx/firstPx - 1
	return total, CAGR(firstPx, lastPx, computeYears(firstAt, lastAt))
}
