// Package indicators computes technical indicators over daily closes.
//
// Every function is total: on short or malformed input (NaN, Inf,
// non-positive prices) it returns a neutral value and ok=false instead of
// failing. Neutral values are RSI 50, returns 0 and volatility 0.
package indicators

import (
	"math"
	"sort"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// NeutralRSI is returned when RSI cannot be computed.
const NeutralRSI = 50.0

// validPrices reports whether every value is a finite positive price.
func validPrices(values []float64) bool {
	for _, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	window := values[len(values)-period:]
	if !validPrices(window) {
		return 0, false
	}
	return Mean(window), true
}

// EMA returns the exponential moving average seeded with the SMA of the
// first period values.
func EMA(values []float64, period int) (float64, bool) {
	series, ok := emaSeries(values, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

func emaSeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period || !validPrices(values) {
		return nil, false
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := Mean(values[:period])
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out, true
}

// RSI returns Wilder's relative strength index over period.
// Returns NeutralRSI when there is not enough valid data.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 || !validPrices(closes) {
		return NeutralRSI
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			gain += ch
		} else {
			loss -= ch
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if ch > 0 {
			g = ch
		} else {
			l = -ch
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the 12/26 MACD line, its 9-period signal and the histogram.
func MACD(closes []float64) (macd, signal, hist float64, ok bool) {
	fast, okF := emaSeries(closes, 12)
	slow, okS := emaSeries(closes, 26)
	if !okF || !okS {
		return 0, 0, 0, false
	}
	// Align: slow starts 14 bars later than fast
	offset := len(fast) - len(slow)
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}
	macd = line[len(line)-1]

	sig, okSig := emaSeriesAny(line, 9)
	if !okSig {
		return macd, 0, 0, false
	}
	signal = sig[len(sig)-1]
	return macd, signal, macd - signal, true
}

// emaSeriesAny is emaSeries without the positive-price check, for
// oscillators that go negative.
func emaSeriesAny(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period {
		return nil, false
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := Mean(values[:period])
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out, true
}

// Returns computes simple daily returns. Pairs with an invalid price
// contribute a 0 return.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if !(prev > 0) || !(cur > 0) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
			continue
		}
		out[i-1] = cur/prev - 1
	}
	return out
}

// PeriodReturn returns the return over the last n bars.
func PeriodReturn(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	start, end := closes[len(closes)-1-n], closes[len(closes)-1]
	if !validPrices([]float64{start, end}) {
		return 0, false
	}
	return end/start - 1, true
}

// RealizedVol returns the annualised sample volatility of the last window
// daily returns.
func RealizedVol(closes []float64, window int) (float64, bool) {
	if window < 2 || len(closes) < window+1 {
		return 0, false
	}
	tail := closes[len(closes)-window-1:]
	if !validPrices(tail) {
		return 0, false
	}
	rets := Returns(tail)
	return StdDev(rets) * math.Sqrt(TradingDaysPerYear), true
}

// RollingVol returns RealizedVol for every window ending at each bar from
// window onward, oldest first.
func RollingVol(closes []float64, window int) []float64 {
	if window < 2 || len(closes) < window+1 {
		return nil
	}
	out := make([]float64, 0, len(closes)-window)
	for end := window + 1; end <= len(closes); end++ {
		if v, ok := RealizedVol(closes[:end], window); ok {
			out = append(out, v)
		}
	}
	return out
}

// DistanceFromHigh returns close/max(close over window) - 1, which is <= 0.
func DistanceFromHigh(closes []float64, window int) (float64, bool) {
	if window <= 0 || len(closes) == 0 {
		return 0, false
	}
	if len(closes) < window {
		window = len(closes)
	}
	tail := closes[len(closes)-window:]
	if !validPrices(tail) {
		return 0, false
	}
	high := tail[0]
	for _, v := range tail {
		if v > high {
			high = v
		}
	}
	return tail[len(tail)-1]/high - 1, true
}

// MaxDrawdown returns the worst peak-to-trough decline of a value series
// as a fraction, <= 0.
func MaxDrawdown(values []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			continue
		}
		if v > peak {
			peak = v
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1 denominator).
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile returns the p-th percentile (0..1) using linear interpolation.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// Clamp limits v to [lo, hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
