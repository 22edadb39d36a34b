// Package factor scores symbols on independent factors at a point in time.
package factor

import (
	"time"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/indicators"
)

// Lookback windows in trading days.
const (
	window1M  = 21
	window3M  = 63
	window6M  = 126
	window12M = 252
)

// Indicator names, used for Snapshot.Missing.
const (
	IndSMA20     = "sma20"
	IndSMA50     = "sma50"
	IndSMA200    = "sma200"
	IndMACD      = "macd"
	IndVol20     = "vol20"
	IndVol60     = "vol60"
	IndReturn1M  = "return_1m"
	IndReturn3M  = "return_3m"
	IndReturn6M  = "return_6m"
	IndReturn12M = "return_12m"
	IndHigh52W   = "dist_52w_high"
)

// Indicators are precomputed over the visible history of a snapshot.
// Values listed in Snapshot.Missing are zero.
type Indicators struct {
	LastClose       float64 `json:"last_close"`
	SMA20           float64 `json:"sma20"`
	SMA50           float64 `json:"sma50"`
	SMA200          float64 `json:"sma200"`
	RSI14           float64 `json:"rsi14"`
	MACD            float64 `json:"macd"`
	MACDSignal      float64 `json:"macd_signal"`
	MACDHist        float64 `json:"macd_hist"`
	Vol20           float64 `json:"vol20"`
	Vol60           float64 `json:"vol60"`
	Return1M        float64 `json:"return_1m"`
	Return3M        float64 `json:"return_3m"`
	Return6M        float64 `json:"return_6m"`
	Return12M       float64 `json:"return_12m"`
	DistFromHigh52W float64 `json:"dist_52w_high"`
	MaxDrawdown1Y   float64 `json:"max_drawdown_1y"`
	UpDayShare1Y    float64 `json:"up_day_share_1y"`
	AvgVolume20     float64 `json:"avg_volume_20"`
	AvgVolume60     float64 `json:"avg_volume_60"`
	UpVolumeShare20 float64 `json:"up_volume_share_20"`
}

// Snapshot is everything an analyzer may see about a symbol on AsOf.
type Snapshot struct {
	Symbol       string             `json:"symbol"`
	AsOf         time.Time          `json:"as_of"`
	Bars         int                `json:"bars"`
	Indicators   Indicators         `json:"indicators"`
	Missing      []string           `json:"missing,omitempty"`
	Fundamentals map[string]float64 `json:"fundamentals,omitempty"`

	Closes  []float64 `json:"-"`
	Volumes []float64 `json:"-"`
}

// Has reports whether the named indicator was computed.
func (s *Snapshot) Has(name string) bool {
	for _, m := range s.Missing {
		if m == name {
			return false
		}
	}
	return true
}

// NewSnapshot builds a snapshot from history already truncated to asOf.
func NewSnapshot(symbol string, asOf time.Time, history []domain.PricePoint) *Snapshot {
	s := &Snapshot{
		Symbol:  symbol,
		AsOf:    asOf,
		Bars:    len(history),
		Closes:  make([]float64, len(history)),
		Volumes: make([]float64, len(history)),
	}
	for i, p := range history {
		s.Closes[i] = p.Close
		s.Volumes[i] = p.Volume
	}
	s.computeIndicators()
	return s
}

func (s *Snapshot) computeIndicators() {
	c := s.Closes
	ind := &s.Indicators

	if len(c) > 0 {
		ind.LastClose = c[len(c)-1]
	}

	set := func(name string, dst *float64, v float64, ok bool) {
		if !ok {
			s.Missing = append(s.Missing, name)
			return
		}
		*dst = v
	}

	v, ok := indicators.SMA(c, 20)
	set(IndSMA20, &ind.SMA20, v, ok)
	v, ok = indicators.SMA(c, 50)
	set(IndSMA50, &ind.SMA50, v, ok)
	v, ok = indicators.SMA(c, 200)
	set(IndSMA200, &ind.SMA200, v, ok)

	ind.RSI14 = indicators.RSI(c, 14)

	if m, sig, hist, ok := indicators.MACD(c); ok {
		ind.MACD, ind.MACDSignal, ind.MACDHist = m, sig, hist
	} else {
		s.Missing = append(s.Missing, IndMACD)
	}

	v, ok = indicators.RealizedVol(c, 20)
	set(IndVol20, &ind.Vol20, v, ok)
	v, ok = indicators.RealizedVol(c, 60)
	set(IndVol60, &ind.Vol60, v, ok)

	v, ok = indicators.PeriodReturn(c, window1M)
	set(IndReturn1M, &ind.Return1M, v, ok)
	v, ok = indicators.PeriodReturn(c, window3M)
	set(IndReturn3M, &ind.Return3M, v, ok)
	v, ok = indicators.PeriodReturn(c, window6M)
	set(IndReturn6M, &ind.Return6M, v, ok)
	v, ok = indicators.PeriodReturn(c, window12M)
	set(IndReturn12M, &ind.Return12M, v, ok)

	v, ok = indicators.DistanceFromHigh(c, window12M)
	set(IndHigh52W, &ind.DistFromHigh52W, v, ok)

	year := tail(c, window12M+1)
	ind.MaxDrawdown1Y = indicators.MaxDrawdown(year)
	if rets := indicators.Returns(year); len(rets) > 0 {
		up := 0
		for _, r := range rets {
			if r > 0 {
				up++
			}
		}
		ind.UpDayShare1Y = float64(up) / float64(len(rets))
	}

	ind.AvgVolume20 = indicators.Mean(tail(s.Volumes, 20))
	ind.AvgVolume60 = indicators.Mean(tail(s.Volumes, 60))
	ind.UpVolumeShare20 = upVolumeShare(tail(c, 21), tail(s.Volumes, 21))
}

// upVolumeShare returns the fraction of volume traded on up days.
// closes and volumes are aligned; the first bar only serves as a reference.
func upVolumeShare(closes, volumes []float64) float64 {
	if len(closes) < 2 || len(closes) != len(volumes) {
		return 0.5
	}
	up, total := 0.0, 0.0
	for i := 1; i < len(closes); i++ {
		vol := volumes[i]
		if !(vol > 0) {
			continue
		}
		total += vol
		if closes[i] > closes[i-1] {
			up += vol
		}
	}
	if total == 0 {
		return 0.5
	}
	return up / total
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
