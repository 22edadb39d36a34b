package factor

import (
	"context"
	"fmt"
	"math"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/indicators"
)

// Builtin returns the price/volume analyzers for every built-in factor.
// The backtest has no point-in-time fundamentals feed, so fundamentals only
// scores snapshots that carry Fundamentals.
func Builtin() []Analyzer {
	return []Analyzer{
		Fundamentals{},
		InstitutionalFlow{},
		Momentum{},
		Quality{},
		Sentiment{},
	}
}

// Momentum rewards intermediate-term trend strength.
type Momentum struct{}

func (Momentum) Name() string { return domain.FactorMomentum }

func (Momentum) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	if err := needHistory(snap, window6M+1); err != nil {
		return Analysis{}, err
	}
	ind := snap.Indicators

	score := 50.0
	score += indicators.Clamp(ind.Return6M*100*0.5, -25, 25)
	score += indicators.Clamp(ind.Return3M*100*0.3, -10, 10)
	confidence := 0.6

	if snap.Has(IndReturn12M) {
		score += indicators.Clamp(ind.Return12M*100*0.2, -10, 10)
		confidence = 0.8
	}
	if snap.Has(IndSMA50) {
		score += sign(ind.LastClose-ind.SMA50) * 4
	}
	if snap.Has(IndSMA200) && snap.Has(IndSMA50) {
		score += sign(ind.SMA50-ind.SMA200) * 4
	}
	if snap.Has(IndMACD) {
		score += sign(ind.MACDHist) * 2
	}
	// Fade overextension.
	if ind.RSI14 > 75 {
		score -= 5
	}

	return Analysis{
		Score:      indicators.Clamp(score, 0, 100),
		Confidence: confidence,
		Metrics: map[string]float64{
			"return_3m":  ind.Return3M,
			"return_6m":  ind.Return6M,
			"return_12m": ind.Return12M,
			"rsi14":      ind.RSI14,
		},
		Reasoning: fmt.Sprintf("6m return %.1f%%, 3m return %.1f%%", ind.Return6M*100, ind.Return3M*100),
	}, nil
}

// Quality rewards stable, shallow-drawdown price behaviour.
type Quality struct{}

func (Quality) Name() string { return domain.FactorQuality }

func (Quality) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	if err := needHistory(snap, 61); err != nil {
		return Analysis{}, err
	}
	ind := snap.Indicators

	volScore := indicators.Clamp(100-ind.Vol60*150, 0, 100)
	ddScore := indicators.Clamp(100+ind.MaxDrawdown1Y*200, 0, 100)
	consistency := indicators.Clamp(ind.UpDayShare1Y*100, 0, 100)

	confidence := 0.5
	if snap.Bars > window12M {
		confidence = 0.7
	}

	return Analysis{
		Score:      0.4*volScore + 0.4*ddScore + 0.2*consistency,
		Confidence: confidence,
		Metrics: map[string]float64{
			"vol60":           ind.Vol60,
			"max_drawdown_1y": ind.MaxDrawdown1Y,
			"up_day_share_1y": ind.UpDayShare1Y,
		},
		Reasoning: fmt.Sprintf("vol %.1f%%, drawdown %.1f%%", ind.Vol60*100, ind.MaxDrawdown1Y*100),
	}, nil
}

// Fundamentals scores valuation and profitability when fundamentals are
// supplied with the snapshot.
type Fundamentals struct{}

func (Fundamentals) Name() string { return domain.FactorFundamentals }

func (Fundamentals) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	f := snap.Fundamentals
	if len(f) == 0 {
		return Analysis{}, ErrFundamentalsUnavailable
	}

	var (
		total float64
		parts int
	)
	if pe, ok := f["pe_ratio"]; ok && pe > 0 {
		// 10x earnings scores 100, 50x scores 0.
		total += indicators.Clamp(100-(pe-10)*2.5, 0, 100)
		parts++
	}
	if roe, ok := f["roe"]; ok {
		total += indicators.Clamp(50+roe*200, 0, 100)
		parts++
	}
	if de, ok := f["debt_to_equity"]; ok && de >= 0 {
		total += indicators.Clamp(100-de*40, 0, 100)
		parts++
	}
	if g, ok := f["revenue_growth"]; ok {
		total += indicators.Clamp(50+g*150, 0, 100)
		parts++
	}
	if parts == 0 {
		return Analysis{}, ErrFundamentalsUnavailable
	}

	return Analysis{
		Score:      total / float64(parts),
		Confidence: math.Min(0.9, 0.3+0.15*float64(parts)),
		Metrics:    f,
		Reasoning:  fmt.Sprintf("%d fundamental metrics", parts),
	}, nil
}

// Sentiment is a price-derived proxy: proximity to the 52-week high,
// RSI and the last month's return.
type Sentiment struct{}

func (Sentiment) Name() string { return domain.FactorSentiment }

func (Sentiment) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	if err := needHistory(snap, window1M+1); err != nil {
		return Analysis{}, err
	}
	ind := snap.Indicators

	highScore := 50.0
	if snap.Has(IndHigh52W) {
		highScore = indicators.Clamp(100+ind.DistFromHigh52W*200, 0, 100)
	}
	monthScore := indicators.Clamp(50+ind.Return1M*250, 0, 100)

	return Analysis{
		Score:      0.4*highScore + 0.3*ind.RSI14 + 0.3*monthScore,
		Confidence: 0.4,
		Metrics: map[string]float64{
			"dist_52w_high": ind.DistFromHigh52W,
			"rsi14":         ind.RSI14,
			"return_1m":     ind.Return1M,
		},
		Reasoning: fmt.Sprintf("%.1f%% below 52w high, RSI %.0f", -ind.DistFromHigh52W*100, ind.RSI14),
	}, nil
}

// InstitutionalFlow is a volume proxy for accumulation: share of volume on
// up days and the recent volume trend.
type InstitutionalFlow struct{}

func (InstitutionalFlow) Name() string { return domain.FactorInstitutionalFlow }

func (InstitutionalFlow) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	if err := needHistory(snap, 61); err != nil {
		return Analysis{}, err
	}
	ind := snap.Indicators
	if !(ind.AvgVolume60 > 0) {
		return Analysis{}, fmt.Errorf("%w: no volume", ErrInsufficientHistory)
	}

	ratio := ind.AvgVolume20 / ind.AvgVolume60
	accum := indicators.Clamp(ind.UpVolumeShare20*100, 0, 100)
	trend := indicators.Clamp(50+(ratio-1)*50, 0, 100)
	// Rising volume only counts as accumulation when up days dominate.
	if ind.UpVolumeShare20 < 0.5 {
		trend = 100 - trend
	}

	return Analysis{
		Score:      0.7*accum + 0.3*trend,
		Confidence: 0.5,
		Metrics: map[string]float64{
			"up_volume_share_20": ind.UpVolumeShare20,
			"volume_ratio_20_60": ratio,
		},
		Reasoning: fmt.Sprintf("%.0f%% of volume on up days", ind.UpVolumeShare20*100),
	}, nil
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
