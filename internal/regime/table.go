package regime

import "equity-factor-lab/internal/domain"

// MaxSlots is the position count the table's targets are expressed against.
const MaxSlots = 20

// row is one line of the regime lookup table.
type row struct {
	multipliers map[string]float64 // applied to the base weights; absent = 1.0
	positions   int                // out of MaxSlots
	cash        float64
}

var table = map[string]row{
	"BULL/LOW": {
		multipliers: map[string]float64{domain.FactorMomentum: 1.5, domain.FactorQuality: 0.8, domain.FactorFundamentals: 0.9},
		positions:   20,
		cash:        0,
	},
	"BULL/NORMAL": {
		multipliers: map[string]float64{domain.FactorMomentum: 1.3, domain.FactorQuality: 0.9},
		positions:   20,
		cash:        0,
	},
	"BULL/HIGH": {
		multipliers: map[string]float64{domain.FactorMomentum: 1.8, domain.FactorQuality: 0.9, domain.FactorFundamentals: 0.8, domain.FactorSentiment: 0.9},
		positions:   18,
		cash:        0.05,
	},
	"SIDEWAYS/LOW": {
		positions: 18,
		cash:      0.05,
	},
	"SIDEWAYS/NORMAL": {
		positions: 18,
		cash:      0.10,
	},
	"SIDEWAYS/HIGH": {
		multipliers: map[string]float64{domain.FactorMomentum: 0.8, domain.FactorQuality: 1.2, domain.FactorFundamentals: 1.1, domain.FactorSentiment: 0.9},
		positions:   16,
		cash:        0.15,
	},
	"BEAR/LOW": {
		multipliers: map[string]float64{domain.FactorMomentum: 0.7, domain.FactorQuality: 1.3, domain.FactorFundamentals: 1.3},
		positions:   15,
		cash:        0.20,
	},
	"BEAR/NORMAL": {
		multipliers: map[string]float64{domain.FactorMomentum: 0.6, domain.FactorQuality: 1.4, domain.FactorFundamentals: 1.4},
		positions:   15,
		cash:        0.25,
	},
	"BEAR/HIGH": {
		multipliers: map[string]float64{domain.FactorMomentum: 0.4, domain.FactorQuality: 1.8, domain.FactorFundamentals: 1.3, domain.FactorSentiment: 0.8},
		positions:   12,
		cash:        0.40,
	},
}

// Labels returns every (trend, volatility) combination.
func Labels() []domain.RegimeLabel {
	var out []domain.RegimeLabel
	for _, t := range []domain.Trend{domain.TrendBull, domain.TrendSideways, domain.TrendBear} {
		for _, v := range []domain.Volatility{domain.VolatilityLow, domain.VolatilityNormal, domain.VolatilityHigh} {
			out = append(out, domain.RegimeLabel{Trend: t, Volatility: v})
		}
	}
	return out
}

// AdaptWeights applies the label's multipliers to base and renormalizes.
// base is not modified.
func AdaptWeights(label domain.RegimeLabel, base domain.WeightVector) domain.WeightVector {
	r, ok := table[label.Key()]
	out := base.Clone()
	if ok {
		for f, w := range out {
			if m, ok := r.multipliers[f]; ok {
				out[f] = w * m
			}
		}
	}
	return out.Normalized()
}

// Posture returns the label's risk posture scaled to topN slots.
func Posture(label domain.RegimeLabel, topN int) domain.RiskPosture {
	r, ok := table[label.Key()]
	if !ok {
		r = table["SIDEWAYS/NORMAL"]
	}
	return domain.RiskPosture{
		TargetPositions:    scaleSlots(r.positions, topN),
		TargetCashFraction: r.cash,
	}
}

// scaleSlots maps a count out of MaxSlots onto topN, clamped to [1, topN].
func scaleSlots(positions, topN int) int {
	if topN < 1 {
		return 1
	}
	n := int(float64(positions)*float64(topN)/MaxSlots + 0.5)
	if n < 1 {
		n = 1
	}
	if n > topN {
		n = topN
	}
	return n
}
