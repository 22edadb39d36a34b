package domain

import "sort"

// Named weight presets.
const (
	PresetProduction = "production"
	PresetBacktest   = "backtest"
)

// presets holds the immutable source vectors. Callers only ever see clones.
var presets = map[string]WeightVector{
	// Production leans on fundamentals, which a live deployment can feed.
	PresetProduction: {
		FactorFundamentals:      0.36,
		FactorMomentum:          0.27,
		FactorQuality:           0.18,
		FactorSentiment:         0.09,
		FactorInstitutionalFlow: 0.10,
	},
	// Backtest shifts weight to factors computable from price history alone.
	PresetBacktest: {
		FactorFundamentals:      0.20,
		FactorMomentum:          0.35,
		FactorQuality:           0.25,
		FactorSentiment:         0.10,
		FactorInstitutionalFlow: 0.10,
	},
}

// Preset returns a copy of the named weight vector.
func Preset(name string) (WeightVector, bool) {
	w, ok := presets[name]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// PresetNames lists the available presets alphabetically.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsKnownFactor reports whether name is a built-in factor.
func IsKnownFactor(name string) bool {
	for _, f := range AllFactors {
		if f == name {
			return true
		}
	}
	return false
}
