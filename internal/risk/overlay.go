// Package risk applies stop-loss control and classifies rebalance exits.
package risk

import (
	"sort"

	"equity-factor-lab/internal/domain"
)

// DefaultStopLoss is the default loss fraction that forces an exit.
const DefaultStopLoss = 0.20

// epsilon absorbs float noise at the exact threshold.
const epsilon = 1e-12

// Overlay holds the per-run risk settings.
type Overlay struct {
	Enabled   bool
	Threshold float64 // positive fraction, e.g. 0.20
}

// NewOverlay creates an Overlay; a non-positive threshold uses DefaultStopLoss.
func NewOverlay(enabled bool, threshold float64) Overlay {
	if threshold <= 0 {
		threshold = DefaultStopLoss
	}
	return Overlay{Enabled: enabled, Threshold: threshold}
}

// StopTriggered reports whether price breaches the stop for pos.
func (o Overlay) StopTriggered(pos *domain.Position, price float64) bool {
	if !o.Enabled || price <= 0 {
		return false
	}
	return pos.ReturnAt(price) <= -o.Threshold+epsilon
}

// StopBreach is a position whose stop fired.
type StopBreach struct {
	Symbol string
	Price  float64
	Return float64
}

// CheckStops returns the positions whose stop fired at the given marks,
// ordered by symbol. Positions without a mark are skipped.
func (o Overlay) CheckStops(positions map[string]*domain.Position, marks map[string]float64) []StopBreach {
	if !o.Enabled {
		return nil
	}
	var out []StopBreach
	for sym, pos := range positions {
		px, ok := marks[sym]
		if !ok || !o.StopTriggered(pos, px) {
			continue
		}
		out = append(out, StopBreach{Symbol: sym, Price: px, Return: pos.ReturnAt(px)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// RebalanceExit describes a held symbol that was not reselected.
type RebalanceExit struct {
	Ranked     bool // symbol appeared in this date's ranking
	Rank       int  // 1-based rank when Ranked
	PrevTarget int  // target position count before this rebalance
	NewTarget  int  // target position count after this rebalance
}

// ClassifyExit returns the reason for selling a position that was not
// reselected. A shrinking target count is blamed when the symbol would have
// made the previous cut; otherwise its score dropped. A symbol missing from
// the ranking is a plain rebalance exit.
func ClassifyExit(e RebalanceExit) domain.ExitReason {
	if !e.Ranked {
		return domain.ExitReasonRebalance
	}
	if e.NewTarget < e.PrevTarget && e.Rank <= e.PrevTarget {
		return domain.ExitReasonRegimeReduction
	}
	return domain.ExitReasonScoreDropped
}

// Resolve picks the highest-precedence reason from candidates.
// An empty candidate list resolves to REBALANCE.
func Resolve(candidates ...domain.ExitReason) domain.ExitReason {
	best := domain.ExitReasonRebalance
	for _, c := range candidates {
		if c.Precedence() < best.Precedence() {
			best = c
		}
	}
	return best
}
