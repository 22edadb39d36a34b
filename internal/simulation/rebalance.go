package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/factor"
	"equity-factor-lab/internal/ranking"
	"equity-factor-lab/internal/risk"
)

// rebalance moves the portfolio to the top-ranked symbols for day.
//
// Order: regime decision, ranking, sells of holdings that dropped out,
// then buys in rank order sized from post-sell equity. Symbols stopped out
// earlier on the same day are not bought back and do not take a slot.
func (s *Simulator) rebalance(ctx context.Context, day time.Time, closes map[string]float64, stopped map[string]bool) error {
	decision := s.regime.Decide(day)

	ranked, err := s.ranker.Rank(ctx, s.market.Symbols(), day, decision.Weights)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &SimulationError{Date: day, Reason: fmt.Sprintf("rank universe: %v", err)}
	}

	rec := domain.RebalanceRecord{
		Date:      day,
		Regime:    decision.Label,
		Weights:   decision.Weights,
		Posture:   decision.Posture,
		EquityPre: s.equityAt().InexactFloat64(),
	}

	if len(ranked) == 0 {
		// Nothing scoreable yet, usually during warm-up. Hold what we have
		// and keep the previous target for the next exit classification.
		s.logger.Warn().Time("date", day).Int("held", len(s.positions)).Msg("ranking returned no symbols, holding")
		rec.Carried = len(s.positions)
		s.finishRebalance(rec)
		return nil
	}

	rec.Scores = make(map[string]float64, len(ranked))
	for _, r := range ranked {
		rec.Scores[r.Symbol] = r.Composite
		if factor.Degraded(r.Readings) {
			s.tracker.MarkDegraded(r.Symbol)
		}
	}

	target := decision.Posture.TargetPositions
	if target < 1 {
		target = 1
	}
	prevTarget := s.prevTarget
	if prevTarget == 0 {
		prevTarget = target
	}

	// Exit classification and selection both work on the tradable ranking,
	// so a symbol that cannot be bought today never pushes a holding down.
	tradable := tradableRanking(ranked, closes, stopped)
	selected := ranking.Select(tradable, target)
	want := make(map[string]bool, len(selected))
	for _, r := range selected {
		want[r.Symbol] = true
	}

	for _, sym := range s.heldSymbols() {
		if want[sym] {
			rec.Carried++
			continue
		}
		px, ok := closes[sym]
		if !ok {
			// No fill without a same-day close; retry next rebalance.
			s.logger.Warn().Str("symbol", sym).Time("date", day).Msg("cannot exit without a close, carrying")
			rec.Carried++
			continue
		}
		rank := ranking.Position(tradable, sym)
		reason := risk.ClassifyExit(risk.RebalanceExit{
			Ranked:     rank > 0,
			Rank:       rank,
			PrevTarget: prevTarget,
			NewTarget:  target,
		})
		s.sell(day, sym, px, reason)
		rec.Sells++
	}

	equity := s.equityAt()
	invest := equity.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(decision.Posture.TargetCashFraction)))
	perSlot := invest.Div(decimal.NewFromInt(int64(target)))

	var scoreSum float64
	for _, r := range selected {
		rec.Selected = append(rec.Selected, r.Symbol)
		scoreSum += r.Composite
		if _, held := s.positions[r.Symbol]; held {
			continue
		}
		if _, ok := s.buy(day, r, closes[r.Symbol], perSlot, decision.Label, target); ok {
			rec.Buys++
		}
	}
	if len(selected) > 0 {
		rec.AvgScore = scoreSum / float64(len(selected))
	}

	s.prevTarget = target
	s.finishRebalance(rec)

	s.logger.Info().
		Time("date", day).
		Str("regime", decision.Label.Key()).
		Int("target", target).
		Int("sells", rec.Sells).
		Int("buys", rec.Buys).
		Int("carried", rec.Carried).
		Msg("rebalanced")
	return nil
}

// finishRebalance stamps post-trade equity on rec and records it.
func (s *Simulator) finishRebalance(rec domain.RebalanceRecord) {
	rec.EquityPost = s.equityAt().InexactFloat64()
	rec.PortfolioValue = rec.EquityPost
	s.rebalances = append(s.rebalances, rec)
	if s.observer != nil {
		s.observer.OnRebalance(rec)
	}
}

// tradableRanking keeps the ranked symbols that can be bought on the day,
// renumbered 1..n in their original order.
func tradableRanking(ranked []ranking.Ranked, closes map[string]float64, stopped map[string]bool) []ranking.Ranked {
	out := make([]ranking.Ranked, 0, len(ranked))
	for _, r := range ranked {
		if px, ok := closes[r.Symbol]; !ok || px <= 0 || stopped[r.Symbol] {
			continue
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out
}
