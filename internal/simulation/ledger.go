package simulation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/idhash"
	"equity-factor-lab/internal/ranking"
	"equity-factor-lab/internal/risk"
)

// buy opens a position with at most budget of cash, in whole shares.
// Returns false when not even one share fits.
func (s *Simulator) buy(day time.Time, r ranking.Ranked, price float64, budget decimal.Decimal, regime domain.RegimeLabel, target int) (domain.Trade, bool) {
	if price <= 0 || !budget.IsPositive() {
		return domain.Trade{}, false
	}
	// Budget and cost both come out of cash.
	affordable := s.cash.Div(decimal.NewFromInt(1).Add(s.costRate))
	if budget.GreaterThan(affordable) {
		budget = affordable
	}
	px := decimal.NewFromFloat(price)
	shares := budget.Div(px).Floor().IntPart()
	if shares <= 0 {
		return domain.Trade{}, false
	}

	value := px.Mul(decimal.NewFromInt(shares))
	cost := value.Mul(s.costRate)
	s.cash = s.cash.Sub(value).Sub(cost)

	pos := &domain.Position{
		Symbol:               r.Symbol,
		EntryDate:            day,
		EntryPrice:           price,
		Shares:               shares,
		EntryScore:           r.Composite,
		EntryRank:            r.Rank,
		EntryRegime:          regime,
		PortfolioSizeAtEntry: target,
		MaxPrice:             price,
		MinPrice:             price,
		LastPrice:            price,
		LastDate:             day,
	}
	s.positions[r.Symbol] = pos
	s.tracker.AddPosition(*pos)

	trade := domain.Trade{
		TradeID:         s.nextTradeID(day, domain.ActionBuy, r.Symbol),
		Date:            day,
		Action:          domain.ActionBuy,
		Symbol:          r.Symbol,
		Shares:          shares,
		Price:           price,
		Value:           value.InexactFloat64(),
		TransactionCost: cost.InexactFloat64(),
		EntryScore:      r.Composite,
		EntryRank:       r.Rank,
	}
	s.record(trade)
	return trade, true
}

// sell closes the whole position in symbol at price. A fill that also
// breaches the stop is attributed to the stop.
func (s *Simulator) sell(day time.Time, symbol string, price float64, reason domain.ExitReason) domain.Trade {
	pos := s.positions[symbol]
	delete(s.positions, symbol)

	if s.overlay.StopTriggered(pos, price) {
		reason = risk.Resolve(reason, domain.ExitReasonStopLoss)
	}

	value := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(pos.Shares))
	cost := value.Mul(s.costRate)
	s.cash = s.cash.Add(value).Sub(cost)

	trade := domain.Trade{
		TradeID:         s.nextTradeID(day, domain.ActionSell, symbol),
		Date:            day,
		Action:          domain.ActionSell,
		Symbol:          symbol,
		Shares:          pos.Shares,
		Price:           price,
		Value:           value.InexactFloat64(),
		TransactionCost: cost.InexactFloat64(),
	}

	details, err := s.tracker.ExitPosition(symbol, day, price, reason)
	if err != nil {
		// Tracker and ledger disagree; attribute from the position itself.
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("exit not tracked")
		details = domain.ExitDetails{
			ExitReason:        reason,
			EntryDate:         pos.EntryDate,
			ExitDate:          day,
			EntryPrice:        pos.EntryPrice,
			ExitPrice:         price,
			PnLPct:            pos.ReturnAt(price),
			EntryScore:        pos.EntryScore,
			EntryRank:         pos.EntryRank,
			EntryRegime:       pos.EntryRegime.Key(),
			StopLossTriggered: reason == domain.ExitReasonStopLoss,
			StopLossThreshold: s.overlay.Threshold,
		}
	}
	trade.Exit = &details
	s.record(trade)
	return trade
}

func (s *Simulator) record(trade domain.Trade) {
	s.trades = append(s.trades, trade)
	if s.observer != nil {
		s.observer.OnTrade(trade)
	}
}

func (s *Simulator) nextTradeID(day time.Time, action, symbol string) string {
	key := fmt.Sprintf("%s|%s|%s", day.Format("2006-01-02"), action, symbol)
	seq := s.tradeSeq[key]
	s.tradeSeq[key] = seq + 1
	return idhash.ComputeTradeID(s.configHash, day, action, symbol, seq)
}

// equityAt values cash plus every position at its last mark.
func (s *Simulator) equityAt() decimal.Decimal {
	total := s.cash
	for _, pos := range s.positions {
		total = total.Add(decimal.NewFromFloat(pos.LastPrice).Mul(decimal.NewFromInt(pos.Shares)))
	}
	return total
}
