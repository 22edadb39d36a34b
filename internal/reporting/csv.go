package reporting

import (
	"fmt"
	"strings"

	"equity-factor-lab/internal/domain"
)

// RenderEquityCSV renders the equity curve as CSV string.
func RenderEquityCSV(curve []domain.EquityPoint) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,portfolio_value,cash,positions_value,daily_return\n")

	// Rows
	for _, p := range curve {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.6f\n",
			p.Date.Format(dateLayout),
			p.PortfolioValue,
			p.Cash,
			p.PositionsValue,
			p.DailyReturn,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders the trade log as CSV string. Exit columns are
// empty for buys.
func RenderTradesCSV(trades []domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,date,action,symbol,shares,price,value,transaction_cost,")
	sb.WriteString("entry_score,entry_rank,exit_reason,pnl_pct,holding_days,late_stop_loss\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.4f,%.2f,%.4f,",
			t.TradeID,
			t.Date.Format(dateLayout),
			t.Action,
			t.Symbol,
			t.Shares,
			t.Price,
			t.Value,
			t.TransactionCost,
		))
		if t.Exit == nil {
			sb.WriteString(fmt.Sprintf("%.4f,%d,,,,\n", t.EntryScore, t.EntryRank))
			continue
		}
		sb.WriteString(fmt.Sprintf("%.4f,%d,%s,%.6f,%d,%t\n",
			t.Exit.EntryScore,
			t.Exit.EntryRank,
			t.Exit.ExitReason,
			t.Exit.PnLPct,
			t.Exit.HoldingPeriodDays,
			t.Exit.LateStopLoss,
		))
	}

	return sb.String()
}
