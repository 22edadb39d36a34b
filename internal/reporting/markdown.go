package reporting

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	status := r.Status
	if r.Cancelled {
		status += " (cancelled, partial)"
	}
	sb.WriteString(fmt.Sprintf("Status: %s\n\n", status))
	if r.Failure != "" {
		sb.WriteString(fmt.Sprintf("Failure: %s\n\n", r.Failure))
	}

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Setting | Value |\n")
	sb.WriteString("|---------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Window | %s to %s |\n", r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", r.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Rebalance | %s |\n", r.Frequency))
	sb.WriteString(fmt.Sprintf("| Top N | %d |\n", r.TopN))
	sb.WriteString(fmt.Sprintf("| Benchmark | %s |\n", r.Benchmark))
	sb.WriteString(fmt.Sprintf("| Universe | %d symbols |\n", r.Universe))
	sb.WriteString("\n")
	if len(r.Excluded) > 0 {
		sb.WriteString(fmt.Sprintf("Excluded for missing data: %s\n\n", strings.Join(r.Excluded, ", ")))
	}

	// Performance
	m := r.Metrics
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Final Value | %.2f |\n", m.EndValue))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", m.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| CAGR | %.2f%% |\n", m.CAGR*100))
	sb.WriteString(fmt.Sprintf("| Volatility | %.2f%% |\n", m.Volatility*100))
	sb.WriteString(fmt.Sprintf("| Sharpe | %.3f |\n", m.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Sortino | %.3f |\n", m.SortinoRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", m.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Calmar | %.3f |\n", m.CalmarRatio))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% (%d closed) |\n", m.WinRate*100, m.ClosedTrades))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", m.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Costs | %.2f |\n", m.TotalCosts))
	sb.WriteString(fmt.Sprintf("| Benchmark Return | %.2f%% |\n", m.BenchmarkTotal*100))
	sb.WriteString(fmt.Sprintf("| Outperformance | %.2f%% |\n", m.Outperformance*100))
	sb.WriteString("\n")

	// Exits
	sb.WriteString("## Exits\n\n")
	sb.WriteString("| Reason | Count | Avg Holding Days |\n")
	sb.WriteString("|--------|-------|------------------|\n")
	for _, e := range r.Exits {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f |\n", e.Reason, e.Count, e.AvgHoldingDays))
	}
	sb.WriteString("\n")

	// Stop-loss diagnostics
	sb.WriteString("## Stop-Loss Diagnostics\n\n")
	sb.WriteString(fmt.Sprintf("Stopped: %d | Recovery rate: %.2f%% | False positives: %d\n\n",
		r.StoppedPositions, r.RecoveryRate*100, r.FalsePositives))
	if len(r.LateStopLosses) > 0 {
		sb.WriteString("| Symbol | Date | PnL | Threshold |\n")
		sb.WriteString("|--------|------|-----|-----------|\n")
		for _, l := range r.LateStopLosses {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f%% | %.2f%% |\n",
				l.Symbol, l.Date.Format(dateLayout), l.PnLPct*100, l.Threshold*100))
		}
	} else {
		sb.WriteString("No late stop-losses.\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Degraded symbols: %d | Stale marks: %d\n\n", r.DegradedSymbolCount, r.StaleMarks))

	// Regimes
	sb.WriteString("## Regimes\n\n")
	if len(r.Regimes) > 0 {
		sb.WriteString("| Regime | Rebalances | Avg Target |\n")
		sb.WriteString("|--------|------------|------------|\n")
		for _, g := range r.Regimes {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f |\n", g.Regime, g.Rebalances, g.AvgTarget))
		}
	} else {
		sb.WriteString("No rebalances recorded.\n")
	}
	sb.WriteString("\n")

	// Rebalance log
	sb.WriteString("## Rebalance Log\n\n")
	if len(r.Rebalances) > 0 {
		sb.WriteString("| Date | Regime | Sells | Buys | Avg Score | Value | Selected |\n")
		sb.WriteString("|------|--------|-------|------|-----------|-------|----------|\n")
		for _, rb := range r.Rebalances {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.2f | %.2f | %s |\n",
				rb.Date.Format(dateLayout), rb.Regime, rb.Sells, rb.Buys,
				rb.AvgScore, rb.PortfolioValue, strings.Join(rb.Selected, " ")))
		}
	} else {
		sb.WriteString("No rebalances recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
