package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"equity-factor-lab/internal/domain"
)

// RenderTable prints the headline metrics and exit breakdown as console tables.
func RenderTable(w io.Writer, r *Report) {
	m := r.Metrics
	fmt.Fprintf(w, "\nRun %s  %s to %s  [%s]\n",
		r.RunID, r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout), r.Status)

	table := tablewriter.NewWriter(w)
	table.Header("Final", "Return", "CAGR", "Vol", "Sharpe", "Sortino", "MaxDD", "Calmar", "Bench", "Excess")
	table.Append(
		fmt.Sprintf("%.2f", m.EndValue),
		pct(m.TotalReturn),
		pct(m.CAGR),
		pct(m.Volatility),
		fmt.Sprintf("%.2f", m.SharpeRatio),
		fmt.Sprintf("%.2f", m.SortinoRatio),
		pct(m.MaxDrawdown),
		fmt.Sprintf("%.2f", m.CalmarRatio),
		pct(m.BenchmarkTotal),
		pct(m.Outperformance),
	)
	table.Render()

	exits := tablewriter.NewWriter(w)
	exits.Header("Exit Reason", "Count", "Avg Days")
	for _, e := range r.Exits {
		exits.Append(string(e.Reason), fmt.Sprintf("%d", e.Count), fmt.Sprintf("%.1f", e.AvgHoldingDays))
	}
	exits.Render()

	fmt.Fprintf(w, "  trades %d | win rate %s | costs %.2f | late stops %d | degraded %d\n",
		m.TotalTrades, pct(m.WinRate), m.TotalCosts, len(r.LateStopLosses), r.DegradedSymbolCount)
}

// RenderRunList prints stored run summaries as a console table.
func RenderRunList(w io.Writer, runs []domain.RunSummary) {
	table := tablewriter.NewWriter(w)
	table.Header("Run", "Created", "Status", "Window", "Return", "CAGR", "Sharpe", "MaxDD", "Trades")
	for _, s := range runs {
		table.Append(
			s.RunID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.Status,
			s.StartDate.Format(dateLayout)+" "+s.EndDate.Format(dateLayout),
			pct(s.TotalReturn),
			pct(s.CAGR),
			fmt.Sprintf("%.2f", s.SharpeRatio),
			pct(s.MaxDrawdown),
			fmt.Sprintf("%d", s.TradeCount),
		)
	}
	table.Render()
}

// RenderPresets prints the named weight presets, one column per factor.
func RenderPresets(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header(toAny(append([]string{"Preset"}, domain.AllFactors...))...)
	for _, name := range domain.PresetNames() {
		weights, _ := domain.Preset(name)
		row := []string{name}
		for _, f := range domain.AllFactors {
			row = append(row, fmt.Sprintf("%.2f", weights[f]))
		}
		table.Append(toAny(row)...)
	}
	table.Render()
}

func pct(v float64) string {
	return strings.TrimSpace(fmt.Sprintf("%7.2f%%", v*100))
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
