package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"equity-factor-lab/internal/config"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/logging"
	"equity-factor-lab/internal/observability"
	"equity-factor-lab/internal/orchestrator"
	"equity-factor-lab/internal/provider"
	"equity-factor-lab/internal/reporting"
)

var (
	runFormat      string
	runOutDir      string
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from the config file",
	Long: `Loads the config, bulk-loads history from the configured data provider,
simulates the strategy day by day and persists the result.

Interrupting the run (Ctrl-C) stops the simulation and keeps the partial
result, which is still reported and persisted.`,
	Example: `  backtest run --config config.yaml
  backtest run --config config.yaml --format markdown --out reports/
  backtest run --config config.yaml --metrics-addr :9090`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, markdown, json")
	runCmd.Flags().StringVar(&runOutDir, "out", "", "Directory for report.md, equity.csv and trades.csv")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := logging.Component("backtest")

	ctx, cancel := signalContext()
	defer cancel()

	metrics := observability.NewMetrics("")
	addr := cfg.Metrics.Addr
	if runMetricsAddr != "" {
		addr = runMetricsAddr
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", addr).Msg("serving metrics")
	}

	built, err := provider.FromConfig(ctx, cfg.Data, logging.Component("provider"))
	if err != nil {
		return err
	}
	defer built.Close()

	store, closeStore, err := openRunStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	orch := orchestrator.New(orchestrator.Options{
		Provider:  built.Provider,
		RunStore:  store,
		Metrics:   metrics,
		Analyzers: orchestrator.Analyzers(cfg.Analyzers),
		Logger:    logging.Component("orchestrator"),
	})

	res, runErr := orch.Run(ctx, cfg.Backtest)
	if res == nil {
		return runErr
	}

	if err := writeResult(cmd, res, runFormat); err != nil {
		return err
	}
	if runOutDir != "" {
		if err := writeArtifacts(runOutDir, res); err != nil {
			return err
		}
		logger.Info().Str("dir", runOutDir).Msg("report written")
	}
	return runErr
}

// writeResult prints res to stdout in the requested format.
func writeResult(cmd *cobra.Command, res *domain.BacktestResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "markdown", "md":
		_, err := fmt.Fprint(out, reporting.RenderMarkdown(reporting.Build(res, time.Now().UTC())))
		return err
	case "table", "":
		reporting.RenderTable(out, reporting.Build(res, time.Now().UTC()))
		return nil
	default:
		return fmt.Errorf("unknown format %q (table, markdown, json)", format)
	}
}

// writeArtifacts writes the Markdown report and CSV exports into dir.
func writeArtifacts(dir string, res *domain.BacktestResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]string{
		"report.md":  reporting.RenderMarkdown(reporting.Build(res, time.Now().UTC())),
		"equity.csv": reporting.RenderEquityCSV(res.EquityCurve),
		"trades.csv": reporting.RenderTradesCSV(res.Trades),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
