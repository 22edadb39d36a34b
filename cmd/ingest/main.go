package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"equity-factor-lab/internal/config"
	"equity-factor-lab/internal/logging"
	"equity-factor-lab/internal/provider"
	chstore "equity-factor-lab/internal/storage/clickhouse"
	"equity-factor-lab/internal/storage/migrations"
)

const dateLayout = "2006-01-02"

var (
	configPath string
	sourceName string
	sinkName   string
	symbolsArg string
	startArg   string
	endArg     string
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load daily bars into the local price store",
	Long: `Pulls daily bars from Alpaca or Yahoo and writes them into ClickHouse or a
Parquet directory, so backtests can run against local history.

Symbols default to the configured universe plus the benchmark. The date range
defaults to the backtest window extended back by the lookback period.`,
	Example: `  ingest --source alpaca --sink clickhouse
  ingest --source yahoo --sink parquet --symbols AAPL,MSFT,SPY --start 2015-01-01`,
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.Flags().StringVar(&sourceName, "source", config.ProviderAlpaca, "Remote source: alpaca, yahoo")
	rootCmd.Flags().StringVar(&sinkName, "sink", config.ProviderClickHouse, "Local store: clickhouse, parquet")
	rootCmd.Flags().StringVar(&symbolsArg, "symbols", "", "Comma-separated symbols (default: universe + benchmark)")
	rootCmd.Flags().StringVar(&startArg, "start", "", "First date, YYYY-MM-DD")
	rootCmd.Flags().StringVar(&endArg, "end", "", "Last date, YYYY-MM-DD")
	rootCmd.Flags().IntVar(&workers, "workers", 4, "Concurrent per-symbol requests (yahoo)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := logging.Component("ingest")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbols := parseSymbols(symbolsArg)
	if len(symbols) == 0 {
		symbols = defaultSymbols(cfg)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to ingest")
	}

	start, end, err := dateRange(cfg, startArg, endArg)
	if err != nil {
		return err
	}

	source, err := openSource(cfg.Data, sourceName)
	if err != nil {
		return err
	}
	sink, closeSink, err := openSink(ctx, cfg.Data, sinkName)
	if err != nil {
		return err
	}
	defer closeSink()

	logger.Info().
		Str("source", sourceName).
		Str("sink", sinkName).
		Int("symbols", len(symbols)).
		Str("start", start.Format(dateLayout)).
		Str("end", end.Format(dateLayout)).
		Msg("ingest starting")

	began := time.Now()
	stats, err := Ingest(ctx, Options{
		Source:  source,
		Sink:    sink,
		Symbols: symbols,
		Start:   start,
		End:     end,
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Int("symbols_loaded", stats.Symbols).
		Int("bars", stats.Bars).
		Int("up_to_date", stats.UpToDate).
		Strs("empty", stats.Empty).
		Dur("elapsed", time.Since(began)).
		Msg("ingest complete")
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d bars for %d symbols\n", stats.Bars, stats.Symbols)
	return nil
}

func openSource(cfg config.DataConfig, name string) (Source, error) {
	switch name {
	case config.ProviderAlpaca:
		return provider.NewAlpacaProvider(provider.AlpacaOptions{
			APIKey:    cfg.AlpacaKey,
			APISecret: cfg.AlpacaSecret,
			Feed:      cfg.AlpacaFeed,
		}), nil
	case config.ProviderYahoo:
		return provider.NewRateLimited(provider.NewYahooProvider(), cfg.RateLimitPerSecond, cfg.RateLimitBurst), nil
	default:
		return nil, fmt.Errorf("unknown source %q (alpaca, yahoo)", name)
	}
}

func openSink(ctx context.Context, cfg config.DataConfig, name string) (Sink, func(), error) {
	switch name {
	case config.ProviderClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open clickhouse price store: %w", err)
		}
		return storeSink{chstore.NewPriceStore(conn)}, func() {
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("close clickhouse")
			}
		}, nil
	case config.ProviderParquet:
		if cfg.ParquetDir == "" {
			return nil, nil, fmt.Errorf("parquet sink requires data.parquet_dir")
		}
		return provider.NewParquetStore(cfg.ParquetDir), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q (clickhouse, parquet)", name)
	}
}

func parseSymbols(arg string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(arg, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func defaultSymbols(cfg *config.Config) []string {
	all := append([]string{}, cfg.Backtest.Universe...)
	if cfg.Backtest.Benchmark != "" {
		all = append(all, cfg.Backtest.Benchmark)
	}
	return parseSymbols(strings.Join(all, ","))
}

// dateRange resolves the ingest window. The default start reaches back far
// enough to cover the factor lookback of the configured backtest.
func dateRange(cfg *config.Config, startArg, endArg string) (time.Time, time.Time, error) {
	start := cfg.Backtest.StartDate.AddDate(0, 0, -cfg.Backtest.LookbackDays*7/5-7)
	end := cfg.Backtest.EndDate
	if startArg != "" {
		t, err := time.Parse(dateLayout, startArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start: %w", err)
		}
		start = t
	}
	if endArg != "" {
		t, err := time.Parse(dateLayout, endArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end: %w", err)
		}
		end = t
	}
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("date range not set: pass --start/--end or configure backtest dates")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	return start, end, nil
}
