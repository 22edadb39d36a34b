// Package orchestrator runs one backtest end to end.
// It coordinates: validation → bulk load → simulation → metrics → persistence
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/config"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/factor"
	"equity-factor-lab/internal/observability"
	"equity-factor-lab/internal/performance"
	"equity-factor-lab/internal/provider"
	"equity-factor-lab/internal/ranking"
	"equity-factor-lab/internal/regime"
	"equity-factor-lab/internal/series"
	"equity-factor-lab/internal/simulation"
	"equity-factor-lab/internal/storage"
)

// saveTimeout bounds persistence after the run, including cancelled runs.
const saveTimeout = 30 * time.Second

// Options for creating Orchestrator.
type Options struct {
	// Required
	Provider provider.Provider

	// Optional
	RunStore  storage.RunStore       // nil skips persistence
	Metrics   *observability.Metrics // nil disables metrics
	Analyzers []factor.Analyzer      // defaults to factor.Builtin()
	Logger    zerolog.Logger
}

// Orchestrator coordinates a backtest run.
type Orchestrator struct {
	provider  provider.Provider
	runStore  storage.RunStore
	metrics   *observability.Metrics
	analyzers []factor.Analyzer
	logger    zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		provider:  opts.Provider,
		runStore:  opts.RunStore,
		metrics:   opts.Metrics,
		analyzers: opts.Analyzers,
		logger:    opts.Logger,
	}
}

// Analyzers returns the built-in analyzers with the factors named in cfg
// served by the remote analyzer service instead.
func Analyzers(cfg config.AnalyzerConfig) []factor.Analyzer {
	analyzers := factor.Builtin()
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	for _, name := range cfg.RemoteFactors {
		analyzers = append(analyzers, factor.NewRemoteAnalyzer(name, cfg.RemoteURL, timeout))
	}
	return analyzers
}

// Run executes one backtest.
//
// Configuration and data problems, including a cancelled remote factor
// preload, fail before any simulation with a nil result. Once the
// simulation starts the result is always returned, also on failure or
// cancellation, together with the simulation error. The result is
// persisted best-effort; a save error is logged only.
func (o *Orchestrator) Run(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestResult, error) {
	if err := config.ValidateBacktest(cfg); err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	runID := uuid.NewString()
	logger := o.logger.With().Str("run_id", runID).Logger()

	logger.Info().
		Time("start", cfg.StartDate).
		Time("end", cfg.EndDate).
		Int("universe", len(cfg.Universe)).
		Str("benchmark", cfg.Benchmark).
		Msg("backtest started")

	// Phase 1: bulk load
	src := o.provider
	if o.metrics != nil {
		src = provider.NewInstrumented(src, "history", o.metrics)
	}
	loader := series.NewLoader(series.LoaderOptions{
		Provider:     src,
		LookbackDays: cfg.LookbackDays,
		Workers:      cfg.ScoringWorkers,
		Logger:       logger,
	})
	store, err := loader.Load(ctx, cfg.Universe, cfg.Benchmark, cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// Phase 2: wire the run
	analyzers, err := o.preloadNetworked(ctx, logger, store, cfg)
	if err != nil {
		return nil, err
	}
	scorer := factor.NewScorer(factor.ScorerOptions{
		History:   store,
		Analyzers: analyzers,
		Logger:    logger,
	})
	regimes := regime.NewService(regime.Options{
		Source:    store,
		Benchmark: store.Benchmark(),
		Weights:   cfg.AgentWeights,
		TopN:      cfg.TopNStocks,
		Adaptive:  cfg.EnableRegimeDetection,
		Logger:    logger,
	})
	simOpts := simulation.Options{
		Config: cfg,
		Market: store,
		Ranker: ranking.New(scorer, cfg.ScoringWorkers),
		Regime: regimes,
		Logger: logger,
	}
	if o.metrics != nil {
		simOpts.Observer = o.metrics
	}
	sim, err := simulation.New(simOpts)
	if err != nil {
		return nil, fmt.Errorf("create simulator: %w", err)
	}

	// Phase 3: simulate
	res, runErr := sim.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	// Phase 4: metrics
	res.RunID = runID
	res.Excluded = store.Excluded()
	res.StartedAt = started
	res.FinishedAt = time.Now().UTC()
	res.PerformanceMetrics = performance.Compute(performance.Input{
		InitialCapital: cfg.InitialCapital,
		RiskFreeRate:   cfg.RiskFreeRate,
		Curve:          res.EquityCurve,
		Trades:         res.Trades,
		Benchmark:      store.Slice(store.Benchmark(), cfg.EndDate),
	})
	if o.metrics != nil {
		o.metrics.RecordRun(res, res.FinishedAt.Sub(started))
	}

	hits, misses := regimes.CacheStats()
	logger.Info().
		Str("status", res.Status).
		Bool("cancelled", res.Cancelled).
		Float64("total_return", res.PerformanceMetrics.TotalReturn).
		Float64("cagr", res.PerformanceMetrics.CAGR).
		Float64("sharpe", res.PerformanceMetrics.SharpeRatio).
		Float64("max_drawdown", res.PerformanceMetrics.MaxDrawdown).
		Int("trades", len(res.Trades)).
		Int("regime_cache_hits", hits).
		Int("regime_cache_misses", misses).
		Msg("backtest finished")

	// Phase 5: persist
	o.persist(ctx, logger, res)

	return res, runErr
}

// preloadNetworked replaces networked analyzers with copies answered for
// every universe symbol on every rebalance date, so the simulation loop
// makes no network calls.
func (o *Orchestrator) preloadNetworked(ctx context.Context, logger zerolog.Logger, store *series.Store, cfg domain.BacktestConfig) ([]factor.Analyzer, error) {
	var (
		out   = make([]factor.Analyzer, 0, len(o.analyzers))
		dates []time.Time
		ready bool
	)
	for _, a := range o.analyzers {
		n, ok := a.(factor.Networked)
		if !ok || !n.Networked() {
			out = append(out, a)
			continue
		}
		if !ready {
			if days := store.TradingDays(cfg.StartDate, cfg.EndDate); len(days) > 0 {
				d, err := calendar.RebalanceDates(days, cfg.StartDate, cfg.EndDate, cfg.RebalanceFrequency)
				if err != nil {
					return nil, fmt.Errorf("rebalance dates: %w", err)
				}
				dates = d
			}
			ready = true
		}

		began := time.Now()
		p, err := factor.Preload(ctx, a, factor.PreloadOptions{
			History: store,
			Symbols: store.Symbols(),
			Dates:   dates,
			Workers: cfg.ScoringWorkers,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("factor", a.Name()).
			Int("analyses", p.Len()).
			Dur("elapsed", time.Since(began)).
			Msg("remote factor preloaded")
		out = append(out, p)
	}
	return out, nil
}

// persist saves the run. Errors are logged and never returned.
func (o *Orchestrator) persist(ctx context.Context, logger zerolog.Logger, res *domain.BacktestResult) {
	if o.runStore == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	began := time.Now()
	err := o.runStore.Save(sctx, res.RunID, res.Config, res)
	if o.metrics != nil {
		o.metrics.RecordDBQuery("runs", "save", time.Since(began).Seconds(), err)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist run")
		return
	}
	logger.Debug().Msg("run persisted")
}
