// Package simulation replays a multi-factor strategy over daily history.
//
// The Simulator is a single-threaded state machine over trading days:
// mark to market, stop-loss, rebalance, then record equity. It owns the
// cash ledger and open positions; nothing else mutates them mid-run.
package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/idhash"
	"equity-factor-lab/internal/ranking"
	"equity-factor-lab/internal/risk"
	"equity-factor-lab/internal/tracking"
)

// State is the lifecycle state of a Simulator.
type State string

// Simulator states.
const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// Errors returned by the simulator.
var (
	ErrSimulationFailure = errors.New("simulation failure")
	ErrAlreadyRun        = errors.New("simulator already run")
)

// SimulationError is a fatal failure on a specific day.
type SimulationError struct {
	Date   time.Time
	Reason string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failure on %s: %s", e.Date.Format("2006-01-02"), e.Reason)
}

// Is matches ErrSimulationFailure.
func (e *SimulationError) Is(target error) bool {
	return target == ErrSimulationFailure
}

// Market is the preloaded price history the simulator reads.
type Market interface {
	Symbols() []string
	CloseOn(symbol string, date time.Time) (float64, bool)
	LastCloseOnOrBefore(symbol string, date time.Time) (float64, time.Time, bool)
	TradingDays(start, end time.Time) []time.Time
}

// Ranker orders the universe on a rebalance date.
type Ranker interface {
	Rank(ctx context.Context, universe []string, asOf time.Time, weights domain.WeightVector) ([]ranking.Ranked, error)
}

// RegimeService supplies the regime decision for a date.
type RegimeService interface {
	Decide(asOf time.Time) domain.RegimeDecision
}

// Observer is notified of trades and rebalances as they happen.
type Observer interface {
	OnTrade(trade domain.Trade)
	OnRebalance(record domain.RebalanceRecord)
}

// Options configures a Simulator.
type Options struct {
	Config   domain.BacktestConfig
	Market   Market
	Ranker   Ranker
	Regime   RegimeService
	Observer Observer // optional
	Logger   zerolog.Logger
}

// Simulator runs one backtest. It is not reusable.
type Simulator struct {
	cfg      domain.BacktestConfig
	market   Market
	ranker   Ranker
	regime   RegimeService
	observer Observer
	logger   zerolog.Logger

	overlay    risk.Overlay
	tracker    *tracking.Tracker
	configHash string

	state      State
	cash       decimal.Decimal
	costRate   decimal.Decimal
	positions  map[string]*domain.Position
	prevTarget int
	lastValue  float64
	tradeSeq   map[string]int

	trades     []domain.Trade
	equity     []domain.EquityPoint
	rebalances []domain.RebalanceRecord
}

// New creates a Simulator in the INITIALIZED state.
func New(opts Options) (*Simulator, error) {
	if opts.Market == nil || opts.Ranker == nil || opts.Regime == nil {
		return nil, errors.New("simulation: market, ranker and regime are required")
	}
	cfg := opts.Config
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("simulation: initial capital must be positive, got %v", cfg.InitialCapital)
	}

	canonical, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return &Simulator{
		cfg:        cfg,
		market:     opts.Market,
		ranker:     opts.Ranker,
		regime:     opts.Regime,
		observer:   opts.Observer,
		logger:     opts.Logger,
		overlay:    risk.NewOverlay(cfg.EnableRiskManagement, cfg.StopLossThreshold),
		tracker:    tracking.New(cfg.StopLossThreshold),
		configHash: idhash.ComputeConfigHash(canonical),
		state:      StateInitialized,
		cash:       decimal.NewFromFloat(cfg.InitialCapital),
		costRate:   decimal.NewFromFloat(cfg.TransactionCost),
		positions:  make(map[string]*domain.Position),
		lastValue:  cfg.InitialCapital,
		tradeSeq:   make(map[string]int),
	}, nil
}

// State returns the current lifecycle state.
func (s *Simulator) State() State { return s.state }

// Tracker exposes the run's position tracker.
func (s *Simulator) Tracker() *tracking.Tracker { return s.tracker }

// Run processes every trading day in [StartDate, EndDate].
//
// On a fatal failure the state becomes FAILED and the partial result is
// returned with a *SimulationError. On cancellation processing stops, the
// partial result is returned with Cancelled set and the context error.
// Metrics are left for the caller to compute.
func (s *Simulator) Run(ctx context.Context) (*domain.BacktestResult, error) {
	if s.state != StateInitialized {
		return nil, ErrAlreadyRun
	}
	s.state = StateRunning

	days := s.market.TradingDays(s.cfg.StartDate, s.cfg.EndDate)
	if len(days) == 0 {
		return s.fail(&SimulationError{Date: s.cfg.StartDate, Reason: "no trading days in window"})
	}
	rebalanceDates, err := calendar.RebalanceDates(days, s.cfg.StartDate, s.cfg.EndDate, s.cfg.RebalanceFrequency)
	if err != nil {
		return s.fail(&SimulationError{Date: s.cfg.StartDate, Reason: err.Error()})
	}
	isRebalance := make(map[int64]bool, len(rebalanceDates))
	for _, d := range rebalanceDates {
		isRebalance[d.Unix()] = true
	}

	s.logger.Info().
		Int("trading_days", len(days)).
		Int("rebalances", len(rebalanceDates)).
		Msg("simulation started")

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return s.cancel(day, err)
		}
		if err := s.step(ctx, day, isRebalance[calendar.Day(day).Unix()]); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return s.cancel(day, ctxErr)
			}
			return s.fail(err)
		}
	}

	s.state = StateCompleted
	s.logger.Info().
		Int("trades", len(s.trades)).
		Float64("final_value", s.lastValue).
		Msg("simulation completed")
	return s.result(), nil
}

// step runs one trading day.
func (s *Simulator) step(ctx context.Context, day time.Time, rebalance bool) error {
	closes := s.dayCloses(day)

	marks, err := s.markToMarket(day, closes)
	if err != nil {
		return err
	}
	s.tracker.UpdatePriceTracking(day, closes)

	stopped := s.applyStops(day, closes)

	if rebalance {
		if err := s.rebalance(ctx, day, closes, stopped); err != nil {
			return err
		}
	}

	s.recordEquity(day, marks)
	return nil
}

// dayCloses returns the exact closes of every universe and held symbol on day.
func (s *Simulator) dayCloses(day time.Time) map[string]float64 {
	closes := make(map[string]float64)
	for _, sym := range s.market.Symbols() {
		if px, ok := s.market.CloseOn(sym, day); ok {
			closes[sym] = px
		}
	}
	for sym := range s.positions {
		if _, ok := closes[sym]; ok {
			continue
		}
		if px, ok := s.market.CloseOn(sym, day); ok {
			closes[sym] = px
		}
	}
	return closes
}

// markToMarket values every open position. Symbols without a close on day
// use the last known close and count as stale. Fails when positions are
// held and none of them can be marked.
func (s *Simulator) markToMarket(day time.Time, closes map[string]float64) (map[string]float64, error) {
	marks := make(map[string]float64, len(s.positions))
	unmarked := 0
	for sym, pos := range s.positions {
		if px, ok := closes[sym]; ok {
			pos.LastPrice, pos.LastDate = px, day
			if px > pos.MaxPrice {
				pos.MaxPrice = px
			}
			if px < pos.MinPrice {
				pos.MinPrice = px
			}
			marks[sym] = px
			continue
		}
		if px, at, ok := s.market.LastCloseOnOrBefore(sym, day); ok {
			pos.LastPrice, pos.LastDate = px, at
			marks[sym] = px
			s.tracker.RecordStaleMark()
			continue
		}
		unmarked++
	}
	if len(s.positions) > 0 && unmarked == len(s.positions) {
		return nil, &SimulationError{Date: day, Reason: fmt.Sprintf("no price for any of %d open positions", len(s.positions))}
	}
	if unmarked > 0 {
		// Keep the previous mark for the rest.
		for sym, pos := range s.positions {
			if _, ok := marks[sym]; !ok {
				marks[sym] = pos.LastPrice
				s.tracker.RecordStaleMark()
			}
		}
	}
	return marks, nil
}

// applyStops sells every position whose close breaches the stop.
// Only fresh closes can trigger a stop. Returns the stopped symbols.
func (s *Simulator) applyStops(day time.Time, closes map[string]float64) map[string]bool {
	breaches := s.overlay.CheckStops(s.positions, closes)
	if len(breaches) == 0 {
		return nil
	}
	stopped := make(map[string]bool, len(breaches))
	for _, b := range breaches {
		trade := s.sell(day, b.Symbol, b.Price, domain.ExitReasonStopLoss)
		stopped[b.Symbol] = true
		s.logger.Info().
			Str("symbol", b.Symbol).
			Float64("return", b.Return).
			Bool("late", trade.Exit != nil && trade.Exit.LateStopLoss).
			Time("date", day).
			Msg("stop-loss exit")
	}
	return stopped
}

// recordEquity appends the day's EquityPoint from the ledger.
func (s *Simulator) recordEquity(day time.Time, marks map[string]float64) {
	positionsValue := decimal.Zero
	for _, sym := range s.heldSymbols() {
		pos := s.positions[sym]
		px, ok := marks[sym]
		if !ok {
			px = pos.LastPrice
		}
		positionsValue = positionsValue.Add(decimal.NewFromFloat(px).Mul(decimal.NewFromInt(pos.Shares)))
	}
	total := s.cash.Add(positionsValue)
	value := total.InexactFloat64()

	daily := 0.0
	if s.lastValue > 0 {
		daily = value/s.lastValue - 1
	}
	s.lastValue = value

	s.equity = append(s.equity, domain.EquityPoint{
		Date:           day,
		PortfolioValue: value,
		Cash:           s.cash.InexactFloat64(),
		PositionsValue: positionsValue.InexactFloat64(),
		DailyReturn:    daily,
	})
}

// heldSymbols returns open position symbols sorted.
func (s *Simulator) heldSymbols() []string {
	out := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Simulator) fail(err error) (*domain.BacktestResult, error) {
	s.state = StateFailed
	s.logger.Error().Err(err).Msg("simulation failed")
	res := s.result()
	res.Status = domain.RunStatusFailed
	res.Failure = err.Error()
	return res, err
}

func (s *Simulator) cancel(day time.Time, err error) (*domain.BacktestResult, error) {
	s.state = StateCompleted
	s.logger.Warn().Time("date", day).Msg("simulation cancelled, returning partial result")
	res := s.result()
	res.Cancelled = true
	return res, fmt.Errorf("simulation cancelled on %s: %w", day.Format("2006-01-02"), err)
}

// result snapshots the run so far.
func (s *Simulator) result() *domain.BacktestResult {
	final := make([]domain.Position, 0, len(s.positions))
	for _, sym := range s.heldSymbols() {
		final = append(final, *s.positions[sym])
	}
	return &domain.BacktestResult{
		Status:         domain.RunStatusCompleted,
		Config:         s.cfg,
		StartDate:      s.cfg.StartDate,
		EndDate:        s.cfg.EndDate,
		InitialCapital: s.cfg.InitialCapital,
		NumRebalances:  len(s.rebalances),
		EquityCurve:    append([]domain.EquityPoint(nil), s.equity...),
		Trades:         append([]domain.Trade(nil), s.trades...),
		Rebalances:     append([]domain.RebalanceRecord(nil), s.rebalances...),
		Tracking:       s.tracker.Statistics(),
		FinalPositions: final,
	}
}
