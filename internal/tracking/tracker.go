// Package tracking attributes every exit and follows stopped-out symbols.
package tracking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"equity-factor-lab/internal/calendar"
	"equity-factor-lab/internal/domain"
)

// Tracking windows and tolerances.
const (
	RecoveryWindowDays = 90   // calendar days a stopped symbol is watched
	FalsePositiveDays  = 30   // recovery within this many days marks a false positive
	LateStopTolerance  = 0.02 // loss beyond threshold+tolerance is a late stop
)

// ErrUnknownPosition is returned when exiting a symbol that is not tracked.
var ErrUnknownPosition = errors.New("position not tracked")

// entry is the tracker's view of an open position.
type entry struct {
	pos      domain.Position
	maxPrice float64
	minPrice float64
}

// Tracker records entry context and exit attribution for a run.
// It is not safe for concurrent use; the simulator owns it.
type Tracker struct {
	threshold float64

	open     map[string]*entry
	stopped  []*domain.StoppedPosition
	exits    []domain.ExitDetails
	late     []domain.LateStopLoss
	degraded map[string]struct{}
	stale    int
}

// New creates a Tracker for a run with the given stop-loss threshold.
func New(threshold float64) *Tracker {
	return &Tracker{
		threshold: threshold,
		open:      make(map[string]*entry),
		degraded:  make(map[string]struct{}),
	}
}

// AddPosition captures the entry context of a new position.
func (t *Tracker) AddPosition(pos domain.Position) {
	t.open[pos.Symbol] = &entry{
		pos:      pos,
		maxPrice: pos.EntryPrice,
		minPrice: pos.EntryPrice,
	}
}

// ExitPosition closes a tracked position and returns its attribution.
// A STOP_LOSS exit starts a recovery watch; a stop that lost more than
// threshold + LateStopTolerance is recorded as late.
func (t *Tracker) ExitPosition(symbol string, date time.Time, price float64, reason domain.ExitReason) (domain.ExitDetails, error) {
	e, ok := t.open[symbol]
	if !ok {
		return domain.ExitDetails{}, fmt.Errorf("%w: %s", ErrUnknownPosition, symbol)
	}
	delete(t.open, symbol)

	if price > e.maxPrice {
		e.maxPrice = price
	}
	if price < e.minPrice {
		e.minPrice = price
	}

	pnl := e.pos.ReturnAt(price)
	details := domain.ExitDetails{
		ExitReason:        reason,
		EntryDate:         e.pos.EntryDate,
		ExitDate:          date,
		EntryPrice:        e.pos.EntryPrice,
		ExitPrice:         price,
		PnLPct:            pnl,
		HoldingPeriodDays: calendar.DaysBetween(e.pos.EntryDate, date),
		MaxPriceWhileHeld: e.maxPrice,
		MinPriceWhileHeld: e.minPrice,
		EntryScore:        e.pos.EntryScore,
		EntryRank:         e.pos.EntryRank,
		EntryRegime:       e.pos.EntryRegime.Key(),
		StopLossTriggered: reason == domain.ExitReasonStopLoss,
		StopLossThreshold: t.threshold,
	}

	if reason == domain.ExitReasonStopLoss {
		if pnl < 0 && math.Abs(pnl) > t.threshold+LateStopTolerance {
			details.LateStopLoss = true
			t.late = append(t.late, domain.LateStopLoss{
				Symbol:    symbol,
				Date:      date,
				PnLPct:    pnl,
				Threshold: t.threshold,
			})
		}
		t.stopped = append(t.stopped, &domain.StoppedPosition{
			Symbol:     symbol,
			StopDate:   date,
			StopPrice:  price,
			EntryPrice: e.pos.EntryPrice,
			WindowEnd:  date.AddDate(0, 0, RecoveryWindowDays),
		})
	}

	t.exits = append(t.exits, details)
	return details, nil
}

// UpdatePriceTracking applies one day's closes: price extrema for open
// positions and recovery checks for stopped ones. Symbols without a price
// that day are left unchanged.
func (t *Tracker) UpdatePriceTracking(date time.Time, prices map[string]float64) {
	for sym, e := range t.open {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			continue
		}
		if px > e.maxPrice {
			e.maxPrice = px
		}
		if px < e.minPrice {
			e.minPrice = px
		}
	}

	for _, sp := range t.stopped {
		if sp.Closed || !date.After(sp.StopDate) {
			continue
		}
		if date.After(sp.WindowEnd) {
			sp.Closed = true
			continue
		}
		px, ok := prices[sp.Symbol]
		if !ok || px < sp.EntryPrice {
			continue
		}
		recovered := date
		sp.Recovered = true
		sp.RecoveryDate = &recovered
		sp.DaysToRecovery = calendar.DaysBetween(sp.StopDate, date)
		sp.FalsePositive = sp.DaysToRecovery <= FalsePositiveDays
		sp.Closed = true
	}
}

// MarkDegraded records that symbol received at least one neutral reading.
func (t *Tracker) MarkDegraded(symbol string) {
	t.degraded[symbol] = struct{}{}
}

// RecordStaleMark counts a position valued at an earlier close.
func (t *Tracker) RecordStaleMark() {
	t.stale++
}

// StoppedPositions returns copies of the recovery watches, by stop date.
func (t *Tracker) StoppedPositions() []domain.StoppedPosition {
	out := make([]domain.StoppedPosition, len(t.stopped))
	for i, sp := range t.stopped {
		out[i] = *sp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StopDate.Before(out[j].StopDate) })
	return out
}

// Statistics summarises exits, recoveries and data quality.
func (t *Tracker) Statistics() domain.TrackingStatistics {
	stats := domain.TrackingStatistics{
		TotalExits:             len(t.exits),
		ExitsByReason:          make(map[domain.ExitReason]int, len(domain.ExitReasons)),
		AvgHoldingDaysByReason: make(map[domain.ExitReason]float64, len(domain.ExitReasons)),
		StoppedPositions:       len(t.stopped),
		Stopped:                t.StoppedPositions(),
		LateStopLosses:         append([]domain.LateStopLoss(nil), t.late...),
		DegradedSymbolCount:    len(t.degraded),
		StaleMarks:             t.stale,
	}

	holding := make(map[domain.ExitReason]int)
	for _, r := range domain.ExitReasons {
		stats.ExitsByReason[r] = 0
	}
	for _, d := range t.exits {
		stats.ExitsByReason[d.ExitReason]++
		holding[d.ExitReason] += d.HoldingPeriodDays
	}
	for r, n := range stats.ExitsByReason {
		if n > 0 {
			stats.AvgHoldingDaysByReason[r] = float64(holding[r]) / float64(n)
		}
	}

	for _, sp := range t.stopped {
		if sp.Recovered {
			stats.RecoveredPositions++
		}
		if sp.FalsePositive {
			stats.FalsePositiveCount++
		}
	}
	if stats.StoppedPositions > 0 {
		stats.RecoveryRate = float64(stats.RecoveredPositions) / float64(stats.StoppedPositions)
	}
	if stats.LateStopLosses == nil {
		stats.LateStopLosses = []domain.LateStopLoss{}
	}
	return stats
}
