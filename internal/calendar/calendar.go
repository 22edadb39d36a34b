// Package calendar generates rebalance schedules over a trading calendar.
package calendar

import (
	"fmt"
	"time"

	"equity-factor-lab/internal/domain"
)

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// periodKey identifies the rebalance period containing t.
func periodKey(t time.Time, frequency string) (int, int, error) {
	switch frequency {
	case domain.RebalanceMonthly:
		return t.Year(), int(t.Month()), nil
	case domain.RebalanceQuarterly:
		return t.Year(), (int(t.Month())-1)/3 + 1, nil
	default:
		return 0, 0, fmt.Errorf("unknown rebalance frequency %q", frequency)
	}
}

// RebalanceDates picks the first trading day of each period from tradingDays
// that falls inside [start, end]. The first trading day in range is always
// a rebalance date. tradingDays must be sorted ascending.
func RebalanceDates(tradingDays []time.Time, start, end time.Time, frequency string) ([]time.Time, error) {
	if _, _, err := periodKey(start, frequency); err != nil {
		return nil, err
	}
	start, end = Day(start), Day(end)

	var (
		dates            []time.Time
		lastYear, lastPd int
		have             bool
	)
	for _, d := range tradingDays {
		d = Day(d)
		if d.Before(start) || d.After(end) {
			continue
		}
		y, p, _ := periodKey(d, frequency)
		if have && y == lastYear && p == lastPd {
			continue
		}
		if have && !d.After(dates[len(dates)-1]) {
			continue
		}
		dates = append(dates, d)
		lastYear, lastPd, have = y, p, true
	}
	return dates, nil
}
