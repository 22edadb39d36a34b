package lookup

import (
	"errors"
	"sort"
	"time"

	"equity-factor-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
	ErrNoPriceAsOf = errors.New("no price at or before target date")
)

// IndexAtOrBefore returns the index of the last point dated <= target,
// or -1 if every point is later. points must be sorted by Date ASC.
func IndexAtOrBefore(points []domain.PricePoint, target time.Time) int {
	// First index with Date > target
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(target)
	})
	return i - 1
}

// VisibleAt returns the prefix of points dated <= target.
// The returned slice shares the backing array and must not be modified.
func VisibleAt(points []domain.PricePoint, target time.Time) []domain.PricePoint {
	return points[:IndexAtOrBefore(points, target)+1]
}

// CloseAt returns the close at or before target.
// Unlike a live lookup it never falls forward to a later price.
func CloseAt(points []domain.PricePoint, target time.Time) (float64, time.Time, error) {
	if len(points) == 0 {
		return 0, time.Time{}, ErrNoPriceData
	}
	i := IndexAtOrBefore(points, target)
	if i < 0 {
		return 0, time.Time{}, ErrNoPriceAsOf
	}
	return points[i].Close, points[i].Date, nil
}

// CloseOn returns the close on exactly target.
func CloseOn(points []domain.PricePoint, target time.Time) (float64, bool) {
	i := IndexAtOrBefore(points, target)
	if i < 0 || !points[i].Date.Equal(target) {
		return 0, false
	}
	return points[i].Close, true
}
