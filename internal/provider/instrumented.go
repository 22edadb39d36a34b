package provider

import (
	"context"
	"errors"
	"time"

	"equity-factor-lab/internal/domain"
)

// CallRecorder receives one observation per history request.
type CallRecorder interface {
	RecordProviderCall(source string, seconds float64, err error)
}

// Instrumented reports latency and outcome of every call to a recorder.
type Instrumented struct {
	next     Provider
	source   string
	recorder CallRecorder
}

var _ Provider = (*Instrumented)(nil)

// NewInstrumented wraps next. ErrNoData is reported as success.
func NewInstrumented(next Provider, source string, recorder CallRecorder) *Instrumented {
	return &Instrumented{next: next, source: source, recorder: recorder}
}

// History delegates and records the call.
func (p *Instrumented) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	began := time.Now()
	pts, err := p.next.History(ctx, symbol, start, end)

	reported := err
	if errors.Is(err, ErrNoData) {
		reported = nil
	}
	p.recorder.RecordProviderCall(p.source, time.Since(began).Seconds(), reported)
	return pts, err
}
