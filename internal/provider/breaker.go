package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"equity-factor-lab/internal/domain"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("data provider circuit open")

// BreakerOptions configures a CircuitBreaker.
type BreakerOptions struct {
	Name        string
	MaxFailures uint32        // consecutive failures before opening
	OpenFor     time.Duration // time spent open before a half-open trial call
	Logger      zerolog.Logger
}

// CircuitBreaker stops calling an upstream provider after repeated failures.
// ErrNoData and context errors do not count as failures.
type CircuitBreaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

var _ Provider = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps next with a breaker.
func NewCircuitBreaker(next Provider, opts BreakerOptions) *CircuitBreaker {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "data-provider"
	}
	logger := opts.Logger

	st := gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNoData) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &CircuitBreaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// History delegates through the breaker.
func (p *CircuitBreaker) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.History(ctx, symbol, start, end)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, symbol)
		}
		return nil, err
	}
	return out.([]domain.PricePoint), nil
}

// State reports the breaker state.
func (p *CircuitBreaker) State() gobreaker.State {
	return p.cb.State()
}
