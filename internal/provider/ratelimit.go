package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"equity-factor-lab/internal/domain"
)

// RateLimited throttles calls to an upstream provider.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

var _ Provider = (*RateLimited)(nil)

// NewRateLimited allows perSecond calls with the given burst.
func NewRateLimited(next Provider, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// History waits for a token, then delegates.
func (p *RateLimited) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return p.next.History(ctx, symbol, start, end)
}
