package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
)

// DefaultCacheTTL is used when no TTL is configured.
const DefaultCacheTTL = 24 * time.Hour

// Cached stores provider responses in Redis as JSON.
// Cache failures are logged and fall through to the upstream provider.
type Cached struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

var _ Provider = (*Cached)(nil)

// CacheOptions configures a Cached provider.
type CacheOptions struct {
	TTL    time.Duration
	Prefix string // key namespace, e.g. "yahoo"
	Logger zerolog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// NewCached wraps next with a Redis cache.
func NewCached(next Provider, client *redis.Client, opts CacheOptions) *Cached {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Prefix == "" {
		opts.Prefix = "history"
	}
	return &Cached{
		next:   next,
		client: client,
		ttl:    opts.TTL,
		prefix: opts.Prefix,
		logger: opts.Logger,
	}
}

func (p *Cached) key(symbol string, start, end time.Time) string {
	return fmt.Sprintf("efl:%s:%s:%s:%s", p.prefix, canonicalSymbol(symbol),
		start.UTC().Format("20060102"), end.UTC().Format("20060102"))
}

// History returns cached bars when present, otherwise fetches and stores them.
// ErrNoData is not cached.
func (p *Cached) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	key := p.key(symbol, start, end)

	val, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var points []domain.PricePoint
		if jerr := json.Unmarshal(val, &points); jerr == nil && len(points) > 0 {
			return points, nil
		}
		p.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		p.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
	}

	points, err := p.next.History(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(points)
	if err != nil {
		return points, nil
	}
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
	return points, nil
}
