package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/config"
	chstore "equity-factor-lab/internal/storage/clickhouse"
	"equity-factor-lab/internal/storage/migrations"
)

// Built is a configured provider plus the resources it holds.
type Built struct {
	Provider Provider
	closers  []func() error
}

// Close releases connections opened by FromConfig.
func (b *Built) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FromConfig builds the provider chain described by cfg.
// Remote sources are wrapped as cache -> breaker -> rate limit -> source.
func FromConfig(ctx context.Context, cfg config.DataConfig, logger zerolog.Logger) (*Built, error) {
	b := &Built{}

	var (
		source Provider
		remote bool
	)
	switch cfg.Provider {
	case config.ProviderAlpaca:
		source = NewAlpacaProvider(AlpacaOptions{
			APIKey:    cfg.AlpacaKey,
			APISecret: cfg.AlpacaSecret,
			Feed:      cfg.AlpacaFeed,
		})
		remote = true
	case config.ProviderYahoo:
		source = NewYahooProvider()
		remote = true
	case config.ProviderParquet:
		source = NewParquetStore(cfg.ParquetDir)
	case config.ProviderClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, fmt.Errorf("open clickhouse price store: %w", err)
		}
		b.closers = append(b.closers, conn.Close)
		source = NewStoreProvider(chstore.NewPriceStore(conn))
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Provider)
	}

	if remote {
		source = NewRateLimited(source, cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		source = NewCircuitBreaker(source, BreakerOptions{
			Name:        cfg.Provider,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenFor:     cfg.BreakerOpen(),
			Logger:      logger,
		})
	}

	if cfg.RedisAddr != "" {
		rdb, err := NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("history cache disabled")
		} else {
			b.closers = append(b.closers, rdb.Close)
			source = NewCached(source, rdb, CacheOptions{
				TTL:    cfg.CacheTTL(),
				Prefix: cfg.Provider,
				Logger: logger,
			})
		}
	}

	b.Provider = source
	return b, nil
}
