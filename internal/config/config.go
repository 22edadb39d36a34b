// Package config loads and validates backtest configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"equity-factor-lab/internal/domain"
)

// Config is the complete configuration for the backtest binaries.
type Config struct {
	Backtest  domain.BacktestConfig `yaml:"backtest"`
	Data      DataConfig            `yaml:"data"`
	Analyzers AnalyzerConfig        `yaml:"analyzers"`
	Storage   StorageConfig         `yaml:"storage"`
	Log       LogConfig             `yaml:"log"`
	Metrics   MetricsConfig         `yaml:"metrics"`
}

// Data provider kinds.
const (
	ProviderAlpaca     = "alpaca"
	ProviderYahoo      = "yahoo"
	ProviderParquet    = "parquet"
	ProviderClickHouse = "clickhouse"
)

// DataConfig selects and tunes the historical data provider.
type DataConfig struct {
	Provider      string `yaml:"provider"` // alpaca | yahoo | parquet | clickhouse
	AlpacaKey     string `yaml:"alpaca_key"`
	AlpacaSecret  string `yaml:"alpaca_secret"`
	AlpacaFeed    string `yaml:"alpaca_feed"` // sip | iex
	ParquetDir    string `yaml:"parquet_dir"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`

	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`

	BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`
	BreakerOpenSeconds int    `yaml:"breaker_open_seconds"`

	RedisAddr     string `yaml:"redis_addr"` // empty disables caching
	CacheTTLHours int    `yaml:"cache_ttl_hours"`
}

// AnalyzerConfig points factors at an external analyzer service. Remote
// factors are fetched for every rebalance date before the simulation runs.
type AnalyzerConfig struct {
	RemoteURL      string   `yaml:"remote_url"`
	RemoteFactors  []string `yaml:"remote_factors"` // factors served remotely
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageConfig controls where finished runs are persisted.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite | postgres
	DSN    string `yaml:"dsn"`    // sqlite file path or postgres URL
}

// LogConfig controls log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{
		Backtest: domain.BacktestConfig{
			InitialCapital:        100000,
			RebalanceFrequency:    domain.RebalanceMonthly,
			TopNStocks:            20,
			Benchmark:             "SPY",
			TransactionCost:       0.001,
			WeightPreset:          domain.PresetBacktest,
			EnableRiskManagement:  true,
			EnableRegimeDetection: true,
			StopLossThreshold:     0.20,
			RiskFreeRate:          0.02,
			LookbackDays:          400,
			ScoringWorkers:        8,
		},
	}
	setDefaults(cfg)
	_ = resolveWeights(&cfg.Backtest)
	return cfg
}

// Load reads a YAML config file, applies .env and environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Presets are resolved after decoding; keep explicit weights distinguishable.
	cfg.Backtest.AgentWeights = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := resolveWeights(&cfg.Backtest); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides values with environment variables when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EFL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("EFL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("EFL_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("EFL_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("EFL_CLICKHOUSE_DSN"); v != "" {
		cfg.Data.ClickHouseDSN = v
	}
	if v := os.Getenv("EFL_REDIS_ADDR"); v != "" {
		cfg.Data.RedisAddr = v
	}
	if v := os.Getenv("EFL_DATA_PROVIDER"); v != "" {
		cfg.Data.Provider = v
	}
	if v := os.Getenv("EFL_SCORING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.ScoringWorkers = n
		}
	}
	// Alpaca SDK variable names
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Data.AlpacaKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Data.AlpacaSecret = v
	}
}

// setDefaults fills unset infrastructure values and normalises dates and symbols.
func setDefaults(cfg *Config) {
	b := &cfg.Backtest
	b.StartDate = truncateDay(b.StartDate)
	b.EndDate = truncateDay(b.EndDate)
	b.RebalanceFrequency = strings.ToLower(strings.TrimSpace(b.RebalanceFrequency))
	b.Benchmark = strings.ToUpper(strings.TrimSpace(b.Benchmark))
	for i, s := range b.Universe {
		b.Universe[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if cfg.Data.Provider == "" {
		cfg.Data.Provider = ProviderYahoo
	}
	if cfg.Data.AlpacaFeed == "" {
		cfg.Data.AlpacaFeed = "sip"
	}
	if cfg.Data.ParquetDir == "" {
		cfg.Data.ParquetDir = "data"
	}
	if cfg.Data.RateLimitPerSecond <= 0 {
		cfg.Data.RateLimitPerSecond = 3
	}
	if cfg.Data.RateLimitBurst <= 0 {
		cfg.Data.RateLimitBurst = 1
	}
	if cfg.Data.BreakerMaxFailures == 0 {
		cfg.Data.BreakerMaxFailures = 5
	}
	if cfg.Data.BreakerOpenSeconds <= 0 {
		cfg.Data.BreakerOpenSeconds = 30
	}
	if cfg.Data.CacheTTLHours <= 0 {
		cfg.Data.CacheTTLHours = 24
	}
	if cfg.Analyzers.TimeoutSeconds <= 0 {
		cfg.Analyzers.TimeoutSeconds = 10
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageSQLite
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == StorageSQLite {
		cfg.Storage.DSN = "backtests.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// resolveWeights fills AgentWeights from the named preset when none were given.
func resolveWeights(b *domain.BacktestConfig) error {
	if len(b.AgentWeights) > 0 {
		return nil
	}
	name := b.WeightPreset
	if name == "" {
		name = domain.PresetBacktest
	}
	w, ok := domain.Preset(name)
	if !ok {
		return &ConfigurationError{Problems: []string{
			fmt.Sprintf("unknown weight_preset %q (available: %s)", name, strings.Join(domain.PresetNames(), ", ")),
		}}
	}
	b.WeightPreset = name
	b.AgentWeights = w
	return nil
}

// CacheTTL returns the history cache TTL.
func (d DataConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLHours) * time.Hour
}

// BreakerOpen returns how long the circuit stays open after tripping.
func (d DataConfig) BreakerOpen() time.Duration {
	return time.Duration(d.BreakerOpenSeconds) * time.Second
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
