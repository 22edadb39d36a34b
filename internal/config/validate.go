package config

import (
	"fmt"
	"math"

	"equity-factor-lab/internal/domain"
)

// MinLookbackDays is one trading year in calendar days.
const MinLookbackDays = 365

// Validate checks the whole config.
// Returns *ConfigurationError listing every problem, or nil.
func (c *Config) Validate() error {
	cerr := &ConfigurationError{}
	validateBacktest(&c.Backtest, cerr)

	switch c.Data.Provider {
	case ProviderAlpaca:
		if c.Data.AlpacaKey == "" || c.Data.AlpacaSecret == "" {
			cerr.add("data.provider alpaca requires alpaca_key and alpaca_secret")
		}
	case ProviderYahoo, ProviderParquet:
	case ProviderClickHouse:
		if c.Data.ClickHouseDSN == "" {
			cerr.add("data.provider clickhouse requires clickhouse_dsn")
		}
	default:
		cerr.add(fmt.Sprintf("unknown data.provider %q", c.Data.Provider))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite, StoragePostgres:
		if c.Storage.DSN == "" {
			cerr.add(fmt.Sprintf("storage.driver %s requires dsn", c.Storage.Driver))
		}
	default:
		cerr.add(fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}

	if len(c.Analyzers.RemoteFactors) > 0 && c.Analyzers.RemoteURL == "" {
		cerr.add("analyzers.remote_factors requires analyzers.remote_url")
	}
	for _, f := range c.Analyzers.RemoteFactors {
		if !domain.IsKnownFactor(f) {
			cerr.add(fmt.Sprintf("analyzers.remote_factors: unknown factor %q", f))
		}
	}

	return cerr.errOrNil()
}

// ValidateBacktest checks a run config built outside of Load.
func ValidateBacktest(b domain.BacktestConfig) error {
	cerr := &ConfigurationError{}
	validateBacktest(&b, cerr)
	return cerr.errOrNil()
}

func validateBacktest(b *domain.BacktestConfig, cerr *ConfigurationError) {
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		cerr.add("start_date and end_date are required")
	} else if !b.StartDate.Before(b.EndDate) {
		cerr.add(fmt.Sprintf("start_date %s must be before end_date %s",
			b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02")))
	}

	if !(b.InitialCapital > 0) || math.IsInf(b.InitialCapital, 0) {
		cerr.add(fmt.Sprintf("initial_capital must be positive, got %v", b.InitialCapital))
	}

	switch b.RebalanceFrequency {
	case domain.RebalanceMonthly, domain.RebalanceQuarterly:
	default:
		cerr.add(fmt.Sprintf("rebalance_frequency must be monthly or quarterly, got %q", b.RebalanceFrequency))
	}

	if b.TopNStocks < 1 {
		cerr.add(fmt.Sprintf("top_n_stocks must be at least 1, got %d", b.TopNStocks))
	}

	if len(b.Universe) == 0 {
		cerr.add("universe must contain at least one symbol")
	}
	seen := make(map[string]bool, len(b.Universe))
	for _, s := range b.Universe {
		if s == "" {
			cerr.add("universe contains an empty symbol")
			continue
		}
		if seen[s] {
			cerr.add(fmt.Sprintf("universe contains duplicate symbol %s", s))
		}
		seen[s] = true
	}
	if b.Benchmark == "" {
		cerr.add("benchmark is required")
	}

	if b.TransactionCost < 0 || b.TransactionCost >= 1 || math.IsNaN(b.TransactionCost) {
		cerr.add(fmt.Sprintf("transaction_cost_fraction must be in [0, 1), got %v", b.TransactionCost))
	}

	if err := b.AgentWeights.Validate(); err != nil {
		cerr.add("agent_weights: " + err.Error())
	}
	for _, f := range b.AgentWeights.Factors() {
		if !domain.IsKnownFactor(f) {
			cerr.add(fmt.Sprintf("agent_weights: unknown factor %q", f))
		}
	}

	if !(b.StopLossThreshold > 0 && b.StopLossThreshold < 1) {
		cerr.add(fmt.Sprintf("stop_loss_threshold must be in (0, 1), got %v", b.StopLossThreshold))
	}
	if b.RiskFreeRate < 0 || b.RiskFreeRate >= 1 || math.IsNaN(b.RiskFreeRate) {
		cerr.add(fmt.Sprintf("risk_free_rate must be in [0, 1), got %v", b.RiskFreeRate))
	}
	if b.LookbackDays < MinLookbackDays {
		cerr.add(fmt.Sprintf("lookback_days must be at least %d, got %d", MinLookbackDays, b.LookbackDays))
	}
	if b.ScoringWorkers < 1 {
		cerr.add(fmt.Sprintf("scoring_workers must be at least 1, got %d", b.ScoringWorkers))
	}
}
