package regime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
)

// CloseSource returns the closes of a symbol visible on asOf.
type CloseSource interface {
	Closes(symbol string, asOf time.Time) []float64
}

// Options configures a Service.
type Options struct {
	Source     CloseSource
	Benchmark  string
	Classifier Classifier          // defaults to DefaultClassifier()
	Weights    domain.WeightVector // base weights, never mutated
	TopN       int
	Adaptive   bool          // false keeps Weights, TopN and no cash on every date
	TTL        time.Duration // cache lifetime in as-of time; 0 caches one date
	Logger     zerolog.Logger
}

// Service turns as-of dates into regime decisions. It owns its cache; one
// Service belongs to one backtest run.
type Service struct {
	opts Options

	mu      sync.Mutex
	cached  *domain.RegimeDecision
	cacheAt time.Time
	hits    int
	misses  int
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	opts.Weights = opts.Weights.Clone()
	return &Service{opts: opts}
}

// Decide returns the regime decision for asOf, from cache when the cached
// decision was computed on asOf or less than TTL before it.
func (s *Service) Decide(asOf time.Time) domain.RegimeDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.fresh(asOf) {
		s.hits++
		return cloneDecision(*s.cached)
	}
	s.misses++

	d := s.compute(asOf)
	s.cached = &d
	s.cacheAt = asOf
	return cloneDecision(d)
}

func (s *Service) fresh(asOf time.Time) bool {
	if asOf.Before(s.cacheAt) {
		return false
	}
	age := asOf.Sub(s.cacheAt)
	return age == 0 || age < s.opts.TTL
}

// Invalidate drops the cached decision.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.cacheAt = time.Time{}
}

// CacheStats returns cache hits and misses.
func (s *Service) CacheStats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func (s *Service) compute(asOf time.Time) domain.RegimeDecision {
	closes := s.opts.Source.Closes(s.opts.Benchmark, asOf)

	label, err := s.opts.Classifier.Classify(closes, asOf)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Time("as_of", asOf).Msg("regime fallback to SIDEWAYS/NORMAL")
		label = domain.RegimeLabel{
			Date:       asOf,
			Trend:      domain.TrendSideways,
			Volatility: domain.VolatilityNormal,
			Fallback:   true,
		}
		return domain.RegimeDecision{
			Label:   label,
			Weights: s.opts.Weights.Normalized(),
			Posture: s.staticPosture(label),
		}
	}

	if !s.opts.Adaptive {
		return domain.RegimeDecision{
			Label:   label,
			Weights: s.opts.Weights.Normalized(),
			Posture: domain.RiskPosture{TargetPositions: max(s.opts.TopN, 1)},
		}
	}

	return domain.RegimeDecision{
		Label:   label,
		Weights: AdaptWeights(label, s.opts.Weights),
		Posture: Posture(label, s.opts.TopN),
	}
}

// staticPosture is the posture used when classification fails.
func (s *Service) staticPosture(label domain.RegimeLabel) domain.RiskPosture {
	if !s.opts.Adaptive {
		return domain.RiskPosture{TargetPositions: max(s.opts.TopN, 1)}
	}
	return Posture(label, s.opts.TopN)
}

func cloneDecision(d domain.RegimeDecision) domain.RegimeDecision {
	d.Weights = d.Weights.Clone()
	return d
}
