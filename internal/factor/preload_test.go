package factor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
)

type countingAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingAnalyzer) Name() string { return domain.FactorSentiment }

func (c *countingAnalyzer) Analyze(_ context.Context, snap *Snapshot) (Analysis, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if snap.Symbol == "FAIL" {
		return Analysis{}, errors.New("service error")
	}
	return Analysis{Score: float64(snap.Bars), Confidence: 1}, nil
}

func TestPreload_ServesStoredAnswers(t *testing.T) {
	history := mapHistory{
		"AAPL": trending(base, 30, 100, 0.01),
		"FAIL": trending(base, 30, 100, 0.01),
		"LATE": trending(base.AddDate(0, 0, 20), 10, 100, 0.01),
	}
	d1, d2 := base.AddDate(0, 0, 9), base.AddDate(0, 0, 19)
	inner := &countingAnalyzer{}

	p, err := Preload(context.Background(), inner, PreloadOptions{
		History: history,
		Symbols: []string{"AAPL", "FAIL", "LATE"},
		Dates:   []time.Time{d1, d2},
		Workers: 3,
	})
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	// LATE has no history on either date and is never asked for.
	if inner.calls != 4 || p.Len() != 4 {
		t.Fatalf("expected 4 calls and answers, got %d / %d", inner.calls, p.Len())
	}

	res, err := p.Analyze(context.Background(), NewSnapshot("AAPL", d2.Add(15*time.Hour), nil))
	if err != nil || res.Score != 20 {
		t.Errorf("expected stored score 20, got %+v (%v)", res, err)
	}
	if _, err := p.Analyze(context.Background(), NewSnapshot("FAIL", d1, nil)); err == nil {
		t.Error("stored failure should be replayed")
	}
	if _, err := p.Analyze(context.Background(), NewSnapshot("AAPL", base, nil)); err == nil {
		t.Error("expected error outside the preloaded dates")
	}
	if inner.calls != 4 {
		t.Errorf("lookups must not reach the wrapped analyzer, got %d calls", inner.calls)
	}

	// Scoring through the preloaded copy degrades the failure to neutral.
	scorer := NewScorer(ScorerOptions{History: history, Analyzers: []Analyzer{p}, Logger: zerolog.Nop()})
	readings, ok := scorer.Score(context.Background(), "FAIL", d1)
	if !ok || !readings[domain.FactorSentiment].Degraded {
		t.Errorf("expected degraded reading, got %+v", readings)
	}
}

func TestPreload_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Preload(ctx, &countingAnalyzer{}, PreloadOptions{
		History: mapHistory{"AAPL": trending(base, 5, 100, 0)},
		Symbols: []string{"AAPL"},
		Dates:   []time.Time{base.AddDate(0, 0, 4)},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRemoteAnalyzer_IsNetworked(t *testing.T) {
	var a Analyzer = NewRemoteAnalyzer(domain.FactorSentiment, "http://localhost:9", time.Second)
	if n, ok := a.(Networked); !ok || !n.Networked() {
		t.Error("remote analyzer should report itself as networked")
	}
	if _, ok := Analyzer(Momentum{}).(Networked); ok {
		t.Error("builtin analyzers run in process")
	}
}
