package factor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-factor-lab/internal/domain"
	"equity-factor-lab/internal/lookup"
)

type mapHistory map[string][]domain.PricePoint

func (m mapHistory) Slice(symbol string, asOf time.Time) []domain.PricePoint {
	return lookup.VisibleAt(m[symbol], asOf)
}

func trending(start time.Time, n int, first, step float64) []domain.PricePoint {
	pts := make([]domain.PricePoint, n)
	px := first
	for i := range pts {
		vol := 1000.0
		if i%3 == 0 {
			vol = 1500
		}
		pts[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Open: px, High: px, Low: px, Close: px, Volume: vol}
		px *= 1 + step
	}
	return pts
}

var base = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

type stubAnalyzer struct {
	name string
	res  Analysis
	err  error
}

func (s stubAnalyzer) Name() string { return s.name }
func (s stubAnalyzer) Analyze(context.Context, *Snapshot) (Analysis, error) {
	return s.res, s.err
}

func TestScorer_NeutralFallback(t *testing.T) {
	h := mapHistory{"AAPL": trending(base, 10, 100, 0.01)}
	s := NewScorer(ScorerOptions{
		History: h,
		Analyzers: []Analyzer{
			stubAnalyzer{name: "ok", res: Analysis{Score: 80, Confidence: 0.9}},
			stubAnalyzer{name: "broken", err: errors.New("upstream down")},
			stubAnalyzer{name: "nan", res: Analysis{Score: math.NaN(), Confidence: 0.5}},
			stubAnalyzer{name: "range", res: Analysis{Score: 120, Confidence: 0.5}},
		},
		Logger: zerolog.Nop(),
	})

	readings, ok := s.Score(context.Background(), "AAPL", base.AddDate(0, 0, 9))
	if !ok {
		t.Fatal("expected readings")
	}
	if r := readings["ok"]; r.Score != 80 || r.Degraded {
		t.Errorf("unexpected ok reading %+v", r)
	}
	for _, name := range []string{"broken", "nan", "range"} {
		r := readings[name]
		if !r.Degraded || r.Score != domain.NeutralScore || r.Confidence != domain.NeutralConfidence {
			t.Errorf("%s: expected neutral default, got %+v", name, r)
		}
	}
	if !Degraded(readings) {
		t.Error("expected Degraded to report true")
	}
}

func TestScorer_NoVisibleHistory(t *testing.T) {
	h := mapHistory{"AAPL": trending(base, 10, 100, 0.01)}
	s := NewScorer(ScorerOptions{History: h, Logger: zerolog.Nop()})

	if _, ok := s.Score(context.Background(), "AAPL", base.AddDate(0, 0, -1)); ok {
		t.Error("expected no readings before first bar")
	}
	if _, ok := s.Score(context.Background(), "MSFT", base); ok {
		t.Error("expected no readings for unknown symbol")
	}
}

func TestScorer_NoLookAheadAndIdempotent(t *testing.T) {
	asOf := base.AddDate(0, 0, 299)
	clean := trending(base, 400, 50, 0.002)

	tampered := make([]domain.PricePoint, len(clean))
	copy(tampered, clean)
	for i := 300; i < len(tampered); i++ {
		tampered[i].Close *= 3
		tampered[i].Volume *= 10
	}

	score := func(points []domain.PricePoint) map[string]domain.FactorReading {
		s := NewScorer(ScorerOptions{History: mapHistory{"AAPL": points}, Logger: zerolog.Nop()})
		r, ok := s.Score(context.Background(), "AAPL", asOf)
		if !ok {
			t.Fatal("expected readings")
		}
		return r
	}

	a, b, c := score(clean), score(clean), score(tampered)
	if !reflect.DeepEqual(a, b) {
		t.Error("scoring is not idempotent")
	}
	if !reflect.DeepEqual(a, c) {
		t.Error("future data changed the score")
	}
	w, _ := domain.Preset(domain.PresetBacktest)
	if Composite(a, w) != Composite(c, w) {
		t.Error("future data changed the composite")
	}
}

func TestBuiltin_Momentum(t *testing.T) {
	up := NewSnapshot("UP", base.AddDate(0, 0, 299), trending(base, 300, 50, 0.003))
	down := NewSnapshot("DN", base.AddDate(0, 0, 299), trending(base, 300, 50, -0.003))

	ru, err := Momentum{}.Analyze(context.Background(), up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rd, err := Momentum{}.Analyze(context.Background(), down)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !(ru.Score > 50 && rd.Score < 50) {
		t.Errorf("expected up > 50 > down, got %.1f / %.1f", ru.Score, rd.Score)
	}
}

func TestBuiltin_InsufficientHistory(t *testing.T) {
	snap := NewSnapshot("NEW", base.AddDate(0, 0, 9), trending(base, 10, 50, 0.01))
	for _, a := range []Analyzer{Momentum{}, Quality{}, Sentiment{}, InstitutionalFlow{}} {
		if _, err := a.Analyze(context.Background(), snap); !errors.Is(err, ErrInsufficientHistory) {
			t.Errorf("%s: expected ErrInsufficientHistory, got %v", a.Name(), err)
		}
	}
	if _, err := (Fundamentals{}).Analyze(context.Background(), snap); !errors.Is(err, ErrFundamentalsUnavailable) {
		t.Errorf("expected ErrFundamentalsUnavailable, got %v", err)
	}
}

func TestBuiltin_FundamentalsWithData(t *testing.T) {
	snap := NewSnapshot("F", base, trending(base, 1, 50, 0))
	snap.Fundamentals = map[string]float64{"pe_ratio": 10, "roe": 0.25}

	res, err := Fundamentals{}.Analyze(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 100 {
		t.Errorf("expected score 100, got %v", res.Score)
	}
	if err := res.validate(); err != nil {
		t.Errorf("invalid analysis: %v", err)
	}
}

func TestSnapshot_MissingIndicators(t *testing.T) {
	snap := NewSnapshot("S", base, trending(base, 30, 10, 0.01))
	if snap.Has(IndSMA50) || snap.Has(IndReturn12M) {
		t.Errorf("expected long indicators to be missing: %v", snap.Missing)
	}
	if !snap.Has(IndSMA20) || snap.Indicators.SMA20 <= 0 {
		t.Error("expected sma20 to be computed")
	}
}

func TestComposite(t *testing.T) {
	readings := map[string]domain.FactorReading{
		domain.FactorMomentum: {Score: 80, Confidence: 1.0},
		domain.FactorQuality:  {Score: 40, Confidence: 0.5},
		"unweighted":          {Score: 0, Confidence: 1.0},
	}
	w := domain.WeightVector{domain.FactorMomentum: 0.5, domain.FactorQuality: 0.5}

	// (0.5*80*1 + 0.5*40*0.5) / (0.5*1 + 0.5*0.5) = 50 / 0.75
	if got, want := Composite(readings, w), 50/0.75; math.Abs(got-want) > 1e-9 {
		t.Errorf("Composite() = %v, want %v", got, want)
	}

	zero := map[string]domain.FactorReading{
		domain.FactorMomentum: {Score: 80},
		domain.FactorQuality:  {Score: 40},
	}
	if got := Composite(zero, w); math.Abs(got-60) > 1e-9 {
		t.Errorf("expected plain mean 60 with zero confidence, got %v", got)
	}

	if got := Composite(nil, w); got != domain.NeutralScore {
		t.Errorf("expected neutral score for no readings, got %v", got)
	}
}

func TestRemoteAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze/sentiment" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var snap Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil || snap.Symbol != "AAPL" {
			http.Error(w, "bad snapshot", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Analysis{Score: 72, Confidence: 0.6, Reasoning: "news flow positive"})
	}))
	defer srv.Close()

	a := NewRemoteAnalyzer(domain.FactorSentiment, srv.URL, time.Second)
	res, err := a.Analyze(context.Background(), NewSnapshot("AAPL", base, trending(base, 5, 10, 0)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 72 || res.Confidence != 0.6 {
		t.Errorf("unexpected analysis %+v", res)
	}

	bad := NewRemoteAnalyzer("unknown", srv.URL, time.Second)
	if _, err := bad.Analyze(context.Background(), NewSnapshot("AAPL", base, nil)); err == nil {
		t.Error("expected error for 404")
	}
}
