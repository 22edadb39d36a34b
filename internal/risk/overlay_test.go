package risk

import (
	"testing"

	"equity-factor-lab/internal/domain"
)

func TestStopTriggered(t *testing.T) {
	pos := &domain.Position{Symbol: "AAPL", EntryPrice: 100}
	o := NewOverlay(true, 0.20)

	tests := []struct {
		price float64
		want  bool
	}{
		{100, false},
		{80.01, false},
		{80, true},
		{75, true},
		{0, false},
	}
	for _, tt := range tests {
		if got := o.StopTriggered(pos, tt.price); got != tt.want {
			t.Errorf("price %v: got %v, want %v", tt.price, got, tt.want)
		}
	}

	if NewOverlay(false, 0.20).StopTriggered(pos, 50) {
		t.Error("disabled overlay must never trigger")
	}
	if NewOverlay(true, 0).Threshold != DefaultStopLoss {
		t.Error("expected default threshold")
	}
}

func TestCheckStops_SortedAndSkipsUnmarked(t *testing.T) {
	positions := map[string]*domain.Position{
		"MSFT": {Symbol: "MSFT", EntryPrice: 100},
		"AAPL": {Symbol: "AAPL", EntryPrice: 100},
		"NVDA": {Symbol: "NVDA", EntryPrice: 100},
		"IBM":  {Symbol: "IBM", EntryPrice: 100},
	}
	marks := map[string]float64{"MSFT": 70, "AAPL": 75, "NVDA": 95}

	got := NewOverlay(true, 0.2).CheckStops(positions, marks)
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "MSFT" {
		t.Fatalf("unexpected breaches %+v", got)
	}
	if got[1].Return != -0.3 {
		t.Errorf("expected -0.3 return, got %v", got[1].Return)
	}
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		name string
		e    RebalanceExit
		want domain.ExitReason
	}{
		{"not ranked", RebalanceExit{Ranked: false, PrevTarget: 20, NewTarget: 12}, domain.ExitReasonRebalance},
		{"contraction within old cut", RebalanceExit{Ranked: true, Rank: 14, PrevTarget: 20, NewTarget: 12}, domain.ExitReasonRegimeReduction},
		{"contraction but fell past old cut", RebalanceExit{Ranked: true, Rank: 25, PrevTarget: 20, NewTarget: 12}, domain.ExitReasonScoreDropped},
		{"same target", RebalanceExit{Ranked: true, Rank: 21, PrevTarget: 20, NewTarget: 20}, domain.ExitReasonScoreDropped},
		{"expansion", RebalanceExit{Ranked: true, Rank: 19, PrevTarget: 15, NewTarget: 18}, domain.ExitReasonScoreDropped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyExit(tt.e); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(domain.ExitReasonScoreDropped, domain.ExitReasonStopLoss, domain.ExitReasonRegimeReduction); got != domain.ExitReasonStopLoss {
		t.Errorf("expected STOP_LOSS, got %s", got)
	}
	if got := Resolve(domain.ExitReasonRebalance, domain.ExitReasonScoreDropped); got != domain.ExitReasonScoreDropped {
		t.Errorf("expected SCORE_DROPPED, got %s", got)
	}
	if got := Resolve(); got != domain.ExitReasonRebalance {
		t.Errorf("expected REBALANCE default, got %s", got)
	}
}
