package market

import (
	"math"
	"testing"

	"coinpulse/internal/models"
)

func TestSyntheticHistory(t *testing.T) {
	q := models.Quote{Price: 110, ChangePct24h: 10}
	path := SyntheticHistory(q, 24)

	if len(path) != 24 {
		t.Fatalf("len = %d, want 24", len(path))
	}
	if math.Abs(path[0]-100) > 1e-9 {
		t.Errorf("open = %v, want 100", path[0])
	}
	if path[23] != 110 {
		t.Errorf("close = %v, want 110", path[23])
	}
	for i, p := range path {
		if p < 0 {
			t.Errorf("point %d negative: %v", i, p)
		}
	}

	again := SyntheticHistory(q, 24)
	for i := range path {
		if path[i] != again[i] {
			t.Fatal("history is not deterministic")
		}
	}
}

func TestSyntheticHistory_Degenerate(t *testing.T) {
	if SyntheticHistory(models.Quote{Price: 10}, 1) != nil {
		t.Error("expected nil for fewer than 2 points")
	}
	if SyntheticHistory(models.Quote{}, 10) != nil {
		t.Error("expected nil for zero price")
	}
	path := SyntheticHistory(models.Quote{Price: 5, ChangePct24h: -100}, 3)
	if path[0] != 5 {
		t.Errorf("open for -100%% change = %v, want the current price", path[0])
	}
}
