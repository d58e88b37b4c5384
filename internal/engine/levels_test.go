package engine

import (
	"math"
	"testing"
)

func TestComputeLevels_Ratios(t *testing.T) {
	ls, err := ComputeLevels(100)
	if err != nil {
		t.Fatalf("ComputeLevels(100): %v", err)
	}
	want := map[string]float64{
		"B1": 56, "B2": 52, "B3": 46, "B4": 41, "B5": 35, "B6": 28, "B7": 21,
	}
	for name, price := range want {
		got, ok := ls.Price(name)
		if !ok {
			t.Fatalf("missing level %s", name)
		}
		if math.Abs(got-price) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, price)
		}
	}
	if math.Abs(ls.Stop-19) > 1e-9 {
		t.Errorf("Stop = %v, want 19", ls.Stop)
	}
}

func TestComputeLevels_AscendingOrder(t *testing.T) {
	ls, err := ComputeLevels(250)
	if err != nil {
		t.Fatalf("ComputeLevels(250): %v", err)
	}
	if len(ls.Asc) != LevelCount {
		t.Fatalf("got %d levels, want %d", len(ls.Asc), LevelCount)
	}
	if ls.Asc[0].Name != "B7" || ls.Asc[LevelCount-1].Name != "B1" {
		t.Errorf("order = %s..%s, want B7..B1", ls.Asc[0].Name, ls.Asc[LevelCount-1].Name)
	}
	for i := 1; i < len(ls.Asc); i++ {
		if ls.Asc[i].Price <= ls.Asc[i-1].Price {
			t.Errorf("levels not strictly ascending at %d: %v <= %v", i, ls.Asc[i].Price, ls.Asc[i-1].Price)
		}
	}
}

func TestComputeLevels_RejectsNonPositiveH(t *testing.T) {
	for _, h := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := ComputeLevels(h); err == nil {
			t.Errorf("ComputeLevels(%v): expected error", h)
		}
	}
}
