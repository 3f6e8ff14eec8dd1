package correlation

import (
	"math"
	"testing"

	"fronthaul-noc/internal/fronthaul"
)

func TestHeatColorRamp(t *testing.T) {
	lo, _ := HeatColor(0, 0, 1, -1)
	if lo != rampLow {
		t.Fatalf("low end = %v", lo)
	}
	mid, _ := HeatColor(0.5, 0, 1, -1)
	if mid.Hex() != "#ffffff" {
		t.Fatalf("mid = %s", mid.Hex())
	}
	hi, _ := HeatColor(1, 0, 1, -1)
	if hi.Hex() != "#ff0000" {
		t.Fatalf("high = %s", hi.Hex())
	}
	if _, masked := HeatColor(0.3, 0, 1, 0.5); !masked {
		t.Fatalf("below threshold should be masked")
	}
	if _, masked := HeatColor(math.NaN(), 0, 1, -1); !masked {
		t.Fatalf("NaN should be masked")
	}
}

func TestNewHeatmapRange(t *testing.T) {
	h := NewHeatmap(fourByFour(), -1)
	if h.Min != 0.1 || h.Max != 0.95 {
		t.Fatalf("range = [%v, %v]", h.Min, h.Max)
	}
	if len(h.Grid) != 4 || len(h.Grid[0]) != 4 {
		t.Fatalf("grid size wrong")
	}
	if got := len(h.Paint(400, 400)); got != 16 {
		t.Fatalf("expected 16 rects, got %d", got)
	}
}

func TestNewHeatmapEmpty(t *testing.T) {
	h := NewHeatmap(&fronthaul.CorrelationMatrix{}, 0)
	if !h.Empty() {
		t.Fatalf("expected empty heatmap")
	}
	if cmds := h.Paint(100, 100); len(cmds) != 1 {
		t.Fatalf("expected placeholder")
	}
}
