package correlation

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"fronthaul-noc/internal/fronthaul"
	"fronthaul-noc/internal/render"
)

var (
	maskedColor = render.MustHex("#1e293b")
	rampLow     = render.MustHex("#3b82f6")
	rampMid     = render.White
	rampHigh    = render.MustHex("#ff0000")
)

// HeatCell is one matrix entry of the heatmap.
type HeatCell struct {
	Value  float64
	Color  colorful.Color
	Masked bool
}

// Heatmap colors the full matrix on a blue, white, red ramp scaled to the
// off-diagonal value range.
type Heatmap struct {
	Cells    []string
	Grid     [][]HeatCell
	Min, Max float64
}

// NewHeatmap scales colors over finite values other than 1.0. Values below
// threshold or missing are masked.
func NewHeatmap(m *fronthaul.CorrelationMatrix, threshold float64) Heatmap {
	h := Heatmap{Min: math.Inf(1), Max: math.Inf(-1)}
	n := m.Size()
	if n == 0 {
		return Heatmap{}
	}
	h.Cells = append([]string(nil), m.Cells...)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			if !finite(v) || v == 1.0 {
				continue
			}
			h.Min = math.Min(h.Min, v)
			h.Max = math.Max(h.Max, v)
		}
	}
	if math.IsInf(h.Min, 1) {
		h.Min, h.Max = 0, 1
	}
	h.Grid = make([][]HeatCell, n)
	for i := 0; i < n; i++ {
		h.Grid[i] = make([]HeatCell, n)
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			c, masked := HeatColor(v, h.Min, h.Max, threshold)
			h.Grid[i][j] = HeatCell{Value: v, Color: c, Masked: masked}
		}
	}
	return h
}

// HeatColor maps v into the ramp. The lower half blends blue to white, the
// upper half white to red. A flat range maps to the top of the ramp.
func HeatColor(v, lo, hi, threshold float64) (colorful.Color, bool) {
	if !finite(v) || v < threshold {
		return maskedColor, true
	}
	norm := 1.0
	if hi > lo {
		norm = render.Clamp01((v - lo) / (hi - lo))
	}
	if norm < 0.5 {
		return rampLow.BlendRgb(rampMid, norm*2), false
	}
	return rampMid.BlendRgb(rampHigh, (norm-0.5)*2), false
}

// Empty reports whether the heatmap has no cells.
func (h Heatmap) Empty() bool { return len(h.Cells) == 0 }

// Paint fills one rect per entry over a width x height area.
func (h Heatmap) Paint(width, height float64) []render.Cmd {
	if h.Empty() {
		return Placeholder(width, height)
	}
	n := float64(len(h.Cells))
	cw, ch := width/n, height/n
	cmds := make([]render.Cmd, 0, len(h.Cells)*len(h.Cells))
	for i, row := range h.Grid {
		for j, cell := range row {
			from := render.Point{X: float64(j) * cw, Y: float64(i) * ch}
			to := render.Point{X: float64(j+1) * cw, Y: float64(i+1) * ch}
			cmds = append(cmds, render.Rect(from, to, cell.Color, 1).WithID(h.Cells[i]+"~"+h.Cells[j]))
		}
	}
	return cmds
}
