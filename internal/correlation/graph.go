// Package correlation lays out and paints the pairwise packet-loss
// correlation network of cells.
package correlation

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"fronthaul-noc/internal/fronthaul"
	"fronthaul-noc/internal/render"
)

const (
	// DefaultThreshold is the initial edge threshold.
	DefaultThreshold = 0.7
	// DefaultHitRadius is the pointer tolerance in virtual pixels.
	DefaultHitRadius = 20.0

	layoutRadiusFactor = 0.35
	nodeRadius         = 6.0
	labelOffset        = 8.0
	dimmedAlpha        = 0.2
	unrelatedFactor    = 0.1
	relatedBoost       = 0.3
)

// Tier buckets an edge by its correlation value.
type Tier int

const (
	TierLow Tier = iota
	TierMid
	TierHigh
)

// TierOf returns the tier of a correlation value.
func TierOf(v float64) Tier {
	switch {
	case v >= 0.9:
		return TierHigh
	case v >= 0.7:
		return TierMid
	default:
		return TierLow
	}
}

// Color is the fixed hue of a tier.
func (t Tier) Color() colorful.Color {
	switch t {
	case TierHigh:
		return render.Red
	case TierMid:
		return render.Amber
	default:
		return render.Blue
	}
}

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMid:
		return "mid"
	default:
		return "low"
	}
}

// Node is a placed cell.
type Node struct {
	ID    string
	Index int
	Pos   render.Point
	Alpha float64
}

// Edge is a correlation above threshold between cells I < J.
type Edge struct {
	I, J    int
	Source  string
	Target  string
	Value   float64
	Opacity float64
	Tier    Tier
}

// Touches reports whether the edge has id as an endpoint.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Stats summarises the included edge set.
type Stats struct {
	LinkCount      int     `json:"link_count"`
	AvgCorrelation float64 `json:"avg_correlation"`
	MaxCorrelation float64 `json:"max_correlation"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Layout places n nodes on a circle of radius 0.35*min(w,h) around the
// centre of a w x h area.
func Layout(ids []string, width, height float64) []Node {
	center := render.Point{X: width / 2, Y: height / 2}
	radius := math.Min(width, height) * layoutRadiusFactor
	nodes := make([]Node, len(ids))
	for i, id := range ids {
		nodes[i] = Node{ID: id, Index: i, Pos: render.CircularPosition(center, radius, i, len(ids)), Alpha: 1}
	}
	return nodes
}

// Opacity maps a value at or above threshold to [0.2, 1].
func Opacity(value, threshold float64) float64 {
	span := 1 - threshold
	ratio := 1.0
	if span > 0 {
		ratio = (value - threshold) / span
	}
	return render.Clamp01(ratio*0.8 + 0.2)
}

// Edges returns every pair i<j whose value is finite and >= threshold.
func Edges(m *fronthaul.CorrelationMatrix, threshold float64) []Edge {
	n := m.Size()
	var edges []Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := m.At(i, j)
			if !finite(v) || v < threshold {
				continue
			}
			edges = append(edges, Edge{
				I: i, J: j,
				Source:  m.Cells[i],
				Target:  m.Cells[j],
				Value:   v,
				Opacity: Opacity(v, threshold),
				Tier:    TierOf(v),
			})
		}
	}
	return edges
}

// ComputeStats summarises edges. AvgCorrelation is 0 for an empty set.
func ComputeStats(edges []Edge) Stats {
	s := Stats{LinkCount: len(edges)}
	if len(edges) == 0 {
		return s
	}
	sum := 0.0
	s.MaxCorrelation = math.Inf(-1)
	for _, e := range edges {
		sum += e.Value
		s.MaxCorrelation = math.Max(s.MaxCorrelation, e.Value)
	}
	s.AvgCorrelation = sum / float64(len(edges))
	return s
}

// Graph holds the renderer state: data, threshold and selection.
type Graph struct {
	matrix    *fronthaul.CorrelationMatrix
	threshold float64
	width     float64
	height    float64
	hitRadius float64
	selected  string
}

// Option configures a Graph.
type Option func(*Graph)

// WithThreshold sets the initial threshold.
func WithThreshold(t float64) Option {
	return func(g *Graph) { g.SetThreshold(t) }
}

// WithHitRadius overrides the pointer tolerance.
func WithHitRadius(r float64) Option {
	return func(g *Graph) {
		if r > 0 {
			g.hitRadius = r
		}
	}
}

// NewGraph returns an unselected graph over a width x height area.
func NewGraph(width, height float64, opts ...Option) *Graph {
	g := &Graph{threshold: DefaultThreshold, width: width, height: height, hitRadius: DefaultHitRadius}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetData replaces the matrix. A selection that no longer names a cell is
// cleared.
func (g *Graph) SetData(m *fronthaul.CorrelationMatrix) {
	g.matrix = m
	if g.selected != "" && m.Index(g.selected) < 0 {
		g.selected = ""
	}
}

// SetThreshold clamps t to [0, 1].
func (g *Graph) SetThreshold(t float64) {
	g.threshold = render.Clamp01(t)
}

// Threshold returns the current threshold.
func (g *Graph) Threshold() float64 { return g.threshold }

// Resize changes the layout area.
func (g *Graph) Resize(width, height float64) {
	g.width, g.height = width, height
}

// Size returns the layout area.
func (g *Graph) Size() (float64, float64) { return g.width, g.height }

// Selected returns the selected cell id.
func (g *Graph) Selected() (string, bool) {
	return g.selected, g.selected != ""
}

// Empty reports whether there is nothing to draw.
func (g *Graph) Empty() bool { return g.matrix.Size() == 0 }

// Nodes returns the laid out cells without selection dimming.
func (g *Graph) Nodes() []Node {
	if g.matrix == nil {
		return nil
	}
	return Layout(g.matrix.Cells, g.width, g.height)
}

// Stats summarises the edges at the current threshold.
func (g *Graph) Stats() Stats {
	return ComputeStats(Edges(g.matrix, g.threshold))
}

// HitTest returns the nearest node within the hit radius of p.
func (g *Graph) HitTest(p render.Point) (string, bool) {
	best, bestDist := "", math.Inf(1)
	for _, n := range g.Nodes() {
		if d := n.Pos.Dist(p); d <= g.hitRadius && d < bestDist {
			best, bestDist = n.ID, d
		}
	}
	return best, best != ""
}

// Click applies a pointer hit at p to the selection: background clears,
// the selected node toggles off, any other node becomes selected.
func (g *Graph) Click(p render.Point) {
	id, ok := g.HitTest(p)
	switch {
	case !ok:
		g.selected = ""
	case id == g.selected:
		g.selected = ""
	default:
		g.selected = id
	}
}

// Select selects id directly. Unknown ids clear the selection.
func (g *Graph) Select(id string) {
	if g.matrix.Index(id) < 0 {
		g.selected = ""
		return
	}
	g.selected = id
}

// ClearSelection returns to the unselected state.
func (g *Graph) ClearSelection() { g.selected = "" }

// View is the fully resolved frame state: nodes with alpha and edges with
// selection-adjusted opacity.
type View struct {
	Nodes    []Node
	Edges    []Edge
	Selected string
	Stats    Stats
}

// View resolves the current frame.
func (g *Graph) View() View {
	nodes := g.Nodes()
	edges := Edges(g.matrix, g.threshold)
	v := View{Nodes: nodes, Edges: edges, Selected: g.selected, Stats: ComputeStats(edges)}
	if g.selected == "" {
		return v
	}
	sel := g.matrix.Index(g.selected)
	for i := range v.Edges {
		e := &v.Edges[i]
		if e.Touches(g.selected) {
			e.Opacity = math.Min(1, e.Opacity+relatedBoost)
		} else {
			e.Opacity *= unrelatedFactor
		}
	}
	for i := range v.Nodes {
		n := &v.Nodes[i]
		if n.Index == sel {
			continue
		}
		if !g.related(sel, n.Index) {
			n.Alpha = dimmedAlpha
		}
	}
	return v
}

// related reports whether cells a and b correlate at or above threshold in
// either direction. Missing values do not relate.
func (g *Graph) related(a, b int) bool {
	best := math.Inf(-1)
	for _, v := range []float64{g.matrix.At(a, b), g.matrix.At(b, a)} {
		if finite(v) && v > best {
			best = v
		}
	}
	return best >= g.threshold
}

var (
	nodeColor     = render.MustHex("#8b5cf6")
	selectedColor = render.Blue
)

// Paint returns the draw commands for the current frame. Edges are
// additive curves through the centre, nodes and labels are painted on top.
func (g *Graph) Paint() []render.Cmd {
	if g.Empty() {
		return Placeholder(g.width, g.height)
	}
	v := g.View()
	center := render.Point{X: g.width / 2, Y: g.height / 2}
	cmds := make([]render.Cmd, 0, len(v.Edges)+2*len(v.Nodes))
	for _, e := range v.Edges {
		from, to := v.Nodes[e.I].Pos, v.Nodes[e.J].Pos
		cmds = append(cmds, render.Curve(from, center, to, e.Tier.Color(), e.Opacity).
			WithBlend(render.Additive).
			WithID(e.Source+"~"+e.Target))
	}
	for _, n := range v.Nodes {
		fill, alpha := nodeColor, n.Alpha
		if n.ID == v.Selected {
			fill, alpha = selectedColor, 1
		}
		cmds = append(cmds, render.Circle(n.Pos, nodeRadius, true, fill, alpha).WithID(n.ID))
		cmds = append(cmds, render.Text(labelAnchor(n, center), n.ID, render.White, alpha).WithID(n.ID))
	}
	return cmds
}

// labelAnchor pushes a label outward from the node along its radial.
func labelAnchor(n Node, center render.Point) render.Point {
	dx, dy := n.Pos.X-center.X, n.Pos.Y-center.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return render.Point{X: n.Pos.X + labelOffset, Y: n.Pos.Y}
	}
	return render.Point{X: n.Pos.X + dx/d*labelOffset, Y: n.Pos.Y + dy/d*labelOffset}
}

// Placeholder is painted when there is no matrix.
func Placeholder(width, height float64) []render.Cmd {
	return []render.Cmd{render.Text(render.Point{X: width * 0.35, Y: height / 2}, "no correlation data", render.Gray, 1)}
}

// Summary is a one-line rendering of the stats.
func (s Stats) Summary() string {
	return fmt.Sprintf("links=%d avg=%.2f max=%.2f", s.LinkCount, s.AvgCorrelation, s.MaxCorrelation)
}
