// Package render turns immediate-mode draw commands into terminal cells.
//
// Views lay themselves out in a virtual pixel space and return a slice of
// Cmd values. A Canvas rasterizes those commands onto a character grid,
// honouring per-command alpha and blend mode. Rasterizing is a pure
// function of its input; the same commands always produce the same grid.
package render

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Point is a position in virtual pixels.
type Point struct {
	X, Y float64
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Blend selects how a command combines with what is already painted.
type Blend int

const (
	// SourceOver paints src on top of dst weighted by alpha.
	SourceOver Blend = iota
	// Additive adds src*alpha to dst, so overlapping strokes brighten.
	Additive
)

// Kind is the primitive a Cmd draws.
type Kind int

const (
	KindLine Kind = iota
	KindCurve
	KindCircle
	KindRect
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindCurve:
		return "curve"
	case KindCircle:
		return "circle"
	case KindRect:
		return "rect"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Cmd is one draw command.
type Cmd struct {
	Kind Kind
	// From and To bound lines, curves and rects. Ctrl is the quadratic
	// control point of a curve.
	From, Ctrl, To Point
	// Center and Radius describe circles; Center anchors text.
	Center Point
	Radius float64
	Fill   bool
	Dashed bool
	Text   string
	Color  colorful.Color
	Alpha  float64
	Blend  Blend
	// ID ties a command back to the node or edge that produced it.
	ID string
}

// Line draws a straight segment.
func Line(from, to Point, c colorful.Color, alpha float64) Cmd {
	return Cmd{Kind: KindLine, From: from, To: to, Color: c, Alpha: alpha}
}

// Curve draws a quadratic bezier from -> ctrl -> to.
func Curve(from, ctrl, to Point, c colorful.Color, alpha float64) Cmd {
	return Cmd{Kind: KindCurve, From: from, Ctrl: ctrl, To: to, Color: c, Alpha: alpha}
}

// Circle draws a circle outline, or a disc when fill is set.
func Circle(center Point, radius float64, fill bool, c colorful.Color, alpha float64) Cmd {
	return Cmd{Kind: KindCircle, Center: center, Radius: radius, Fill: fill, Color: c, Alpha: alpha}
}

// Rect fills the axis aligned box spanned by from and to.
func Rect(from, to Point, c colorful.Color, alpha float64) Cmd {
	return Cmd{Kind: KindRect, From: from, To: to, Fill: true, Color: c, Alpha: alpha}
}

// Text writes a label starting at anchor.
func Text(anchor Point, s string, c colorful.Color, alpha float64) Cmd {
	return Cmd{Kind: KindText, Center: anchor, Text: s, Color: c, Alpha: alpha}
}

// WithBlend returns c using blend mode b.
func (c Cmd) WithBlend(b Blend) Cmd {
	c.Blend = b
	return c
}

// WithID returns c tagged with id.
func (c Cmd) WithID(id string) Cmd {
	c.ID = id
	return c
}

// WithDash returns c drawn with a dashed stroke.
func (c Cmd) WithDash() Cmd {
	c.Dashed = true
	return c
}

// Clamp01 limits v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CircularPosition places index i of n evenly on a circle, starting at
// twelve o'clock and proceeding clockwise in screen coordinates.
func CircularPosition(center Point, radius float64, i, n int) Point {
	if n <= 0 {
		return center
	}
	angle := float64(i)/float64(n)*2*math.Pi - math.Pi/2
	return Point{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
	}
}
