package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// glyph layers; a higher layer replaces the glyph of a lower one
const (
	layerEmpty = iota
	layerStroke
	layerNode
	layerText
)

// Canvas maps a virtual pixel space onto a terminal cell grid.
type Canvas struct {
	Width, Height float64
	Cols, Rows    int
}

// NewCanvas returns a canvas of cols x rows cells covering w x h virtual pixels.
func NewCanvas(w, h float64, cols, rows int) Canvas {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return Canvas{Width: w, Height: h, Cols: cols, Rows: rows}
}

func (c Canvas) cellW() float64 { return c.Width / float64(c.Cols) }
func (c Canvas) cellH() float64 { return c.Height / float64(c.Rows) }

// ToCell returns the cell containing p.
func (c Canvas) ToCell(p Point) (col, row int, ok bool) {
	if c.Width <= 0 || c.Height <= 0 {
		return 0, 0, false
	}
	col = int(math.Floor(p.X / c.cellW()))
	row = int(math.Floor(p.Y / c.cellH()))
	ok = col >= 0 && col < c.Cols && row >= 0 && row < c.Rows
	return col, row, ok
}

// ToPoint returns the virtual pixel at the centre of a cell.
func (c Canvas) ToPoint(col, row int) Point {
	return Point{
		X: (float64(col) + 0.5) * c.cellW(),
		Y: (float64(row) + 0.5) * c.cellH(),
	}
}

// Cell is one rasterized terminal cell.
type Cell struct {
	Glyph rune
	Color colorful.Color
	layer int
}

// Frame is the result of rasterizing a list of commands.
type Frame struct {
	Cols, Rows int
	Cells      []Cell
}

// At returns the cell at (col, row).
func (f *Frame) At(col, row int) Cell {
	return f.Cells[row*f.Cols+col]
}

// Plain renders glyphs only, with trailing blanks trimmed.
func (f *Frame) Plain() string {
	var b strings.Builder
	for r := 0; r < f.Rows; r++ {
		line := make([]rune, f.Cols)
		for c := 0; c < f.Cols; c++ {
			line[c] = f.At(c, r).Glyph
		}
		b.WriteString(strings.TrimRight(string(line), " "))
		if r < f.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// String renders the frame with true-color foregrounds. Runs of cells with
// the same color share one style.
func (f *Frame) String() string {
	var b strings.Builder
	for r := 0; r < f.Rows; r++ {
		var run []rune
		runHex := ""
		flush := func() {
			if len(run) == 0 {
				return
			}
			if runHex == "" {
				b.WriteString(string(run))
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runHex)).Render(string(run)))
			}
			run = run[:0]
		}
		for c := 0; c < f.Cols; c++ {
			cell := f.At(c, r)
			hex := ""
			if cell.Glyph != ' ' {
				hex = cell.Color.Clamped().Hex()
			}
			if hex != runHex {
				flush()
				runHex = hex
			}
			run = append(run, cell.Glyph)
		}
		flush()
		if r < f.Rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type raster struct {
	canvas Canvas
	frame  *Frame
	stamp  []int
	seq    int
}

// Rasterize paints cmds in order onto a fresh frame.
func (c Canvas) Rasterize(cmds []Cmd) *Frame {
	f := &Frame{Cols: c.Cols, Rows: c.Rows, Cells: make([]Cell, c.Cols*c.Rows)}
	for i := range f.Cells {
		f.Cells[i].Glyph = ' '
	}
	r := &raster{canvas: c, frame: f, stamp: make([]int, len(f.Cells))}
	for _, cmd := range cmds {
		r.seq++
		switch cmd.Kind {
		case KindLine:
			r.stroke(cmd, func(t float64) Point { return lerp(cmd.From, cmd.To, t) }, cmd.From.Dist(cmd.To))
		case KindCurve:
			r.stroke(cmd, func(t float64) Point { return quad(cmd.From, cmd.Ctrl, cmd.To, t) },
				cmd.From.Dist(cmd.Ctrl)+cmd.Ctrl.Dist(cmd.To))
		case KindCircle:
			if cmd.Fill {
				r.disc(cmd)
			} else {
				r.stroke(cmd, func(t float64) Point {
					a := t * 2 * math.Pi
					return Point{X: cmd.Center.X + cmd.Radius*math.Cos(a), Y: cmd.Center.Y + cmd.Radius*math.Sin(a)}
				}, 2*math.Pi*cmd.Radius)
			}
		case KindRect:
			r.rect(cmd)
		case KindText:
			r.text(cmd)
		}
	}
	return f
}

func lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func quad(a, ctrl, b Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*a.X + 2*u*t*ctrl.X + t*t*b.X,
		Y: u*u*a.Y + 2*u*t*ctrl.Y + t*t*b.Y,
	}
}

// plot paints one cell at most once per command.
func (r *raster) plot(col, row int, glyph rune, layer int, cmd Cmd) {
	if col < 0 || col >= r.canvas.Cols || row < 0 || row >= r.canvas.Rows {
		return
	}
	idx := row*r.canvas.Cols + col
	if r.stamp[idx] == r.seq {
		return
	}
	r.stamp[idx] = r.seq
	cell := &r.frame.Cells[idx]
	alpha := Clamp01(cmd.Alpha)
	switch cmd.Blend {
	case Additive:
		cell.Color = colorful.Color{
			R: cell.Color.R + cmd.Color.R*alpha,
			G: cell.Color.G + cmd.Color.G*alpha,
			B: cell.Color.B + cmd.Color.B*alpha,
		}.Clamped()
	default:
		cell.Color = cell.Color.BlendRgb(cmd.Color, alpha)
	}
	if layer >= cell.layer {
		cell.Glyph = glyph
		cell.layer = layer
	}
}

func (r *raster) stroke(cmd Cmd, at func(t float64) Point, length float64) {
	step := math.Min(r.canvas.cellW(), r.canvas.cellH()) / 2
	if step <= 0 {
		return
	}
	n := int(math.Ceil(length/step)) + 1
	for k := 0; k <= n; k++ {
		if cmd.Dashed && (k/2)%2 == 1 {
			continue
		}
		t := float64(k) / float64(n)
		p := at(t)
		col, row, ok := r.canvas.ToCell(p)
		if !ok {
			continue
		}
		glyph := '·'
		if cmd.Kind != KindCircle && !cmd.Dashed {
			glyph = r.slopeGlyph(at(math.Max(0, t-0.01)), at(math.Min(1, t+0.01)))
		}
		r.plot(col, row, glyph, layerStroke, cmd)
	}
}

func (r *raster) slopeGlyph(a, b Point) rune {
	dx := (b.X - a.X) / r.canvas.cellW()
	dy := (b.Y - a.Y) / r.canvas.cellH()
	if dx == 0 && dy == 0 {
		return '·'
	}
	deg := math.Abs(math.Atan2(dy, dx) * 180 / math.Pi)
	switch {
	case deg < 22.5 || deg > 157.5:
		return '─'
	case deg > 67.5 && deg < 112.5:
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

func (r *raster) disc(cmd Cmd) {
	cc, cr, _ := r.canvas.ToCell(cmd.Center)
	r.plot(cc, cr, '●', layerNode, cmd)
	minC, minR, _ := r.canvas.ToCell(Point{X: cmd.Center.X - cmd.Radius, Y: cmd.Center.Y - cmd.Radius})
	maxC, maxR, _ := r.canvas.ToCell(Point{X: cmd.Center.X + cmd.Radius, Y: cmd.Center.Y + cmd.Radius})
	for row := minR; row <= maxR; row++ {
		for col := minC; col <= maxC; col++ {
			if r.canvas.ToPoint(col, row).Dist(cmd.Center) <= cmd.Radius {
				r.plot(col, row, '●', layerNode, cmd)
			}
		}
	}
}

func (r *raster) rect(cmd Cmd) {
	minC, minR, _ := r.canvas.ToCell(Point{X: math.Min(cmd.From.X, cmd.To.X), Y: math.Min(cmd.From.Y, cmd.To.Y)})
	maxC, maxR, _ := r.canvas.ToCell(Point{X: math.Max(cmd.From.X, cmd.To.X), Y: math.Max(cmd.From.Y, cmd.To.Y)})
	for row := minR; row < maxR || row == minR; row++ {
		for col := minC; col < maxC || col == minC; col++ {
			r.plot(col, row, '█', layerNode, cmd)
		}
	}
}

func (r *raster) text(cmd Cmd) {
	col, row, _ := r.canvas.ToCell(cmd.Center)
	for i, ch := range []rune(cmd.Text) {
		r.plot(col+i, row, ch, layerText, cmd)
	}
}
