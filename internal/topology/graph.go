// Package topology lays out the hub-and-spoke map of fronthaul links and
// the cells they carry.
package topology

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"fronthaul-noc/internal/fronthaul"
	"fronthaul-noc/internal/render"
)

const (
	// DefaultHubRadius is the distance of hubs from the origin.
	DefaultHubRadius = 180.0
	// DefaultCellRadius is the distance of cells from their hub.
	DefaultCellRadius = 50.0

	hubSize        = 15.0
	cellSize       = 10.0
	haloRadius     = 80.0
	haloAlpha      = 0.2
	dimmedAlpha    = 0.2
	dimmedSpoke    = 0.125
	hubLabelOffset = 35.0
)

// Kind distinguishes hub nodes from cell nodes.
type Kind int

const (
	KindHub Kind = iota
	KindCell
)

func (k Kind) String() string {
	if k == KindHub {
		return "link"
	}
	return "cell"
}

// Node is a placed hub or cell in world coordinates centred on the origin.
type Node struct {
	ID     string
	Label  string
	LinkID string
	Kind   Kind
	Pos    render.Point
	Size   float64
	Color  colorful.Color
	Alpha  float64
	// Cells lists the member cell node ids of a hub.
	Cells []string
}

// Spoke joins a hub to one of its cells.
type Spoke struct {
	Hub   string
	Cell  string
	Color colorful.Color
	Alpha float64
}

// Layout is the full placed graph.
type Layout struct {
	Nodes  []Node
	Spokes []Spoke
}

var idEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

// HubNodeID is the node id of a link's hub. It never contains '/'.
func HubNodeID(linkID string) string {
	return idEscaper.Replace(linkID)
}

// CellNodeID combines a link and cell id into a node id that is unique
// across hubs. Both parts are escaped so the single '/' separator cannot
// be forged by ids that contain one.
func CellNodeID(linkID, cellID string) string {
	return HubNodeID(linkID) + "/" + idEscaper.Replace(cellID)
}

// BuildLayout places one hub per link on a circle of hubRadius, in
// topology order, and each hub's cells on a circle of cellRadius around it.
func BuildLayout(topo *fronthaul.Topology, hubRadius, cellRadius float64) Layout {
	var l Layout
	if topo == nil {
		return l
	}
	origin := render.Point{}
	for i, link := range topo.Links {
		color := render.PaletteColor(link.ID)
		hubPos := render.CircularPosition(origin, hubRadius, i, len(topo.Links))
		hubID := HubNodeID(link.ID)
		hub := Node{
			ID:     hubID,
			Label:  strings.ReplaceAll(link.ID, "_", " "),
			LinkID: link.ID,
			Kind:   KindHub,
			Pos:    hubPos,
			Size:   hubSize,
			Color:  color,
			Alpha:  1,
		}
		var cells []Node
		for j, cell := range link.Cells {
			id := CellNodeID(link.ID, cell)
			hub.Cells = append(hub.Cells, id)
			cells = append(cells, Node{
				ID:     id,
				Label:  cell,
				LinkID: link.ID,
				Kind:   KindCell,
				Pos:    render.CircularPosition(hubPos, cellRadius, j, len(link.Cells)),
				Size:   cellSize,
				Color:  color,
				Alpha:  1,
			})
			l.Spokes = append(l.Spokes, Spoke{Hub: hubID, Cell: id, Color: color, Alpha: 1})
		}
		l.Nodes = append(l.Nodes, hub)
		l.Nodes = append(l.Nodes, cells...)
	}
	return l
}

// Graph owns the topology view state.
type Graph struct {
	topo       *fronthaul.Topology
	layout     Layout
	hubRadius  float64
	cellRadius float64
	width      float64
	height     float64
	selected   string
	highlight  map[string]bool
}

// NewGraph returns a graph painting into a width x height area.
func NewGraph(width, height, hubRadius, cellRadius float64) *Graph {
	if hubRadius <= 0 {
		hubRadius = DefaultHubRadius
	}
	if cellRadius <= 0 {
		cellRadius = DefaultCellRadius
	}
	return &Graph{width: width, height: height, hubRadius: hubRadius, cellRadius: cellRadius}
}

// SetData rebuilds the layout. A selection whose node vanished is cleared.
func (g *Graph) SetData(topo *fronthaul.Topology) {
	g.topo = topo
	g.layout = BuildLayout(topo, g.hubRadius, g.cellRadius)
	if g.selected != "" {
		if _, ok := g.node(g.selected); !ok {
			g.ClearSelection()
		} else {
			g.SelectNode(g.selected)
		}
	}
}

// Resize changes the paint area.
func (g *Graph) Resize(width, height float64) {
	g.width, g.height = width, height
}

// Layout returns the placed graph without highlight applied.
func (g *Graph) Layout() Layout { return g.layout }

// Empty reports whether there are no links.
func (g *Graph) Empty() bool { return len(g.layout.Nodes) == 0 }

func (g *Graph) node(id string) (Node, bool) {
	for _, n := range g.layout.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// scale fits hubs plus their halos into the paint area.
func (g *Graph) scale() float64 {
	extent := 2 * (g.hubRadius + math.Max(haloRadius, g.cellRadius+cellSize))
	s := math.Min(g.width, g.height) / extent
	if s <= 0 || math.IsNaN(s) {
		return 1
	}
	return s
}

// ToScreen maps a world position into the paint area.
func (g *Graph) ToScreen(p render.Point) render.Point {
	s := g.scale()
	return render.Point{X: g.width/2 + p.X*s, Y: g.height/2 + p.Y*s}
}

// ToWorld inverts ToScreen.
func (g *Graph) ToWorld(p render.Point) render.Point {
	s := g.scale()
	return render.Point{X: (p.X - g.width/2) / s, Y: (p.Y - g.height/2) / s}
}

// HitTest returns the nearest node whose size covers the screen point p.
func (g *Graph) HitTest(p render.Point) (Node, bool) {
	w := g.ToWorld(p)
	var best Node
	found := false
	bestDist := math.Inf(1)
	for _, n := range g.layout.Nodes {
		if d := n.Pos.Dist(w); d <= n.Size && d < bestDist {
			best, bestDist, found = n, d, true
		}
	}
	return best, found
}

// Click selects the node under p, or clears highlighting on background.
func (g *Graph) Click(p render.Point) {
	n, ok := g.HitTest(p)
	if !ok {
		g.ClearSelection()
		return
	}
	g.SelectNode(n.ID)
}

// SelectNode highlights a hub with its cells, or a cell with its hub.
func (g *Graph) SelectNode(id string) {
	n, ok := g.node(id)
	if !ok {
		g.ClearSelection()
		return
	}
	g.selected = id
	g.highlight = map[string]bool{id: true}
	switch n.Kind {
	case KindHub:
		for _, c := range n.Cells {
			g.highlight[c] = true
		}
	case KindCell:
		g.highlight[HubNodeID(n.LinkID)] = true
	}
}

// ClearSelection removes all highlighting.
func (g *Graph) ClearSelection() {
	g.selected = ""
	g.highlight = nil
}

// Selected returns the selected node.
func (g *Graph) Selected() (Node, bool) {
	if g.selected == "" {
		return Node{}, false
	}
	return g.node(g.selected)
}

// Highlighted returns highlighted node ids in layout order.
func (g *Graph) Highlighted() []string {
	var out []string
	for _, n := range g.layout.Nodes {
		if g.highlight[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// View applies highlight opacity to a copy of the layout.
func (g *Graph) View() Layout {
	v := Layout{
		Nodes:  append([]Node(nil), g.layout.Nodes...),
		Spokes: append([]Spoke(nil), g.layout.Spokes...),
	}
	if len(g.highlight) == 0 {
		return v
	}
	sel, _ := g.node(g.selected)
	for i := range v.Nodes {
		if !g.highlight[v.Nodes[i].ID] {
			v.Nodes[i].Alpha = dimmedAlpha
		}
	}
	for i := range v.Spokes {
		s := &v.Spokes[i]
		lit := false
		switch sel.Kind {
		case KindHub:
			lit = s.Hub == sel.ID
		case KindCell:
			lit = s.Cell == sel.ID
		}
		if !lit {
			s.Alpha = dimmedSpoke
		}
	}
	return v
}

// Paint returns draw commands: dashed halos, spokes, nodes, then labels.
func (g *Graph) Paint() []render.Cmd {
	if g.Empty() {
		return []render.Cmd{render.Text(render.Point{X: g.width * 0.35, Y: g.height / 2}, "no topology data", render.Gray, 1)}
	}
	v := g.View()
	s := g.scale()
	pos := make(map[string]render.Point, len(v.Nodes))
	for _, n := range v.Nodes {
		pos[n.ID] = g.ToScreen(n.Pos)
	}
	var cmds []render.Cmd
	for _, n := range v.Nodes {
		if n.Kind == KindHub {
			cmds = append(cmds, render.Circle(pos[n.ID], haloRadius*s, false, n.Color, haloAlpha).WithDash().WithID(n.ID))
		}
	}
	for _, sp := range v.Spokes {
		cmds = append(cmds, render.Line(pos[sp.Hub], pos[sp.Cell], sp.Color, sp.Alpha).WithID(sp.Hub+"~"+sp.Cell))
	}
	for _, n := range v.Nodes {
		p := pos[n.ID]
		r := n.Size * s
		if n.Kind == KindHub {
			cmds = append(cmds, render.Rect(
				render.Point{X: p.X - r, Y: p.Y - r},
				render.Point{X: p.X + r, Y: p.Y + r},
				n.Color, n.Alpha).WithID(n.ID))
		} else {
			cmds = append(cmds, render.Circle(p, r, true, n.Color, n.Alpha).WithID(n.ID))
		}
	}
	for _, n := range v.Nodes {
		p := pos[n.ID]
		if n.Kind == KindHub {
			p.Y += hubLabelOffset * s
		}
		cmds = append(cmds, render.Text(p, n.Label, render.White, n.Alpha).WithID(n.ID))
	}
	return cmds
}
