package fronthaul

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestTopologyLookups(t *testing.T) {
	topo := &Topology{Links: []Link{
		{ID: "Link_B", Cells: []string{"1", "2"}},
		{ID: "Link_A", Cells: []string{"3"}},
	}}
	if got := topo.FirstLink(); got != "Link_B" {
		t.Fatalf("first link = %s, want Link_B", got)
	}
	if !topo.Has("Link_A") || topo.Has("Link_Z") {
		t.Fatalf("unexpected Has results")
	}
	if topo.CellCount() != 3 {
		t.Fatalf("cell count = %d, want 3", topo.CellCount())
	}
	var empty *Topology
	if empty.FirstLink() != "" || empty.CellCount() != 0 || empty.Has("x") {
		t.Fatalf("nil topology should behave as empty")
	}
}

func TestTopologyCloneIsDeep(t *testing.T) {
	topo := &Topology{Links: []Link{{ID: "L", Cells: []string{"1"}}}}
	c := topo.Clone()
	c.Links[0].Cells[0] = "changed"
	if topo.Links[0].Cells[0] != "1" {
		t.Fatalf("clone shares cell slice")
	}
}

func TestCorrelationAtOutOfRange(t *testing.T) {
	m := &CorrelationMatrix{Cells: []string{"a"}, Values: [][]float64{{1}}}
	if !math.IsNaN(m.At(0, 3)) {
		t.Fatalf("expected NaN for out of range access")
	}
	if m.Index("a") != 0 || m.Index("b") != -1 {
		t.Fatalf("unexpected index results")
	}
}

func TestGroupByLinkSortsByTime(t *testing.T) {
	pts := []TrafficPoint{
		{TimeSeconds: 2, LinkID: "A"},
		{TimeSeconds: 1, LinkID: "B"},
		{TimeSeconds: 1, LinkID: "A"},
	}
	g := GroupByLink(pts)
	if len(g["A"]) != 2 || g["A"][0].TimeSeconds != 1 {
		t.Fatalf("unexpected grouping: %+v", g)
	}
	if len(g["B"]) != 1 {
		t.Fatalf("expected one point for B")
	}
}

func TestCorrelationMatrixNullIsNaN(t *testing.T) {
	m := CorrelationMatrix{Cells: []string{"a", "b"}, Values: [][]float64{{1, math.NaN()}, {math.NaN(), 1}}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "null") {
		t.Fatalf("NaN should encode as null: %s", data)
	}
	var back CorrelationMatrix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(back.At(0, 1)) || back.At(1, 1) != 1 {
		t.Fatalf("unexpected values %v", back.Values)
	}
}
