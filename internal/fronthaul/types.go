// Fronthaul domain entities consumed from the analytics backend
package fronthaul

import (
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Link is one inferred fronthaul link and the cells it carries.
type Link struct {
	ID                 string   `json:"id"`
	Cells              []string `json:"cells"`
	AvgThroughputMbps  float64  `json:"avg_throughput_mbps"`
	PeakThroughputMbps float64  `json:"peak_throughput_mbps"`
}

// Topology keeps links in the order the backend reported them.
type Topology struct {
	Links []Link `json:"links"`
}

// LinkIDs returns link identifiers in topology order.
func (t *Topology) LinkIDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.Links))
	for _, l := range t.Links {
		ids = append(ids, l.ID)
	}
	return ids
}

// Link looks up a link by id.
func (t *Topology) Link(id string) (Link, bool) {
	if t == nil {
		return Link{}, false
	}
	for _, l := range t.Links {
		if l.ID == id {
			return l, true
		}
	}
	return Link{}, false
}

// Has reports whether id names a link of the topology.
func (t *Topology) Has(id string) bool {
	_, ok := t.Link(id)
	return ok
}

// FirstLink returns the first link id, or "" for an empty topology.
func (t *Topology) FirstLink() string {
	if t == nil || len(t.Links) == 0 {
		return ""
	}
	return t.Links[0].ID
}

// CellCount is the total number of cells across links.
func (t *Topology) CellCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, l := range t.Links {
		n += len(l.Cells)
	}
	return n
}

// Clone returns a deep copy.
func (t *Topology) Clone() *Topology {
	if t == nil {
		return nil
	}
	out := &Topology{Links: make([]Link, len(t.Links))}
	for i, l := range t.Links {
		l.Cells = append([]string(nil), l.Cells...)
		out.Links[i] = l
	}
	return out
}

// CorrelationMatrix is the pairwise packet-loss correlation across cells.
// Values[i][j] corresponds to Cells[i] and Cells[j]. Missing values are NaN.
type CorrelationMatrix struct {
	Cells  []string    `json:"cells"`
	Values [][]float64 `json:"matrix"`
}

// Size returns the number of cells.
func (c *CorrelationMatrix) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Cells)
}

// At returns the value at (i, j) or NaN when out of range.
func (c *CorrelationMatrix) At(i, j int) float64 {
	if c == nil || i < 0 || j < 0 || i >= len(c.Values) || j >= len(c.Values[i]) {
		return math.NaN()
	}
	return c.Values[i][j]
}

// Index returns the row of cell id, or -1.
func (c *CorrelationMatrix) Index(id string) int {
	if c == nil {
		return -1
	}
	for i, cell := range c.Cells {
		if cell == id {
			return i
		}
	}
	return -1
}

type wireMatrix struct {
	Cells  []string     `json:"cells"`
	Values [][]*float64 `json:"matrix"`
}

// MarshalJSON writes non-finite values as null.
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	w := wireMatrix{Cells: c.Cells, Values: make([][]*float64, len(c.Values))}
	for i, row := range c.Values {
		w.Values[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				v := v
				w.Values[i][j] = &v
			}
		}
	}
	return jsonAPI.Marshal(w)
}

// UnmarshalJSON reads null values as NaN.
func (c *CorrelationMatrix) UnmarshalJSON(data []byte) error {
	var w wireMatrix
	if err := jsonAPI.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Cells = w.Cells
	c.Values = make([][]float64, len(w.Values))
	for i, row := range w.Values {
		c.Values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				c.Values[i][j] = math.NaN()
			} else {
				c.Values[i][j] = *v
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *CorrelationMatrix) Clone() *CorrelationMatrix {
	if c == nil {
		return nil
	}
	out := &CorrelationMatrix{
		Cells:  append([]string(nil), c.Cells...),
		Values: make([][]float64, len(c.Values)),
	}
	for i, row := range c.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// CapacityRecord is one row of the capacity summary.
// CapacityWithBufferGbps is expected, not guaranteed, to be <= CapacityNoBufferGbps.
type CapacityRecord struct {
	LinkID                 string  `json:"link_id"`
	AvgGbps                float64 `json:"avg_gbps"`
	PeakGbps               float64 `json:"peak_gbps"`
	P95Gbps                float64 `json:"p95_gbps"`
	CapacityNoBufferGbps   float64 `json:"capacity_no_buffer_gbps"`
	CapacityWithBufferGbps float64 `json:"capacity_with_buffer_gbps"`
}

// TrafficPoint is one sample of aggregated link traffic.
type TrafficPoint struct {
	TimeSeconds    float64 `json:"time_seconds"`
	LinkID         string  `json:"link_id"`
	AggregatedGbps float64 `json:"aggregated_gbps"`
}

// GroupByLink splits a mixed series into per-link series, keeping time order.
func GroupByLink(points []TrafficPoint) map[string][]TrafficPoint {
	out := make(map[string][]TrafficPoint)
	for _, p := range points {
		out[p.LinkID] = append(out[p.LinkID], p)
	}
	for _, series := range out {
		sort.SliceStable(series, func(i, j int) bool { return series[i].TimeSeconds < series[j].TimeSeconds })
	}
	return out
}
