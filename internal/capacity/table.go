// Package capacity derives the sortable, filterable capacity view, its
// export and the insight statements from the capacity summary.
package capacity

import (
	"fmt"
	"sort"
	"strings"

	"fronthaul-noc/internal/fronthaul"
)

// SavingsPercent is the share of capacity saved by buffering. It is 0
// when the unbuffered capacity is 0.
func SavingsPercent(r fronthaul.CapacityRecord) float64 {
	if r.CapacityNoBufferGbps == 0 {
		return 0
	}
	return (r.CapacityNoBufferGbps - r.CapacityWithBufferGbps) / r.CapacityNoBufferGbps * 100
}

// Column names a sortable column by its wire key.
type Column string

const (
	ColLinkID     Column = "link_id"
	ColAvg        Column = "avg_gbps"
	ColPeak       Column = "peak_gbps"
	ColP95        Column = "p95_gbps"
	ColNoBuffer   Column = "capacity_no_buffer_gbps"
	ColWithBuffer Column = "capacity_with_buffer_gbps"
	ColSavings    Column = "savings_pct"
)

// Columns lists columns in display order.
var Columns = []Column{ColLinkID, ColAvg, ColPeak, ColP95, ColNoBuffer, ColWithBuffer, ColSavings}

// ParseColumn validates a column name.
func ParseColumn(name string) (Column, error) {
	for _, c := range Columns {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capacity column %q", name)
}

// Title is the column header.
func (c Column) Title() string {
	switch c {
	case ColLinkID:
		return "Link ID"
	case ColAvg:
		return "Avg (Gbps)"
	case ColPeak:
		return "Peak (Gbps)"
	case ColP95:
		return "P95 (Gbps)"
	case ColNoBuffer:
		return "No Buffer (Gbps)"
	case ColWithBuffer:
		return "With Buffer (Gbps)"
	case ColSavings:
		return "Savings (%)"
	}
	return string(c)
}

func (c Column) value(r Row) float64 {
	switch c {
	case ColAvg:
		return r.AvgGbps
	case ColPeak:
		return r.PeakGbps
	case ColP95:
		return r.P95Gbps
	case ColNoBuffer:
		return r.CapacityNoBufferGbps
	case ColWithBuffer:
		return r.CapacityWithBufferGbps
	case ColSavings:
		return r.SavingsPct
	}
	return 0
}

func (c Column) less(a, b Row) bool {
	if c == ColLinkID {
		return a.LinkID < b.LinkID
	}
	return c.value(a) < c.value(b)
}

// Direction is a sort order.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

// Arrow is the header indicator of the direction.
func (d Direction) Arrow() string {
	if d == Ascending {
		return "↑"
	}
	return "↓"
}

// Row is a record with its derived savings.
type Row struct {
	fronthaul.CapacityRecord
	SavingsPct float64
}

// Table is the filter and sort state of the capacity view.
type Table struct {
	records []fronthaul.CapacityRecord
	column  Column
	dir     Direction
	filter  string
}

// NewTable sorts by column, descending. An empty column means peak.
func NewTable(records []fronthaul.CapacityRecord, column Column) *Table {
	if column == "" {
		column = ColPeak
	}
	return &Table{records: records, column: column, dir: Descending}
}

// SetRecords replaces the data; sort and filter state are kept.
func (t *Table) SetRecords(records []fronthaul.CapacityRecord) {
	t.records = records
}

// SortBy activates column. Re-activating the current column toggles the
// direction; a new column starts descending.
func (t *Table) SortBy(c Column) {
	if c == t.column {
		if t.dir == Ascending {
			t.dir = Descending
		} else {
			t.dir = Ascending
		}
		return
	}
	t.column = c
	t.dir = Descending
}

// Sort returns the active column and direction.
func (t *Table) Sort() (Column, Direction) { return t.column, t.dir }

// SetFilter sets the case-insensitive link id filter.
func (t *Table) SetFilter(s string) { t.filter = s }

// Filter returns the current filter text.
func (t *Table) Filter() string { return t.filter }

// Len is the number of unfiltered records.
func (t *Table) Len() int { return len(t.records) }

// Rows returns the filtered records, stably sorted.
func (t *Table) Rows() []Row {
	needle := strings.ToLower(t.filter)
	rows := make([]Row, 0, len(t.records))
	for _, r := range t.records {
		if needle != "" && !strings.Contains(strings.ToLower(r.LinkID), needle) {
			continue
		}
		rows = append(rows, Row{CapacityRecord: r, SavingsPct: SavingsPercent(r)})
	}
	col, dir := t.column, t.dir
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == Ascending {
			return col.less(rows[i], rows[j])
		}
		return col.less(rows[j], rows[i])
	})
	return rows
}

// Suggestion proposes a link id close to the filter when nothing matches.
func (t *Table) Suggestion() (string, bool) {
	if t.filter == "" || len(t.Rows()) > 0 {
		return "", false
	}
	ids := make([]string, 0, len(t.records))
	for _, r := range t.records {
		ids = append(ids, r.LinkID)
	}
	return Suggest(t.filter, ids)
}

// Cells formats a row the way the screen and the export show it.
func (r Row) Cells() []string {
	return []string{
		r.LinkID,
		fmt.Sprintf("%.2f", r.AvgGbps),
		fmt.Sprintf("%.2f", r.PeakGbps),
		fmt.Sprintf("%.2f", r.P95Gbps),
		fmt.Sprintf("%.2f", r.CapacityNoBufferGbps),
		fmt.Sprintf("%.2f", r.CapacityWithBufferGbps),
		fmt.Sprintf("%.1f", r.SavingsPct),
	}
}
