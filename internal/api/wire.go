package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"fronthaul-noc/internal/fronthaul"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// symmetryTolerance bounds |m[i][j] - m[j][i]| for finite entries.
const symmetryTolerance = 1e-6

// cellID accepts cell identifiers serialized as strings or numbers.
type cellID string

func (c *cellID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := jsonAPI.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = cellID(s)
		return nil
	}
	var n json.Number
	if err := jsonAPI.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("cell id must be a string or number, got %s", b)
	}
	*c = cellID(n.String())
	return nil
}

func cellStrings(in []cellID) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

type wireLink struct {
	Cells              []cellID `json:"cells" validate:"required,unique,dive,required"`
	CellCount          *int     `json:"cell_count" validate:"omitempty,min=0"`
	AvgThroughputMbps  *float64 `json:"avg_throughput_mbps" validate:"required"`
	PeakThroughputMbps *float64 `json:"peak_throughput_mbps" validate:"required"`
}

type wireCorrelation struct {
	Cells  []cellID     `json:"cells" validate:"required,unique,dive,required"`
	Matrix [][]*float64 `json:"matrix" validate:"required"`
}

type wireCapacity struct {
	LinkID                 string   `json:"link_id" validate:"required"`
	AvgGbps                *float64 `json:"avg_gbps" validate:"required"`
	PeakGbps               *float64 `json:"peak_gbps" validate:"required"`
	P95Gbps                *float64 `json:"p95_gbps" validate:"required"`
	CapacityNoBufferGbps   *float64 `json:"capacity_no_buffer_gbps" validate:"required"`
	CapacityWithBufferGbps *float64 `json:"capacity_with_buffer_gbps" validate:"required"`
}

type wireTraffic struct {
	TimeSeconds    *float64 `json:"time_seconds" validate:"required"`
	LinkID         string   `json:"link_id" validate:"required"`
	AggregatedGbps *float64 `json:"aggregated_gbps" validate:"required"`
}

// decoder validates responses once at the gateway boundary.
type decoder struct {
	validate *validator.Validate
}

func newDecoder() *decoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &decoder{validate: v}
}

func (d *decoder) check(endpoint, prefix string, v any) error {
	err := d.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		return &DataShapeError{Endpoint: endpoint, Field: prefix + field, Reason: "failed " + fe.Tag()}
	}
	return &DataShapeError{Endpoint: endpoint, Reason: err.Error()}
}

// Topology decodes {"links": {...}} keeping the object key order.
func (d *decoder) Topology(endpoint string, data []byte) (*fronthaul.Topology, error) {
	iter := jsonAPI.BorrowIterator(data)
	defer jsonAPI.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, &DataShapeError{Endpoint: endpoint, Reason: "expected a JSON object"}
	}
	topo := &fronthaul.Topology{}
	seen := map[string]bool{}
	found := false
	var shapeErr error
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		if key != "links" {
			it.Skip()
			return true
		}
		found = true
		if it.WhatIsNext() != jsoniter.ObjectValue {
			shapeErr = &DataShapeError{Endpoint: endpoint, Field: "links", Reason: "expected an object keyed by link id"}
			it.Skip()
			return false
		}
		return it.ReadObjectCB(func(it *jsoniter.Iterator, linkID string) bool {
			var w wireLink
			it.ReadVal(&w)
			if it.Error != nil {
				return false
			}
			prefix := "links." + linkID + "."
			switch {
			case linkID == "":
				shapeErr = &DataShapeError{Endpoint: endpoint, Field: "links", Reason: "empty link id"}
			case seen[linkID]:
				shapeErr = &DataShapeError{Endpoint: endpoint, Field: "links." + linkID, Reason: "duplicate link id"}
			default:
				shapeErr = d.check(endpoint, prefix, w)
			}
			if shapeErr == nil && w.CellCount != nil && *w.CellCount != len(w.Cells) {
				shapeErr = &DataShapeError{Endpoint: endpoint, Field: prefix + "cell_count",
					Reason: fmt.Sprintf("cell_count %d does not match %d cells", *w.CellCount, len(w.Cells))}
			}
			if shapeErr != nil {
				return false
			}
			seen[linkID] = true
			topo.Links = append(topo.Links, fronthaul.Link{
				ID:                 linkID,
				Cells:              cellStrings(w.Cells),
				AvgThroughputMbps:  *w.AvgThroughputMbps,
				PeakThroughputMbps: *w.PeakThroughputMbps,
			})
			return true
		})
	})
	if shapeErr != nil {
		return nil, shapeErr
	}
	if iter.Error != nil {
		return nil, &DataShapeError{Endpoint: endpoint, Reason: iter.Error.Error()}
	}
	if !found {
		return nil, &DataShapeError{Endpoint: endpoint, Field: "links", Reason: "missing"}
	}
	return topo, nil
}

// Correlation decodes a square symmetric matrix. null entries become NaN.
func (d *decoder) Correlation(endpoint string, data []byte) (*fronthaul.CorrelationMatrix, error) {
	var w wireCorrelation
	if err := jsonAPI.Unmarshal(data, &w); err != nil {
		return nil, &DataShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	if err := d.check(endpoint, "", w); err != nil {
		return nil, err
	}
	n := len(w.Cells)
	if len(w.Matrix) != n {
		return nil, &DataShapeError{Endpoint: endpoint, Field: "matrix",
			Reason: fmt.Sprintf("%d rows for %d cells", len(w.Matrix), n)}
	}
	m := &fronthaul.CorrelationMatrix{Cells: cellStrings(w.Cells), Values: make([][]float64, n)}
	for i, row := range w.Matrix {
		if len(row) != n {
			return nil, &DataShapeError{Endpoint: endpoint, Field: fmt.Sprintf("matrix[%d]", i),
				Reason: fmt.Sprintf("%d columns for %d cells", len(row), n)}
		}
		m.Values[i] = make([]float64, n)
		for j, v := range row {
			if v == nil {
				m.Values[i][j] = math.NaN()
			} else {
				m.Values[i][j] = *v
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := m.Values[i][j], m.Values[j][i]
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			if math.IsNaN(a) != math.IsNaN(b) || math.Abs(a-b) > symmetryTolerance {
				return nil, &DataShapeError{Endpoint: endpoint, Field: fmt.Sprintf("matrix[%d][%d]", i, j), Reason: "matrix is not symmetric"}
			}
		}
	}
	return m, nil
}

// Capacity decodes the capacity summary list.
func (d *decoder) Capacity(endpoint string, data []byte) ([]fronthaul.CapacityRecord, error) {
	var ws []wireCapacity
	if err := jsonAPI.Unmarshal(data, &ws); err != nil {
		return nil, &DataShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	out := make([]fronthaul.CapacityRecord, 0, len(ws))
	for i, w := range ws {
		if err := d.check(endpoint, fmt.Sprintf("[%d].", i), w); err != nil {
			return nil, err
		}
		out = append(out, fronthaul.CapacityRecord{
			LinkID:                 w.LinkID,
			AvgGbps:                *w.AvgGbps,
			PeakGbps:               *w.PeakGbps,
			P95Gbps:                *w.P95Gbps,
			CapacityNoBufferGbps:   *w.CapacityNoBufferGbps,
			CapacityWithBufferGbps: *w.CapacityWithBufferGbps,
		})
	}
	return out, nil
}

// Traffic decodes a traffic series and orders it by time. When linkID is
// set every point must belong to that link.
func (d *decoder) Traffic(endpoint, linkID string, data []byte) ([]fronthaul.TrafficPoint, error) {
	var ws []wireTraffic
	if err := jsonAPI.Unmarshal(data, &ws); err != nil {
		return nil, &DataShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	out := make([]fronthaul.TrafficPoint, 0, len(ws))
	for i, w := range ws {
		if err := d.check(endpoint, fmt.Sprintf("[%d].", i), w); err != nil {
			return nil, err
		}
		if linkID != "" && w.LinkID != linkID {
			return nil, &DataShapeError{Endpoint: endpoint, Field: fmt.Sprintf("[%d].link_id", i),
				Reason: fmt.Sprintf("got %q, requested %q", w.LinkID, linkID)}
		}
		out = append(out, fronthaul.TrafficPoint{TimeSeconds: *w.TimeSeconds, LinkID: w.LinkID, AggregatedGbps: *w.AggregatedGbps})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeSeconds < out[j].TimeSeconds })
	return out, nil
}
