package api

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	for p, h := range routes {
		mux.HandleFunc(p, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second), srv
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func TestTopologyKeepsKeyOrder(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathTopology: respond(`{"links":{
			"Link_C":{"cells":["5",6],"cell_count":2,"avg_throughput_mbps":800,"peak_throughput_mbps":2000},
			"Link_A":{"cells":[1,2],"avg_throughput_mbps":1000,"peak_throughput_mbps":3000},
			"Link_B":{"cells":["3","4"],"avg_throughput_mbps":1500,"peak_throughput_mbps":4500}
		},"generated_at":"now"}`),
	})
	topo, err := c.Topology(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Link_C", "Link_A", "Link_B"}, topo.LinkIDs())
	l, ok := topo.Link("Link_A")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, l.Cells)
	assert.Equal(t, 3000.0, l.PeakThroughputMbps)
	assert.Equal(t, 6, topo.CellCount())
}

func TestTopologyShapeErrors(t *testing.T) {
	cases := map[string]string{
		"missing links":      `{"other":{}}`,
		"links not object":   `{"links":[1,2]}`,
		"missing peak":       `{"links":{"L":{"cells":["1"],"avg_throughput_mbps":1}}}`,
		"duplicate cells":    `{"links":{"L":{"cells":["1","1"],"avg_throughput_mbps":1,"peak_throughput_mbps":2}}}`,
		"cell count differs": `{"links":{"L":{"cells":["1"],"cell_count":3,"avg_throughput_mbps":1,"peak_throughput_mbps":2}}}`,
		"not an object":      `[1]`,
	}
	d := newDecoder()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Topology(PathTopology, []byte(body))
			require.Error(t, err)
			assert.True(t, IsDataShape(err), "got %T: %v", err, err)
		})
	}
}

func TestCorrelationDecode(t *testing.T) {
	d := newDecoder()
	m, err := d.Correlation(PathCorrelation, []byte(`{"cells":["C1","C2",3],"matrix":[[1,0.9,null],[0.9,1,0.2],[null,0.2,1]]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "3"}, m.Cells)
	assert.Equal(t, 0.9, m.At(0, 1))
	assert.True(t, math.IsNaN(m.At(0, 2)))
	assert.True(t, math.IsNaN(m.At(2, 0)))
}

func TestCorrelationShapeErrors(t *testing.T) {
	cases := map[string]string{
		"row count":     `{"cells":["a","b"],"matrix":[[1,0.5]]}`,
		"column count":  `{"cells":["a","b"],"matrix":[[1,0.5],[0.5]]}`,
		"asymmetric":    `{"cells":["a","b"],"matrix":[[1,0.5],[0.6,1]]}`,
		"half null":     `{"cells":["a","b"],"matrix":[[1,null],[0.6,1]]}`,
		"missing cells": `{"matrix":[[1]]}`,
		"bad json":      `{"cells":`,
	}
	d := newDecoder()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Correlation(PathCorrelation, []byte(body))
			require.Error(t, err)
			assert.True(t, IsDataShape(err), "got %T: %v", err, err)
		})
	}
}

func TestCapacityMissingField(t *testing.T) {
	d := newDecoder()
	_, err := d.Capacity(PathCapacity, []byte(`[{"link_id":"L","avg_gbps":1,"peak_gbps":2,"p95_gbps":1.5,"capacity_no_buffer_gbps":2}]`))
	var de *DataShapeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "[0].capacity_with_buffer_gbps", de.Field)
}

func TestCapacityZeroValuesAccepted(t *testing.T) {
	d := newDecoder()
	recs, err := d.Capacity(PathCapacity, []byte(`[{"link_id":"L","avg_gbps":0,"peak_gbps":0,"p95_gbps":0,"capacity_no_buffer_gbps":0,"capacity_with_buffer_gbps":0}]`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "L", recs[0].LinkID)
}

func TestLinkTrafficSortedAndChecked(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathTraffic: func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("link_id") {
			case "Link_A":
				io.WriteString(w, `[{"time_seconds":2,"link_id":"Link_A","aggregated_gbps":1.5},{"time_seconds":1,"link_id":"Link_A","aggregated_gbps":1.0}]`)
			case "Link_B":
				io.WriteString(w, `[{"time_seconds":1,"link_id":"Link_A","aggregated_gbps":1.0}]`)
			case "":
				io.WriteString(w, `[{"time_seconds":1,"link_id":"Link_A","aggregated_gbps":1.0},{"time_seconds":1,"link_id":"Link_B","aggregated_gbps":2.0}]`)
			default:
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"detail":"Link not found"}`)
			}
		},
	})
	ctx := context.Background()

	pts, err := c.LinkTraffic(ctx, "Link_A")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 1.0, pts[0].TimeSeconds)

	_, err = c.LinkTraffic(ctx, "Link_B")
	assert.True(t, IsDataShape(err))

	all, err := c.LinkTraffic(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = c.LinkTraffic(ctx, "Link_Z")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
	assert.Contains(t, ne.Err.Error(), "Link not found")
}

func TestServerErrorIsNetworkError(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathCapacity: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})
	_, err := c.CapacitySummary(context.Background())
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusInternalServerError, ne.StatusCode)
	assert.False(t, IsDataShape(err))
}

func TestConnectionFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Topology(context.Background())
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Zero(t, ne.StatusCode)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathCorrelation: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	})
	c.http.Timeout = 50 * time.Millisecond
	_, err := c.Correlation(context.Background())
	assert.True(t, IsNetwork(err), "got %T: %v", err, err)
}

func TestUploadSendsMultipartFile(t *testing.T) {
	var gotName, gotBody, gotReqID string
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathUpload: func(w http.ResponseWriter, r *http.Request) {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer f.Close()
			b, _ := io.ReadAll(f)
			gotName, gotBody = hdr.Filename, string(b)
			gotReqID = r.Header.Get("X-Request-ID")
			io.WriteString(w, `{"status":"ok"}`)
		},
	})
	err := c.Upload(context.Background(), "cells.zip", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "cells.zip", gotName)
	assert.Equal(t, "payload", gotBody)
	assert.NotEmpty(t, gotReqID)
}

func TestRejectedActionsAreUserActionErrors(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathUpload: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"Only ZIP files are supported"}`)
		},
		PathReset: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, "busy")
		},
	})
	ctx := context.Background()

	err := c.Upload(ctx, "data.txt", strings.NewReader("x"))
	var ue *UserActionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "upload", ue.Action)
	assert.Equal(t, "Only ZIP files are supported", ue.Detail)

	err = c.Reset(ctx)
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "reset", ue.Action)
	assert.Equal(t, http.StatusConflict, ue.StatusCode)
	assert.Equal(t, "busy", ue.Detail)
	assert.False(t, IsNetwork(err))
}

func TestChatRoundTrip(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathChat: func(w http.ResponseWriter, r *http.Request) {
			var req ChatRequest
			if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			ctxData, _ := req.ContextData.(map[string]any)
			io.WriteString(w, `{"role":"assistant","content":"links=`)
			b, _ := jsonAPI.Marshal(ctxData["links"])
			w.Write(b)
			io.WriteString(w, `"}`)
		},
	})
	msg, err := c.Chat(context.Background(), ChatRequest{
		Messages:    []ChatMessage{{Role: "user", Content: "hi"}, {Role: "user", Content: "status?"}},
		Model:       "m",
		ContextData: map[string]any{"links": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "links=3", msg.Content)
}

func TestChatMissingRole(t *testing.T) {
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		PathChat: respond(`{"content":"?"}`),
	})
	_, err := c.Chat(context.Background(), ChatRequest{})
	assert.True(t, IsDataShape(err))
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "nope", detail([]byte(`{"detail":"nope"}`)))
	assert.Equal(t, `[{"msg":"bad"}]`, detail([]byte(`{"detail":[{"msg":"bad"}]}`)))
	assert.Equal(t, "plain", detail([]byte(" plain\n")))
}

func TestErrorsUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&NetworkError{Op: "GET", URL: "u", Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "boom")
}
