package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/fronthaul"
)

type mockGreptimeClient struct {
	mu     sync.Mutex
	tables []*table.Table
	writes int
	err    error
	// release, when set, holds every write until it is closed.
	release chan struct{}
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.err != nil {
		return nil, m.err
	}
	m.tables = tables
	return &gpb.GreptimeResponse{}, nil
}

func (m *mockGreptimeClient) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func settledSnapshot(gen uint64) dashboard.Snapshot {
	return dashboard.Snapshot{
		Topology: &fronthaul.Topology{Links: []fronthaul.Link{{ID: "Link_B"}, {ID: "Link_A"}}},
		AllTraffic: map[string][]fronthaul.TrafficPoint{
			"Link_A": {{TimeSeconds: 1.5, LinkID: "Link_A", AggregatedGbps: 2.25}},
			"Link_B": {{TimeSeconds: 0, LinkID: "Link_B", AggregatedGbps: 3}},
		},
		SelectedLink: "Link_A",
		Capacity: []fronthaul.CapacityRecord{
			{LinkID: "Link_A", AvgGbps: 1, PeakGbps: 3, P95Gbps: 2.5, CapacityNoBufferGbps: 3, CapacityWithBufferGbps: 2},
		},
		Initialized: true,
		Generation:  gen,
		UpdatedAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestGreptimeSinkTrafficRows(t *testing.T) {
	m := &mockGreptimeClient{}
	s := newGreptimeSink(m, "")
	defer s.Close()

	if err := s.Write(context.Background(), settledSnapshot(1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(m.tables) != 2 {
		t.Fatalf("expected traffic and capacity tables, got %d", len(m.tables))
	}

	traffic := m.tables[0].GetRows()
	schema := traffic.Schema
	if len(schema) != 4 {
		t.Fatalf("unexpected schema length: %d", len(schema))
	}
	if schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Errorf("link_id semantic type = %v, want TAG", schema[0].SemanticType)
	}
	if schema[3].Datatype != gpb.ColumnDataType_TIMESTAMP_MILLISECOND {
		t.Errorf("ts type = %v", schema[3].Datatype)
	}
	if len(traffic.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(traffic.Rows))
	}
	if got := traffic.Rows[0].Values[0].GetStringValue(); got != "Link_B" {
		t.Errorf("first row link = %s, want Link_B (topology order)", got)
	}
	if got := traffic.Rows[1].Values[1].GetF64Value(); got != 2.25 {
		t.Errorf("aggregated_gbps = %v, want 2.25", got)
	}
	if got := traffic.Rows[1].Values[3].GetTimestampMillisecondValue(); got != 1500 {
		t.Errorf("ts = %d, want 1500", got)
	}

	caps := m.tables[1].GetRows()
	if got := caps.Rows[0].Values[2].GetF64Value(); got != 3 {
		t.Errorf("peak_gbps = %v, want 3", got)
	}
}

func TestGreptimeSinkOncePerGeneration(t *testing.T) {
	m := &mockGreptimeClient{}
	s := newGreptimeSink(m, "traffic")

	s.OnSnapshot(settledSnapshot(1))
	s.OnSnapshot(settledSnapshot(1))
	loading := settledSnapshot(2)
	loading.Loading = true
	s.OnSnapshot(loading)
	s.OnSnapshot(settledSnapshot(2))
	s.Close()
	if m.writes != 2 {
		t.Fatalf("expected 2 writes, got %d", m.writes)
	}
	if name, err := m.tables[1].GetName(); err != nil || name != "traffic_capacity" {
		t.Errorf("capacity table = %s (err %v)", name, err)
	}

	// snapshots after Close are ignored
	s.OnSnapshot(settledSnapshot(3))
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.writes != 2 {
		t.Fatalf("write after close: %d", m.writes)
	}
}

func TestGreptimeSinkSlowWriteDoesNotDelayObservers(t *testing.T) {
	m := &mockGreptimeClient{release: make(chan struct{})}
	s := newGreptimeSink(m, "")

	var (
		mu      sync.Mutex
		settled bool
	)
	later := dashboard.ObserverFunc(func(snap dashboard.Snapshot) {
		mu.Lock()
		settled = settled || snap.Settled()
		mu.Unlock()
	})
	rec := api.Recording{
		ID:       "rec-1",
		Topology: &fronthaul.Topology{Links: []fronthaul.Link{{ID: "Link_A", Cells: []string{"1"}}}},
		Correlation: &fronthaul.CorrelationMatrix{
			Cells:  []string{"1"},
			Values: [][]float64{{1}},
		},
		Capacity: []fronthaul.CapacityRecord{{LinkID: "Link_A", AvgGbps: 1, PeakGbps: 2}},
		Traffic:  []fronthaul.TrafficPoint{{TimeSeconds: 0, LinkID: "Link_A", AggregatedGbps: 1}},
	}
	orch := dashboard.New(api.NewFixtureGateway(rec), dashboard.WithObserver(s), dashboard.WithObserver(later))

	done := make(chan error, 1)
	go func() { done <- orch.FetchAll(context.Background(), false) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("FetchAll: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchAll blocked on the database write")
	}
	mu.Lock()
	if !settled {
		t.Error("later observer did not see the settled snapshot")
	}
	mu.Unlock()
	if n := m.count(); n != 0 {
		t.Fatalf("write finished before release: %d", n)
	}

	close(m.release)
	s.Close()
	if n := m.count(); n != 1 {
		t.Fatalf("expected 1 write after Close, got %d", n)
	}
}

func TestGreptimeSinkEmptySnapshot(t *testing.T) {
	m := &mockGreptimeClient{}
	s := newGreptimeSink(m, "")
	defer s.Close()
	if err := s.Write(context.Background(), dashboard.Snapshot{Initialized: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.writes != 0 {
		t.Errorf("expected no write for empty snapshot")
	}
}

func TestGreptimeSinkError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	s := newGreptimeSink(m, "")
	defer s.Close()
	if err := s.Write(context.Background(), settledSnapshot(1)); err == nil {
		t.Fatal("expected error")
	}
}
