// Package sink persists fetched fronthaul data to GreptimeDB so traffic and
// capacity history outlive the console session.
package sink

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/fronthaul"
)

const (
	defaultPort          = 4001
	defaultTrafficTable  = "fronthaul_link_traffic"
	capacityTableSuffix  = "_capacity"
	defaultWriteDeadline = 10 * time.Second
	queueSize            = 8
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeSink writes traffic series and capacity summaries of settled
// snapshots, once per refresh generation. Writes run on a background
// goroutine; Close drains pending snapshots and stops it.
type GreptimeSink struct {
	client        greptimeClient
	trafficTable  string
	capacityTable string

	queue chan dashboard.Snapshot
	done  chan struct{}

	mu      sync.Mutex
	lastGen uint64
	closed  bool
}

// NewGreptimeSink connects to endpoint (host or host:port).
func NewGreptimeSink(endpoint, database, trafficTable string) (*GreptimeSink, error) {
	host, port := endpoint, defaultPort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: bad port: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newGreptimeSink(client, trafficTable), nil
}

func newGreptimeSink(client greptimeClient, trafficTable string) *GreptimeSink {
	if trafficTable == "" {
		trafficTable = defaultTrafficTable
	}
	s := &GreptimeSink{
		client:        client,
		trafficTable:  trafficTable,
		capacityTable: trafficTable + capacityTableSuffix,
		queue:         make(chan dashboard.Snapshot, queueSize),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

// OnSnapshot queues a settled snapshot whose refresh generation has not
// been written yet. It never blocks on the database.
func (s *GreptimeSink) OnSnapshot(snap dashboard.Snapshot) {
	if !snap.Settled() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.Generation <= s.lastGen {
		return
	}
	select {
	case s.queue <- snap:
		s.lastGen = snap.Generation
	default:
		log.Printf("[GreptimeSink] queue full, dropping generation %d", snap.Generation)
	}
}

// Close stops accepting snapshots and waits for queued writes to finish.
func (s *GreptimeSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *GreptimeSink) run() {
	defer close(s.done)
	for snap := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteDeadline)
		if err := s.Write(ctx, snap); err != nil {
			log.Printf("[GreptimeSink] write failed: %v", err)
		}
		cancel()
	}
}

// Write inserts the snapshot's traffic and capacity rows.
func (s *GreptimeSink) Write(ctx context.Context, snap dashboard.Snapshot) error {
	var tables []*table.Table
	traffic, err := s.trafficRows(snap)
	if err != nil {
		return err
	}
	if traffic != nil {
		tables = append(tables, traffic)
	}
	caps, err := s.capacityRows(snap.Capacity, snap.UpdatedAt)
	if err != nil {
		return err
	}
	if caps != nil {
		tables = append(tables, caps)
	}
	if len(tables) == 0 {
		return nil
	}
	resp, err := s.client.Write(ctx, tables...)
	if err != nil {
		return err
	}
	log.Printf("[GreptimeSink] generation %d: wrote %d rows", snap.Generation, resp.GetAffectedRows().GetValue())
	return nil
}

// trafficTime maps a dataset-relative offset to a timestamp so that repeated
// writes of the same series upsert the same rows.
func trafficTime(seconds float64) time.Time {
	return time.UnixMilli(int64(seconds * 1000)).UTC()
}

func (s *GreptimeSink) trafficRows(snap dashboard.Snapshot) (*table.Table, error) {
	points := flatten(snap)
	if len(points) == 0 {
		return nil, nil
	}
	tbl, err := table.New(s.trafficTable)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("link_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("aggregated_gbps", types.FLOAT64); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("time_seconds", types.FLOAT64); err != nil {
		return nil, err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	for _, p := range points {
		if err := tbl.AddRow(p.LinkID, p.AggregatedGbps, p.TimeSeconds, trafficTime(p.TimeSeconds)); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func (s *GreptimeSink) capacityRows(records []fronthaul.CapacityRecord, at time.Time) (*table.Table, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tbl, err := table.New(s.capacityTable)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("link_id", types.STRING); err != nil {
		return nil, err
	}
	for _, name := range []string{"avg_gbps", "peak_gbps", "p95_gbps", "capacity_no_buffer_gbps", "capacity_with_buffer_gbps"} {
		if err := tbl.AddFieldColumn(name, types.FLOAT64); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := tbl.AddRow(r.LinkID, r.AvgGbps, r.PeakGbps, r.P95Gbps, r.CapacityNoBufferGbps, r.CapacityWithBufferGbps, at); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// flatten lists every known series in topology order; the selected series
// fills in when the all-links fetch failed.
func flatten(snap dashboard.Snapshot) []fronthaul.TrafficPoint {
	var out []fronthaul.TrafficPoint
	for _, id := range snap.Topology.LinkIDs() {
		out = append(out, snap.AllTraffic[id]...)
	}
	if len(snap.AllTraffic[snap.SelectedLink]) == 0 {
		out = append(out, snap.Traffic...)
	}
	return out
}
