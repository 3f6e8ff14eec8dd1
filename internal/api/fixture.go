package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"fronthaul-noc/internal/fronthaul"
)

// Recording is one recorded snapshot of backend data, one JSON object per
// line of a recording file.
type Recording struct {
	ID          string                       `json:"id"`
	RecordedAt  time.Time                    `json:"recorded_at"`
	Version     uint64                       `json:"version"`
	Topology    *fronthaul.Topology          `json:"topology,omitempty"`
	Correlation *fronthaul.CorrelationMatrix `json:"correlation,omitempty"`
	Capacity    []fronthaul.CapacityRecord   `json:"capacity,omitempty"`
	Traffic     []fronthaul.TrafficPoint     `json:"traffic,omitempty"`
}

// maxRecordingLine bounds one JSONL record.
const maxRecordingLine = 32 << 20

// ReplayLog feeds recordings from r to fn. A speed > 0 waits between
// recordings in proportion to their recorded spacing; speed <= 0 does not
// wait.
func ReplayLog(ctx context.Context, r io.Reader, fn func(Recording) error, speed float64) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordingLine)
	var prev time.Time
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Recording
		if err := jsonAPI.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode recording line %d: %w", line, err)
		}
		if !prev.IsZero() && speed > 0 {
			diff := time.Duration(float64(rec.RecordedAt.Sub(prev)) / speed)
			if diff > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(diff):
				}
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
		prev = rec.RecordedAt
	}
	return sc.Err()
}

// ReplayLogFile opens path and replays its recordings.
func ReplayLogFile(ctx context.Context, path string, fn func(Recording) error, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, fn, speed)
}

// LastRecording returns the final recording in path.
func LastRecording(path string) (Recording, error) {
	var last Recording
	n := 0
	err := ReplayLogFile(context.Background(), path, func(r Recording) error {
		last = r
		n++
		return nil
	}, 0)
	if err != nil {
		return Recording{}, err
	}
	if n == 0 {
		return Recording{}, fmt.Errorf("%s: no recordings", path)
	}
	return last, nil
}

var (
	_ Gateway = (*Client)(nil)
	_ Gateway = (*FixtureGateway)(nil)
)

// FixtureGateway serves a recording as if it were the backend. Mutating
// actions are rejected.
type FixtureGateway struct {
	mu  sync.RWMutex
	rec Recording
}

// NewFixtureGateway serves rec.
func NewFixtureGateway(rec Recording) *FixtureGateway {
	return &FixtureGateway{rec: rec}
}

// OpenFixture serves the last recording of a recording file.
func OpenFixture(path string) (*FixtureGateway, error) {
	rec, err := LastRecording(path)
	if err != nil {
		return nil, err
	}
	return NewFixtureGateway(rec), nil
}

// Load swaps the served recording.
func (f *FixtureGateway) Load(rec Recording) {
	f.mu.Lock()
	f.rec = rec
	f.mu.Unlock()
}

func (f *FixtureGateway) missing(path string) error {
	return &NetworkError{Op: http.MethodGet, URL: "fixture:" + path, StatusCode: http.StatusNotFound,
		Err: fmt.Errorf("not in recording %s", f.rec.ID)}
}

func (f *FixtureGateway) Topology(ctx context.Context) (*fronthaul.Topology, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.rec.Topology == nil {
		return nil, f.missing(PathTopology)
	}
	return f.rec.Topology.Clone(), nil
}

func (f *FixtureGateway) Correlation(ctx context.Context) (*fronthaul.CorrelationMatrix, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.rec.Correlation == nil {
		return nil, f.missing(PathCorrelation)
	}
	return f.rec.Correlation.Clone(), nil
}

func (f *FixtureGateway) CapacitySummary(ctx context.Context) ([]fronthaul.CapacityRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.rec.Capacity == nil && f.rec.Topology == nil {
		return nil, f.missing(PathCapacity)
	}
	return append([]fronthaul.CapacityRecord(nil), f.rec.Capacity...), nil
}

func (f *FixtureGateway) LinkTraffic(ctx context.Context, linkID string) ([]fronthaul.TrafficPoint, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []fronthaul.TrafficPoint
	for _, p := range f.rec.Traffic {
		if linkID == "" || p.LinkID == linkID {
			out = append(out, p)
		}
	}
	if linkID != "" && len(out) == 0 {
		return nil, f.missing(PathTraffic + "?link_id=" + linkID)
	}
	return out, nil
}

func (f *FixtureGateway) Upload(ctx context.Context, filename string, r io.Reader) error {
	return &UserActionError{Action: "upload", StatusCode: http.StatusMethodNotAllowed, Detail: "recording is read-only"}
}

func (f *FixtureGateway) Reset(ctx context.Context) error {
	return &UserActionError{Action: "reset", StatusCode: http.StatusMethodNotAllowed, Detail: "recording is read-only"}
}

func (f *FixtureGateway) Chat(ctx context.Context, req ChatRequest) (ChatMessage, error) {
	return ChatMessage{}, &UserActionError{Action: "chat", StatusCode: http.StatusServiceUnavailable, Detail: "assistant unavailable offline"}
}
