package dashboard

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/fronthaul"
)

// Recorder appends settled snapshots to a JSONL file that the replay
// command and api.FixtureGateway read back.
type Recorder struct {
	mu     sync.Mutex
	file   io.WriteCloser
	enc    *jsoniter.Encoder
	last   uint64
	logger *slog.Logger
}

// NewRecorder opens path for appending.
func NewRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return newRecorder(f, logger), nil
}

func newRecorder(w io.WriteCloser, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{file: w, enc: jsonAPI.NewEncoder(w), logger: logger}
}

// OnSnapshot records s once it is settled. Older versions are dropped.
func (r *Recorder) OnSnapshot(s Snapshot) {
	if !s.Settled() {
		return
	}
	if err := r.Write(s); err != nil {
		r.logger.Error("[Recorder] write failed", "version", s.Version, "err", err)
	}
}

// Write appends one recording for s.
func (r *Recorder) Write(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Version <= r.last {
		return nil
	}
	if err := r.enc.Encode(ToRecording(s)); err != nil {
		return err
	}
	r.last = s.Version
	return nil
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// ToRecording flattens a snapshot. Traffic lists every link's series in
// topology order, then links unknown to the topology by id.
func ToRecording(s Snapshot) api.Recording {
	rec := api.Recording{
		ID:          uuid.NewString(),
		RecordedAt:  s.UpdatedAt,
		Version:     s.Version,
		Topology:    s.Topology.Clone(),
		Correlation: s.Correlation.Clone(),
		Capacity:    append([]fronthaul.CapacityRecord(nil), s.Capacity...),
	}
	seen := map[string]bool{}
	for _, id := range s.Topology.LinkIDs() {
		seen[id] = true
		rec.Traffic = append(rec.Traffic, s.AllTraffic[id]...)
	}
	var rest []string
	for id := range s.AllTraffic {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		seen[id] = true
		rec.Traffic = append(rec.Traffic, s.AllTraffic[id]...)
	}
	if len(s.AllTraffic[s.SelectedLink]) == 0 {
		rec.Traffic = append(rec.Traffic, s.Traffic...)
	}
	return rec
}
