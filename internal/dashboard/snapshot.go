// Package dashboard owns the console's shared state: one versioned snapshot
// of backend entities, written only by the Orchestrator and handed to
// renderers and observers as deep copies.
package dashboard

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"fronthaul-noc/internal/fronthaul"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is a read-only view of the orchestrator state.
type Snapshot struct {
	Topology     *fronthaul.Topology                 `json:"topology,omitempty"`
	Correlation  *fronthaul.CorrelationMatrix        `json:"correlation,omitempty"`
	Capacity     []fronthaul.CapacityRecord          `json:"capacity,omitempty"`
	Traffic      []fronthaul.TrafficPoint            `json:"traffic,omitempty"`
	AllTraffic   map[string][]fronthaul.TrafficPoint `json:"all_traffic,omitempty"`
	SelectedLink string                              `json:"selected_link"`
	Loading      bool                                `json:"loading"`
	Err          error                               `json:"-"`
	Initialized  bool                                `json:"initialized"`
	// Version counts writes; Generation is the token of the latest refresh.
	Version    uint64    `json:"version"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON adds the error text.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(s)}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return jsonAPI.Marshal(out)
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Topology = s.Topology.Clone()
	out.Correlation = s.Correlation.Clone()
	if s.Capacity != nil {
		out.Capacity = append([]fronthaul.CapacityRecord(nil), s.Capacity...)
	}
	if s.Traffic != nil {
		out.Traffic = append([]fronthaul.TrafficPoint(nil), s.Traffic...)
	}
	if s.AllTraffic != nil {
		out.AllTraffic = make(map[string][]fronthaul.TrafficPoint, len(s.AllTraffic))
		for k, v := range s.AllTraffic {
			out.AllTraffic[k] = append([]fronthaul.TrafficPoint(nil), v...)
		}
	}
	return out
}

// Settled reports whether the snapshot holds loaded data and no refresh is
// running.
func (s Snapshot) Settled() bool {
	return s.Initialized && !s.Loading
}

// Observer receives a copy of the snapshot after every write. Observers may
// be called from several goroutines and out of order; Version orders them.
type Observer interface {
	OnSnapshot(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }
