package dashboard

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/fronthaul"
)

func TestRecorderWritesSettledSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	rec, err := NewRecorder(path, nil)
	require.NoError(t, err)

	gw := newFakeGateway()
	gw.corr.Values[0][1], gw.corr.Values[1][0] = math.NaN(), math.NaN()
	o := New(gw, WithObserver(rec))
	ctx := context.Background()
	require.NoError(t, o.FetchAll(ctx, false))
	require.NoError(t, o.SelectLink(ctx, "Link_B"))
	require.NoError(t, rec.Close())

	var got []api.Recording
	require.NoError(t, api.ReplayLogFile(ctx, path, func(r api.Recording) error {
		got = append(got, r)
		return nil
	}, 0))
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Version, got[i-1].Version)
		assert.NotEqual(t, got[i].ID, got[i-1].ID)
	}
	last := got[len(got)-1]
	assert.Equal(t, []string{"Link_A", "Link_B", "Link_C"}, last.Topology.LinkIDs())
	assert.True(t, math.IsNaN(last.Correlation.At(0, 1)))
	assert.Len(t, last.Traffic, 3)

	fx, err := api.OpenFixture(path)
	require.NoError(t, err)
	replayed := New(fx)
	require.NoError(t, replayed.FetchAll(ctx, false))
	s := replayed.Snapshot()
	assert.True(t, s.Initialized)
	assert.Len(t, s.AllTraffic["Link_A"], 2)
}

func TestRecorderSkipsOldAndUnsettled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	rec, err := NewRecorder(path, nil)
	require.NoError(t, err)

	topo := &fronthaul.Topology{Links: []fronthaul.Link{{ID: "L", Cells: []string{"1"}}}}
	rec.OnSnapshot(Snapshot{Topology: topo, Initialized: true, Version: 5, UpdatedAt: time.Now()})
	rec.OnSnapshot(Snapshot{Topology: topo, Initialized: true, Version: 4})
	rec.OnSnapshot(Snapshot{Topology: topo, Initialized: true, Loading: true, Version: 6})
	rec.OnSnapshot(Snapshot{Topology: topo, Version: 7})
	require.NoError(t, rec.Close())

	n := 0
	require.NoError(t, api.ReplayLogFile(context.Background(), path, func(r api.Recording) error {
		n++
		assert.Equal(t, uint64(5), r.Version)
		return nil
	}, 0))
	assert.Equal(t, 1, n)
}

func TestToRecordingTrafficOrder(t *testing.T) {
	s := Snapshot{
		Topology: &fronthaul.Topology{Links: []fronthaul.Link{{ID: "B"}, {ID: "A"}}},
		AllTraffic: map[string][]fronthaul.TrafficPoint{
			"A": {{LinkID: "A"}},
			"B": {{LinkID: "B"}},
			"Z": {{LinkID: "Z"}},
		},
		SelectedLink: "B",
		Traffic:      []fronthaul.TrafficPoint{{LinkID: "B"}},
	}
	r := ToRecording(s)
	var ids []string
	for _, p := range r.Traffic {
		ids = append(ids, p.LinkID)
	}
	assert.Equal(t, []string{"B", "A", "Z"}, ids)
}
