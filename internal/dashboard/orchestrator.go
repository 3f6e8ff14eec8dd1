package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fronthaul-noc/internal/api"
	"fronthaul-noc/internal/fronthaul"
)

var tracer = otel.Tracer("fronthaul-noc/dashboard")

// ErrSuperseded is returned by a refresh whose results were discarded
// because a newer refresh started after it.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// Orchestrator fetches backend entities and is the only writer of the
// shared snapshot.
type Orchestrator struct {
	gw     api.Gateway
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	snap      Snapshot
	issued    uint64
	observers []Observer

	traffic singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver registers an observer at construction time.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithSelectedLink sets the initial link selection. It falls back to the
// first link if the loaded topology does not contain it.
func WithSelectedLink(id string) Option {
	return func(o *Orchestrator) { o.snap.SelectedLink = id }
}

// New returns an orchestrator reading from gw.
func New(gw api.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{gw: gw, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe registers an observer.
func (o *Orchestrator) Subscribe(obs Observer) {
	o.mu.Lock()
	o.observers = append(o.observers, obs)
	o.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap.Clone()
}

// Gateway returns the data source.
func (o *Orchestrator) Gateway() api.Gateway { return o.gw }

// commitLocked stamps a write and returns the copy to publish.
func (o *Orchestrator) commitLocked() (Snapshot, []Observer) {
	o.snap.Version++
	o.snap.UpdatedAt = o.now()
	snapshotVersion.Set(float64(o.snap.Version))
	return o.snap.Clone(), append([]Observer(nil), o.observers...)
}

func publish(s Snapshot, obs []Observer) {
	for _, ob := range obs {
		ob.OnSnapshot(s.Clone())
	}
}

// write applies fn when gen is still the latest refresh and publishes the
// result. A zero gen skips the check.
func (o *Orchestrator) write(gen uint64, fn func(*Snapshot)) bool {
	o.mu.Lock()
	if gen != 0 && gen != o.issued {
		o.mu.Unlock()
		return false
	}
	fn(&o.snap)
	s, obs := o.commitLocked()
	o.mu.Unlock()
	publish(s, obs)
	return true
}

// FetchAll loads topology, correlation and capacity concurrently, then the
// traffic series. With force false it does nothing once data has loaded.
// Failures keep the previously loaded entities.
func (o *Orchestrator) FetchAll(ctx context.Context, force bool) error {
	o.mu.Lock()
	if o.snap.Initialized && !force {
		o.mu.Unlock()
		refreshTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	o.issued++
	gen := o.issued
	o.snap.Loading = true
	o.snap.Generation = gen
	s, obs := o.commitLocked()
	o.mu.Unlock()
	publish(s, obs)

	ctx, span := tracer.Start(ctx, "orchestrator.FetchAll")
	defer span.End()
	span.SetAttributes(attribute.Int64("generation", int64(gen)), attribute.Bool("force", force))

	o.logger.Info("[Orchestrator] refresh started", "generation", gen, "force", force)
	start := time.Now()

	var (
		topo *fronthaul.Topology
		corr *fronthaul.CorrelationMatrix
		caps []fronthaul.CapacityRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topo, err = o.gw.Topology(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		corr, err = o.gw.Correlation(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		caps, err = o.gw.CapacitySummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary fetch failed")
		return o.fail(gen, err)
	}

	if !o.write(gen, func(s *Snapshot) {
		s.Topology = topo
		s.Correlation = corr
		s.Capacity = caps
	}) {
		return o.superseded(gen)
	}

	all := o.fetchAllTraffic(ctx)

	o.mu.Lock()
	selected := o.snap.SelectedLink
	o.mu.Unlock()
	if selected == "" || !topo.Has(selected) {
		selected = topo.FirstLink()
	}
	var series []fronthaul.TrafficPoint
	seriesOK := false
	if selected != "" {
		pts, err := o.linkTraffic(ctx, selected)
		if err != nil {
			o.logger.Warn("[Orchestrator] traffic fetch failed", "link", selected, "err", err)
		} else {
			series, seriesOK = pts, true
		}
	}

	kept := ""
	if !o.write(gen, func(s *Snapshot) {
		if all != nil {
			s.AllTraffic = all
		}
		// A valid selection made while the series was in flight wins.
		if s.SelectedLink == selected || s.SelectedLink == "" || !topo.Has(s.SelectedLink) {
			if s.SelectedLink != selected {
				s.Traffic = nil
			}
			s.SelectedLink = selected
			if seriesOK {
				s.Traffic = series
			}
		} else if s.Traffic == nil {
			kept = s.SelectedLink
		}
		s.Initialized = true
		s.Err = nil
		s.Loading = false
	}) {
		return o.superseded(gen)
	}
	if kept != "" {
		// the selection skipped its own fetch while the console was loading
		if pts, err := o.linkTraffic(ctx, kept); err != nil {
			o.logger.Warn("[Orchestrator] traffic fetch failed", "link", kept, "err", err)
		} else {
			o.setTraffic(kept, pts)
		}
	}
	refreshTotal.WithLabelValues("ok").Inc()
	lastRefresh.SetToCurrentTime()
	o.logger.Info("[Orchestrator] refresh complete", "generation", gen,
		"links", len(topo.Links), "cells", topo.CellCount(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) fail(gen uint64, err error) error {
	if !o.write(gen, func(s *Snapshot) {
		s.Err = err
		s.Loading = false
	}) {
		return o.superseded(gen)
	}
	refreshTotal.WithLabelValues("error").Inc()
	o.logger.Error("[Orchestrator] refresh failed", "generation", gen, "err", err)
	return fmt.Errorf("refresh: %w", err)
}

func (o *Orchestrator) superseded(gen uint64) error {
	refreshTotal.WithLabelValues("superseded").Inc()
	o.logger.Debug("[Orchestrator] discarding stale refresh", "generation", gen)
	return ErrSuperseded
}

// fetchAllTraffic returns every link's series grouped by link id, or nil
// when the request fails.
func (o *Orchestrator) fetchAllTraffic(ctx context.Context) map[string][]fronthaul.TrafficPoint {
	pts, err := o.gw.LinkTraffic(ctx, "")
	if err != nil {
		o.logger.Warn("[Orchestrator] all-links traffic fetch failed", "err", err)
		return nil
	}
	return fronthaul.GroupByLink(pts)
}

// linkTraffic collapses concurrent fetches of the same link.
func (o *Orchestrator) linkTraffic(ctx context.Context, id string) ([]fronthaul.TrafficPoint, error) {
	v, err, _ := o.traffic.Do(id, func() (any, error) {
		return o.gw.LinkTraffic(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return append([]fronthaul.TrafficPoint(nil), v.([]fronthaul.TrafficPoint)...), nil
}

// SelectLink points the console at a link. Once data has loaded the link's
// series is fetched; an id missing from the topology selects the first link.
func (o *Orchestrator) SelectLink(ctx context.Context, id string) error {
	o.mu.Lock()
	if o.snap.Topology != nil && !o.snap.Topology.Has(id) {
		o.logger.Debug("[Orchestrator] unknown link, using first", "link", id)
		id = o.snap.Topology.FirstLink()
	}
	changed := o.snap.SelectedLink != id
	o.snap.SelectedLink = id
	if changed {
		o.snap.Traffic = nil
	}
	initialized := o.snap.Initialized
	s, obs := o.commitLocked()
	o.mu.Unlock()
	publish(s, obs)

	if !initialized || id == "" {
		return nil
	}
	pts, err := o.linkTraffic(ctx, id)
	if err != nil {
		o.logger.Warn("[Orchestrator] traffic fetch failed", "link", id, "err", err)
		return err
	}
	o.setTraffic(id, pts)
	return nil
}

// setTraffic stores pts as the selected series unless the selection has
// moved on.
func (o *Orchestrator) setTraffic(id string, pts []fronthaul.TrafficPoint) {
	o.mu.Lock()
	if o.snap.SelectedLink != id {
		o.mu.Unlock()
		return
	}
	o.snap.Traffic = pts
	s, obs := o.commitLocked()
	o.mu.Unlock()
	publish(s, obs)
}

// Upload sends a dataset to the backend and reloads everything. A rejected
// upload leaves the snapshot untouched.
func (o *Orchestrator) Upload(ctx context.Context, filename string, r io.Reader) error {
	if err := o.gw.Upload(ctx, filename, r); err != nil {
		o.logger.Warn("[Orchestrator] upload rejected", "file", filename, "err", err)
		return err
	}
	o.logger.Info("[Orchestrator] upload accepted", "file", filename)
	return o.FetchAll(ctx, true)
}

// Reset reverts the backend dataset and reloads everything.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.gw.Reset(ctx); err != nil {
		o.logger.Warn("[Orchestrator] reset rejected", "err", err)
		return err
	}
	o.logger.Info("[Orchestrator] dataset reset")
	return o.FetchAll(ctx, true)
}
