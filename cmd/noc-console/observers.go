package main

import (
	"log/slog"

	"fronthaul-noc/internal/config"
	"fronthaul-noc/internal/dashboard"
	"fronthaul-noc/internal/sink"
)

// newObservers sets up the snapshot recorder and the Greptime sink from
// config. It returns the observers and a cleanup function to close any
// resources.
func newObservers(cfg *config.Config, logger *slog.Logger) ([]dashboard.Observer, func(), error) {
	var (
		obs     []dashboard.Observer
		closers []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("[Main] close failed", "err", err)
			}
		}
	}

	if cfg.Greptime.Endpoint != "" {
		gs, err := sink.NewGreptimeSink(cfg.Greptime.Endpoint, cfg.Greptime.Database, cfg.Greptime.Table)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("[Main] traffic history enabled", "endpoint", cfg.Greptime.Endpoint, "table", cfg.Greptime.Table)
		obs = append(obs, gs)
		closers = append(closers, gs.Close)
	}

	if cfg.Recorder.Path != "" {
		rec, err := dashboard.NewRecorder(cfg.Recorder.Path, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("[Main] recording snapshots", "path", cfg.Recorder.Path)
		obs = append(obs, rec)
		closers = append(closers, rec.Close)
	}
	return obs, cleanup, nil
}

// newOrchestrator builds the orchestrator with the configured observers.
func newOrchestrator(cfg *config.Config, logger *slog.Logger, link string) (*dashboard.Orchestrator, func(), error) {
	gw, err := newGateway(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	obs, cleanup, err := newObservers(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []dashboard.Option{dashboard.WithLogger(logger)}
	if link != "" {
		opts = append(opts, dashboard.WithSelectedLink(link))
	}
	for _, o := range obs {
		opts = append(opts, dashboard.WithObserver(o))
	}
	return dashboard.New(gw, opts...), cleanup, nil
}
