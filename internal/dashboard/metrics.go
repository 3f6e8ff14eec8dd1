package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fronthaul_noc",
		Subsystem: "orchestrator",
		Name:      "refresh_total",
		Help:      "Full refreshes by outcome (ok, error, superseded, skipped).",
	}, []string{"outcome"})

	snapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fronthaul_noc",
		Subsystem: "orchestrator",
		Name:      "snapshot_version",
		Help:      "Version of the latest snapshot write.",
	})

	lastRefresh = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fronthaul_noc",
		Subsystem: "orchestrator",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful refresh.",
	})
)
