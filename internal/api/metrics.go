package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fronthaul_noc",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Backend requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fronthaul_noc",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Backend request latency by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func observe(endpoint, outcome string, start time.Time) {
	requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
