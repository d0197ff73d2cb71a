// Package metrics records one observation per answered request: an
// append-only SQLite row for offline analysis plus Prometheus series for
// live dashboards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akademik_requests_total",
			Help: "Total answered requests",
		},
		[]string{"pipeline", "validation", "status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "akademik_stage_duration_seconds",
			Help:    "Per-stage processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	llmFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "akademik_llm_fallbacks_total",
			Help: "Total requests answered by a backup model",
		},
	)
)
