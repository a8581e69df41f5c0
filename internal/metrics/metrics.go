// Package metrics registers the process-wide Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts vendor API requests by region, method class and
	// response status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riftwatch_requests_total",
		Help: "Vendor API requests issued, by region, rate-limit class and HTTP status.",
	}, []string{"region", "method", "status"})

	// PermitWaitSeconds observes how long Permit blocked before admitting a
	// request.
	PermitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riftwatch_permit_wait_seconds",
		Help:    "Time spent waiting for quota headroom per admitted request.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// PipelineStageTotal counts match pipeline stage outcomes.
	PipelineStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riftwatch_pipeline_stage_total",
		Help: "Match pipeline stage outcomes.",
	}, []string{"stage", "outcome"})
)
