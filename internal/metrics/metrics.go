// Package metrics declares the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchDuration tracks end-to-end search latency by outcome
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showfinder_search_duration_seconds",
			Help:    "Duration of show searches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)

	// SearchCandidates tracks the stage-one candidate set size
	SearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "showfinder_search_candidates",
			Help:    "Number of candidates returned by stage one",
			Buckets: []float64{0, 1, 10, 25, 50, 100, 150, 200},
		},
	)

	// SearchesTotal counts searches by outcome (ok, empty, degraded, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showfinder_searches_total",
			Help: "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	// UpstreamDegraded counts fallbacks taken because a dependency failed
	UpstreamDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showfinder_upstream_degraded_total",
			Help: "Fallbacks taken because an upstream dependency failed",
		},
		[]string{"upstream"},
	)

	// RecommendationRefreshes counts refresh runs by result (stored, cleared, error)
	RecommendationRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showfinder_recommendation_refreshes_total",
			Help: "Recommendation refresh runs by result",
		},
		[]string{"result"},
	)

	// AuditFailures counts audit records that could not be written, by sink
	AuditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showfinder_audit_failures_total",
			Help: "Audit records that failed to be written",
		},
		[]string{"sink"},
	)
)
