// Package metrics exposes Prometheus instrumentation for the query path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchRequests counts search requests by mode and transport.
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediacircle",
		Name:      "search_requests_total",
		Help:      "Search requests by mode and transport.",
	}, []string{"mode", "transport"})

	// SourceCompletions counts per-source terminal states.
	SourceCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediacircle",
		Name:      "source_completions_total",
		Help:      "Source task completions by source and terminal state.",
	}, []string{"source", "state"})

	// SourceLatency tracks per-source completion latency.
	SourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediacircle",
		Name:      "source_latency_seconds",
		Help:      "Source task latency by source.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"source"})

	// ExactMatches counts exact matches by winning source.
	ExactMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediacircle",
		Name:      "exact_matches_total",
		Help:      "Exact matches by winning source.",
	}, []string{"source"})
)
