package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_pipeline_duration_seconds",
			Help:    "End-to-end duration of the search and facet pipelines",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_stage_duration_seconds",
			Help:    "Duration of individual search pipeline stages",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	staleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_stale_responses_total",
			Help: "Responses served from stale cache entries because the engine was failing",
		},
	)

	suggestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_suggestion_runs_total",
			Help: "Zero-result searches that triggered the suggestion pipeline",
		},
		[]string{"outcome"},
	)
)

// Pipeline outcome labels.
const (
	outcomeHit   = "cache_hit"
	outcomeMiss  = "cache_miss"
	outcomeStale = "stale"
	outcomeError = "error"
)
