// Package metrics holds the Prometheus collectors the service exports on
// the metrics listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_recommendations_total",
			Help: "Recommendations served, by fairness mode",
		},
		[]string{"mode"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consensus_recommendation_duration_seconds",
			Help:    "Time spent scoring and selecting a restaurant for a group",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidatesEvaluated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consensus_candidates_evaluated",
			Help:    "Candidates scored per recommendation after the pool cap",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20, 30},
		},
	)

	GroupSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consensus_group_size",
			Help:    "Members per recommendation request",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 20},
		},
	)

	ProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_profile_updates_total",
			Help: "Profile updates applied, by source",
		},
		[]string{"source"},
	)

	IngestBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_ingest_batches_total",
			Help: "Extracted-preference batches consumed, by outcome",
		},
		[]string{"outcome"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_profile_cache_requests_total",
			Help: "Profile cache lookups, by result",
		},
		[]string{"result"},
	)
)

// Sources for ProfileUpdates.
const (
	SourceAPI    = "api"
	SourceIngest = "ingest"
)

// Outcomes for IngestBatches.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Results for CacheRequests.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)
