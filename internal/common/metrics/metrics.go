// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_evaluations_total",
			Help: "Total number of eligibility evaluations by scheme and final status",
		},
		[]string{"scheme", "status"},
	)

	ConflictsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_conflicts_resolved_total",
			Help: "Total number of rule/model conflicts resolved by direction",
		},
		[]string{"scheme", "direction"},
	)

	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "eligibility_evaluation_duration_seconds",
			Help: "Duration of a single candidate evaluation in seconds",
		},
		[]string{"scheme"},
	)

	ModelInferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "eligibility_model_inference_seconds",
			Help: "Duration of scorer inference in seconds",
		},
		[]string{"scheme"},
	)

	RuleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_rule_cache_lookups_total",
			Help: "Rule cache lookups by outcome (hit, miss, bypass)",
		},
		[]string{"outcome"},
	)

	RankingBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eligibility_ranking_batch_size",
			Help:    "Number of rankable decisions per ranking pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)
