// Package metrics provides Prometheus metrics for researchtldr.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "researchtldr"

var (
	// PapersTotal counts per-paper batch outcomes (updated, skipped, failed).
	PapersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_total",
			Help:      "Papers handled by summarization batches, by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration measures each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// StageErrors counts pipeline failures by stage.
	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline failures by stage",
		},
		[]string{"stage"},
	)

	// SchemaInvalid counts summaries persisted despite shape problems.
	SchemaInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_schema_invalid_total",
			Help:      "Summaries stored although the model output failed shape validation",
		},
	)

	// BatchDuration measures whole batches.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of summarization batches in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// PapersIngested counts papers stored from the arXiv feed.
	PapersIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_ingested_total",
			Help:      "New papers stored from the arXiv feed",
		},
	)

	// HTTPRequests counts API requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordStage records one stage run.
func RecordStage(stage string, seconds float64, failed bool) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
	if failed {
		StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordOutcome records one paper outcome.
func RecordOutcome(outcome string) {
	PapersTotal.WithLabelValues(outcome).Inc()
}
