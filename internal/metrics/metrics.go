package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ItemsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_items_ingested_total",
			Help: "Items written by the ingestion stage",
		},
		[]string{"source"},
	)

	ItemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_items_skipped_total",
			Help: "Feed entries skipped because their hash was already stored",
		},
		[]string{"source"},
	)

	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_source_errors_total",
			Help: "Feed fetch or parse failures",
		},
		[]string{"source"},
	)

	ClusterAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_cluster_assignments_total",
			Help: "Items assigned to stories, by outcome (created, attached, failed)",
		},
		[]string{"outcome"},
	)

	SummariesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_summaries_created_total",
			Help: "Story summaries persisted",
		},
		[]string{"persona"},
	)

	ClassificationFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aidaily_classification_fallbacks_total",
			Help: "Stories classified with the default persona/category",
		},
	)

	MalformedResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_malformed_responses_total",
			Help: "Generative responses rejected by schema validation",
		},
		[]string{"persona"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_llm_requests_total",
			Help: "Generative service requests",
		},
		[]string{"provider", "status"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aidaily_llm_request_duration_seconds",
			Help:    "Generative service request latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"provider"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aidaily_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"stage", "status"},
	)

	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidaily_pipeline_runs_total",
			Help: "Pipeline runs, by outcome (ok, partial, skipped)",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			ItemsIngested,
			ItemsSkipped,
			SourceErrors,
			ClusterAssignments,
			SummariesCreated,
			ClassificationFallbacks,
			MalformedResponses,
			LLMRequests,
			LLMDuration,
			StageDuration,
			PipelineRuns,
		)
	})
}
