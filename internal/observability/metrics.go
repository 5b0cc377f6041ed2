package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// JobsProcessing counts in-flight jobs by queue.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"queue"},
	)
	// JobsCompletedTotal counts completed jobs by queue.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"queue"},
	)
	// JobsFailedTotal counts failed jobs by queue.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"queue"},
	)

	// AIRequestsTotal counts LLM requests by operation and outcome.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_ai_requests_total",
			Help: "Total number of AI requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	// AIRequestDuration observes LLM request durations by operation.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// StageFailuresTotal counts per-stage failures, fatal or skipped.
	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of stage failures by stage and severity",
		},
		[]string{"stage", "severity"},
	)

	// FinalScoreHistogram observes the distribution of composite scores.
	FinalScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_final_score",
			Help:    "Distribution of composite final scores [0,1]",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// EmbedCacheEvents counts embedding cache hits and misses.
	EmbedCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_embed_cache_events_total",
			Help: "Embedding cache hits and misses",
		},
		[]string{"event"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors; safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(JobsProcessing)
		prometheus.MustRegister(JobsCompletedTotal)
		prometheus.MustRegister(JobsFailedTotal)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(StageFailuresTotal)
		prometheus.MustRegister(FinalScoreHistogram)
		prometheus.MustRegister(EmbedCacheEvents)
	})
}

// StartProcessingJob marks a job as in-flight on its queue.
func StartProcessingJob(queue string) { JobsProcessing.WithLabelValues(queue).Inc() }

// CompleteJob marks a job completed on its queue.
func CompleteJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsCompletedTotal.WithLabelValues(queue).Inc()
}

// FailJob marks a job failed on its queue.
func FailJob(queue string) {
	JobsProcessing.WithLabelValues(queue).Dec()
	JobsFailedTotal.WithLabelValues(queue).Inc()
}

// ObserveFinalScore records a composite score sample.
func ObserveFinalScore(score float64) { FinalScoreHistogram.Observe(score) }
