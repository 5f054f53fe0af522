// Package metrics exposes prometheus instrumentation for the story pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beanstalk_llm_request_duration_seconds",
			Help:    "Model gateway request duration in seconds by call site",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"call", "status"},
	)

	rateLimiterWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beanstalk_rate_limiter_wait_seconds",
			Help:    "Time spent waiting on the gateway rate limiter",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
	)

	fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beanstalk_fallbacks_total",
			Help: "Model replies replaced by a fallback value, by schema",
		},
		[]string{"schema"},
	)

	evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beanstalk_evaluations_total",
			Help: "Story evaluations by outcome (passed, failed, unsafe, fallback)",
		},
		[]string{"outcome"},
	)

	storyWords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beanstalk_story_words",
			Help:    "Word count of generated story bodies",
			Buckets: prometheus.LinearBuckets(100, 150, 10),
		},
	)

	pipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beanstalk_pipeline_runs_total",
			Help: "Pipeline runs by outcome (completed, rejected, unsafe)",
		},
		[]string{"outcome"},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordLLMRequest records a gateway request duration for a call site.
func RecordLLMRequest(call string, duration time.Duration, success bool) {
	llmRequestDuration.WithLabelValues(call, status(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records time spent blocked on the rate limiter.
func RecordRateLimiterWait(duration time.Duration) {
	rateLimiterWait.Observe(duration.Seconds())
}

// IncrementFallback counts a reply that failed validation for schema.
func IncrementFallback(schema string) {
	fallbacks.WithLabelValues(schema).Inc()
}

// IncrementEvaluation counts an evaluation outcome.
func IncrementEvaluation(outcome string) {
	evaluations.WithLabelValues(outcome).Inc()
}

// ObserveStoryWords records the word count of a generated story.
func ObserveStoryWords(words int) {
	storyWords.Observe(float64(words))
}

// IncrementPipelineRun counts a finished pipeline run.
func IncrementPipelineRun(outcome string) {
	pipelineRuns.WithLabelValues(outcome).Inc()
}
