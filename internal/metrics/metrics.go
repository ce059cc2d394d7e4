// Package metrics exposes Prometheus instrumentation for the generation
// pipeline, the LLM adapters, and the vector store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codewiki",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each wiki generation stage.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage", "outcome"})

	// StageRetries counts stage-level retries.
	StageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codewiki",
		Subsystem: "pipeline",
		Name:      "stage_retries_total",
		Help:      "Stage-level retry attempts.",
	}, []string{"stage"})

	// DocumentsCompleted counts terminal document states.
	DocumentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codewiki",
		Subsystem: "pipeline",
		Name:      "documents_total",
		Help:      "Documents reaching a terminal status.",
	}, []string{"status"})

	// LLMTokens counts tokens reported by providers.
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codewiki",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Token usage reported by LLM providers.",
	}, []string{"provider"})

	// LLMRetries counts adapter-level retries.
	LLMRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codewiki",
		Subsystem: "llm",
		Name:      "retries_total",
		Help:      "Adapter-level LLM retries.",
	}, []string{"provider"})

	// VectorOps counts vector store operations by kind and outcome.
	VectorOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codewiki",
		Subsystem: "vector",
		Name:      "operations_total",
		Help:      "Vector store operations.",
	}, []string{"op", "outcome"})
)

// Serve starts the metrics endpoint on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
