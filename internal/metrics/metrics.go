// Package metrics exposes prometheus instrumentation for the pipeline
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline run outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// PipelineRuns counts pipeline executions by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_pipeline_runs_total",
		Help: "Pipeline executions by outcome.",
	}, []string{"outcome"})

	// StepFailures counts step failures by step name.
	StepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_step_failures_total",
		Help: "Pipeline step failures by step name.",
	}, []string{"step"})

	// TaskFailures counts background task failures by task name.
	TaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_background_task_failures_total",
		Help: "Background task failures by task name.",
	}, []string{"task"})

	// PipelineDuration observes pipeline wall time by outcome.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_pipeline_duration_seconds",
		Help:    "Pipeline execution duration by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
