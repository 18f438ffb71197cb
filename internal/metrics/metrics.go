// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lessonmedia"

const (
	kindLabel      = "kind"
	statusLabel    = "status"
	errorKindLabel = "error_kind"
	stageLabel     = "stage"
	toolLabel      = "tool"
	operationLabel = "operation"
	resultLabel    = "result"
	stateLabel     = "state"
)

// Recorder owns a private registry. A nil *Recorder discards every call.
type Recorder struct {
	registry *prometheus.Registry

	jobsStarted   *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobFailures   *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	toolRuns      *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	polls         *prometheus.CounterVec
	activeJobs    prometheus.Gauge
}

// New creates a Recorder with Go and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "number of accepted job runs",
		}, []string{kindLabel}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "number of job runs reaching a terminal status",
		}, []string{kindLabel, statusLabel}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "failed job runs partitioned by error class",
		}, []string{kindLabel, errorKindLabel}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "wall time from processing to terminal status",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{kindLabel, statusLabel}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "time spent in one pipeline stage",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{kindLabel, stageLabel, resultLabel}),
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "media tool invocations",
		}, []string{toolLabel, operationLabel, resultLabel}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "media tool invocation latency",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{toolLabel, operationLabel}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_polls_total",
			Help:      "long-running operation polls by observed state",
		}, []string{stateLabel}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "job runs currently holding a guard",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.jobsStarted, r.jobsFinished, r.jobFailures, r.jobDuration,
		r.stageDuration, r.toolRuns, r.toolDuration, r.polls, r.activeJobs,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// JobStarted records an accepted run.
func (r *Recorder) JobStarted(kind string) {
	if r == nil {
		return
	}
	r.jobsStarted.WithLabelValues(kind).Inc()
	r.activeJobs.Inc()
}

// JobFinished records a terminal status. errorKind is empty for ready runs.
func (r *Recorder) JobFinished(kind, status, errorKind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.activeJobs.Dec()
	r.jobsFinished.WithLabelValues(kind, status).Inc()
	r.jobDuration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
	if errorKind != "" {
		r.jobFailures.WithLabelValues(kind, errorKind).Inc()
	}
}

// StageFinished records one stage. Per-segment stage names share a label.
func (r *Recorder) StageFinished(kind, stage string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(kind, StageClass(stage), result(err)).Observe(elapsed.Seconds())
}

// ToolRun records a media tool invocation.
func (r *Recorder) ToolRun(tool, operation string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.toolRuns.WithLabelValues(tool, operation, result(err)).Inc()
	r.toolDuration.WithLabelValues(tool, operation).Observe(elapsed.Seconds())
}

// OperationPolled records one poll of a long-running operation.
func (r *Recorder) OperationPolled(done bool) {
	if r == nil {
		return
	}
	state := "pending"
	if done {
		state = "done"
	}
	r.polls.WithLabelValues(state).Inc()
}

// StageClass strips a trailing segment index, so scene-video-3 becomes
// scene-video.
func StageClass(stage string) string {
	idx := strings.LastIndexByte(stage, '-')
	if idx <= 0 || idx == len(stage)-1 {
		return stage
	}
	for _, r := range stage[idx+1:] {
		if !unicode.IsDigit(r) {
			return stage
		}
	}
	return stage[:idx]
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
