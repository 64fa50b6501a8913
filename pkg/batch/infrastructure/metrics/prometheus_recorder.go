// Package metrics provides the Prometheus and OpenTelemetry
// implementations of the instrumentation ports.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	coremetrics "github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// PrometheusRecorder exports job, step and chunk metrics through a
// dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobsStarted    *prometheus.CounterVec
	jobsFinished   *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	stepsStarted   *prometheus.CounterVec
	stepsFinished  *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	itemsRead      *prometheus.CounterVec
	itemsProcessed *prometheus.CounterVec
	itemsFiltered  *prometheus.CounterVec
	itemsWritten   *prometheus.CounterVec
	chunkCommits   *prometheus.CounterVec
	chunkRollbacks *prometheus.CounterVec
}

var _ coremetrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with its own registry,
// including the standard Go and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &PrometheusRecorder{
		registry: registry,
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_jobs_started_total",
			Help: "Number of job executions started.",
		}, []string{"job_name"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_jobs_finished_total",
			Help: "Number of job executions finished, by status.",
		}, []string{"job_name", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Wall-clock duration of job executions.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"job_name"}),
		stepsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_steps_started_total",
			Help: "Number of step executions started.",
		}, []string{"step_name"}),
		stepsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_steps_finished_total",
			Help: "Number of step executions finished, by status.",
		}, []string{"step_name", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Wall-clock duration of step executions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"step_name"}),
		itemsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_read_total",
			Help: "Number of items read.",
		}, []string{"step_name"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_processed_total",
			Help: "Number of items processed.",
		}, []string{"step_name"}),
		itemsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_filtered_total",
			Help: "Number of items filtered out by processors.",
		}, []string{"step_name"}),
		itemsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_written_total",
			Help: "Number of items written.",
		}, []string{"step_name"}),
		chunkCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_commits_total",
			Help: "Number of committed chunk transactions.",
		}, []string{"step_name"}),
		chunkRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_rollbacks_total",
			Help: "Number of rolled-back chunk transactions.",
		}, []string{"step_name"}),
	}

	registry.MustRegister(
		r.jobsStarted, r.jobsFinished, r.jobDuration,
		r.stepsStarted, r.stepsFinished, r.stepDuration,
		r.itemsRead, r.itemsProcessed, r.itemsFiltered, r.itemsWritten,
		r.chunkCommits, r.chunkRollbacks,
	)
	return r
}

// Handler returns the scrape handler for the recorder's registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, je *model.JobExecution) {
	r.jobsStarted.WithLabelValues(je.JobName).Inc()
}

func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, je *model.JobExecution) {
	r.jobsFinished.WithLabelValues(je.JobName, string(je.Status)).Inc()
	if !je.EndTime.IsZero() && !je.StartTime.IsZero() {
		r.jobDuration.WithLabelValues(je.JobName).Observe(je.EndTime.Sub(je.StartTime).Seconds())
	}
}

func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, se *model.StepExecution) {
	r.stepsStarted.WithLabelValues(se.StepName).Inc()
}

func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, se *model.StepExecution) {
	r.stepsFinished.WithLabelValues(se.StepName, string(se.Status)).Inc()
	if !se.EndTime.IsZero() && !se.StartTime.IsZero() {
		r.stepDuration.WithLabelValues(se.StepName).Observe(se.EndTime.Sub(se.StartTime).Seconds())
	}
}

func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, count int) {
	r.itemsRead.WithLabelValues(stepNameFromContext(ctx)).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemProcessed(ctx context.Context, count int) {
	r.itemsProcessed.WithLabelValues(stepNameFromContext(ctx)).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemFiltered(ctx context.Context, count int) {
	r.itemsFiltered.WithLabelValues(stepNameFromContext(ctx)).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemWritten(ctx context.Context, count int) {
	r.itemsWritten.WithLabelValues(stepNameFromContext(ctx)).Add(float64(count))
}

func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context) {
	r.chunkCommits.WithLabelValues(stepNameFromContext(ctx)).Inc()
}

func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context) {
	r.chunkRollbacks.WithLabelValues(stepNameFromContext(ctx)).Inc()
}

func stepNameFromContext(ctx context.Context) string {
	if se, ok := port.StepExecutionFromContext(ctx); ok {
		return se.StepName
	}
	return "unknown"
}
