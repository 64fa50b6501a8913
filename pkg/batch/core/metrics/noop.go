package metrics

import (
	"context"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards all events.
type NoOpMetricRecorder struct{}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NewNoOpMetricRecorder returns a recorder that discards all events.
func NewNoOpMetricRecorder() *NoOpMetricRecorder { return &NoOpMetricRecorder{} }

func (r *NoOpMetricRecorder) RecordJobStart(context.Context, *model.JobExecution)    {}
func (r *NoOpMetricRecorder) RecordJobEnd(context.Context, *model.JobExecution)      {}
func (r *NoOpMetricRecorder) RecordStepStart(context.Context, *model.StepExecution)  {}
func (r *NoOpMetricRecorder) RecordStepEnd(context.Context, *model.StepExecution)    {}
func (r *NoOpMetricRecorder) RecordItemRead(context.Context, int)                    {}
func (r *NoOpMetricRecorder) RecordItemProcessed(context.Context, int)               {}
func (r *NoOpMetricRecorder) RecordItemFiltered(context.Context, int)                {}
func (r *NoOpMetricRecorder) RecordItemWritten(context.Context, int)                 {}
func (r *NoOpMetricRecorder) RecordChunkCommit(context.Context)                      {}
func (r *NoOpMetricRecorder) RecordChunkRollback(context.Context)                    {}

// NoOpTracer produces no spans.
type NoOpTracer struct{}

var _ Tracer = (*NoOpTracer)(nil)

// NewNoOpTracer returns a tracer that produces no spans.
func NewNoOpTracer() *NoOpTracer { return &NoOpTracer{} }

func (t *NoOpTracer) StartJobSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStepSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, error) {}
