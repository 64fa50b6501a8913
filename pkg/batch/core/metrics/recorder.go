// Package metrics defines the instrumentation ports of the batch engine.
package metrics

import (
	"context"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// MetricRecorder receives job, step and chunk lifecycle events. The engine
// calls it unconditionally; implementations decide what to export.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, jobExecution *model.JobExecution)
	RecordJobEnd(ctx context.Context, jobExecution *model.JobExecution)
	RecordStepStart(ctx context.Context, stepExecution *model.StepExecution)
	RecordStepEnd(ctx context.Context, stepExecution *model.StepExecution)
	RecordItemRead(ctx context.Context, count int)
	RecordItemProcessed(ctx context.Context, count int)
	RecordItemFiltered(ctx context.Context, count int)
	RecordItemWritten(ctx context.Context, count int)
	RecordChunkCommit(ctx context.Context)
	RecordChunkRollback(ctx context.Context)
}

// Tracer creates spans around job and step execution. The returned
// function ends the span.
type Tracer interface {
	StartJobSpan(ctx context.Context, jobName string) (context.Context, func())
	StartStepSpan(ctx context.Context, stepName string) (context.Context, func())
	RecordError(ctx context.Context, err error)
}
