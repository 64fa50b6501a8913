// Package port defines the application-facing interfaces of the batch
// framework: jobs, steps, tasklets and the item-oriented reader, processor
// and writer contracts of chunk steps.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.Read when the input is exhausted.
var ErrNoMoreItems = errors.New("no more items")

// Job is a runnable batch job.
type Job interface {
	// JobName returns the registered name of the job.
	JobName() string
	// Run executes the job against the given JobExecution.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// ValidateParameters checks the job parameters before any execution
	// metadata is created.
	ValidateParameters(params model.JobParameters) error
	// GetFlow returns the job's flow definition.
	GetFlow() *model.FlowDefinition
}

// Step is one unit of a job flow.
type Step interface {
	// StepName returns the step's name within the flow.
	StepName() string
	// Execute runs the step, updating stepExecution in place.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
}

// Tasklet is a single operation executed inside one transaction by a
// tasklet step.
type Tasklet interface {
	// Execute performs the operation and returns its exit status.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
	// Close releases resources held by the tasklet.
	Close(ctx context.Context) error
}

// executionContextCarrier is implemented by stateful components that
// persist restart positions in the step's ExecutionContext.
type executionContextCarrier interface {
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemReader produces items one at a time. Read returns ErrNoMoreItems
// when the input is exhausted. Open restores the reader's position from
// the ExecutionContext captured at the last checkpoint.
type ItemReader[O any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
	executionContextCarrier
}

// ItemProcessor transforms one item. Returning a nil item (with a nil
// error) filters the input item out of the chunk.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter persists one chunk of items inside the chunk transaction.
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write persists items within transaction txn. Writers that do not
	// target the chunk's database may ignore txn.
	Write(ctx context.Context, txn tx.Tx, items []I) error
	Close(ctx context.Context) error
	executionContextCarrier
}

// JobListener observes job lifecycle events.
type JobListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// StepListener observes step lifecycle events.
type StepListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

type stepExecutionContextKey struct{}

// ContextWithStepExecution stores the running StepExecution in ctx so that
// instrumentation can label events without widening call signatures.
func ContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, stepExecutionContextKey{}, se)
}

// StepExecutionFromContext returns the StepExecution stored in ctx, if any.
func StepExecutionFromContext(ctx context.Context) (*model.StepExecution, bool) {
	se, ok := ctx.Value(stepExecutionContextKey{}).(*model.StepExecution)
	return se, ok
}
