// Package tasklet implements the single-operation step: one Execute call
// inside one transaction.
package tasklet

import (
	"context"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "tasklet_step"

// TaskletStep runs a Tasklet inside exactly one transaction. The tasklet's
// work either commits as a whole or rolls back as a whole.
type TaskletStep struct {
	name      string
	tasklet   port.Tasklet
	repo      repository.JobRepository
	txManager coretx.TransactionManager
	listeners []port.StepListener
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

var _ port.Step = (*TaskletStep)(nil)

// NewTaskletStep assembles a tasklet step.
func NewTaskletStep(
	name string,
	tasklet port.Tasklet,
	repo repository.JobRepository,
	txManager coretx.TransactionManager,
	listeners []port.StepListener,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *TaskletStep {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &TaskletStep{
		name:      name,
		tasklet:   tasklet,
		repo:      repo,
		txManager: txManager,
		listeners: listeners,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// StepName returns the step's name within the flow.
func (s *TaskletStep) StepName() string { return s.name }

// Execute runs the tasklet in one transaction.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	ctx, endSpan := s.tracer.StartStepSpan(ctx, s.name)
	defer endSpan()
	ctx = port.ContextWithStepExecution(ctx, stepExecution)

	s.recorder.RecordStepStart(ctx, stepExecution)
	defer s.recorder.RecordStepEnd(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(moduleName, "failed to persist step start", err, false, false)
	}

	for _, l := range s.listeners {
		l.BeforeStep(ctx, stepExecution)
	}

	err := s.runInTransaction(ctx, stepExecution)

	if closeErr := s.tasklet.Close(ctx); closeErr != nil && err == nil {
		err = exception.NewBatchError(moduleName, "failed to close tasklet", closeErr, false, false)
	}

	if err != nil {
		s.tracer.RecordError(ctx, err)
		stepExecution.MarkAsFailed(err)
	} else {
		stepExecution.MarkAsCompleted()
	}

	for _, l := range s.listeners {
		l.AfterStep(ctx, stepExecution)
	}
	if updateErr := s.repo.UpdateStepExecution(ctx, stepExecution); updateErr != nil {
		logger.Errorf("step '%s': failed to persist final state: %v", s.name, updateErr)
		if err == nil {
			err = exception.NewBatchError(moduleName, "failed to persist final step state", updateErr, false, false)
		}
	}
	return err
}

func (s *TaskletStep) runInTransaction(ctx context.Context, stepExecution *model.StepExecution) error {
	txn, err := s.txManager.Begin(ctx)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to begin tasklet transaction", err, false, false)
	}
	txCtx := coretx.ContextWithTx(ctx, txn)

	exitStatus, execErr := s.tasklet.Execute(txCtx, stepExecution)
	if execErr != nil {
		if rbErr := s.txManager.Rollback(txn); rbErr != nil {
			logger.Errorf("step '%s': rollback failed: %v", s.name, rbErr)
		}
		stepExecution.RollbackCount++
		s.recorder.RecordChunkRollback(ctx)
		return exception.NewBatchError(moduleName, "tasklet execution failed", execErr, false, false)
	}

	if err := s.txManager.Commit(txn); err != nil {
		s.recorder.RecordChunkRollback(ctx)
		return exception.NewBatchError(moduleName, "failed to commit tasklet transaction", err, false, false)
	}
	stepExecution.CommitCount++
	s.recorder.RecordChunkCommit(ctx)

	if exitStatus != "" {
		stepExecution.ExitStatus = exitStatus
	}
	return nil
}
