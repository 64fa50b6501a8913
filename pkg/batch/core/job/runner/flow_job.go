// Package runner implements the flow-walking job: it executes the elements
// of a FlowDefinition, evaluating transition rules on exit statuses and
// joining parallel splits at a barrier.
package runner

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/core/job/split"
	"github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "flow_job"

// FlowJob is a Job built from an explicit element graph.
type FlowJob struct {
	name            string
	flow            *model.FlowDefinition
	repo            repository.JobRepository
	listeners       []port.JobListener
	recorder        metrics.MetricRecorder
	tracer          metrics.Tracer
	paramsValidator func(model.JobParameters) error
}

var _ port.Job = (*FlowJob)(nil)

// NewFlowJob creates a flow-based job. paramsValidator may be nil when the
// job accepts any parameters.
func NewFlowJob(
	name string,
	flow *model.FlowDefinition,
	repo repository.JobRepository,
	listeners []port.JobListener,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	paramsValidator func(model.JobParameters) error,
) *FlowJob {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &FlowJob{
		name:            name,
		flow:            flow,
		repo:            repo,
		listeners:       listeners,
		recorder:        recorder,
		tracer:          tracer,
		paramsValidator: paramsValidator,
	}
}

// JobName returns the registered name of the job.
func (j *FlowJob) JobName() string { return j.name }

// GetFlow returns the job's flow definition.
func (j *FlowJob) GetFlow() *model.FlowDefinition { return j.flow }

// ValidateParameters applies the job's parameter validator, if any.
func (j *FlowJob) ValidateParameters(params model.JobParameters) error {
	if j.paramsValidator == nil {
		return nil
	}
	return j.paramsValidator(params)
}

// Run walks the flow from its start element until a terminal rule or the
// absence of a transition ends the job.
func (j *FlowJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	ctx, endSpan := j.tracer.StartJobSpan(ctx, j.name)
	defer endSpan()

	j.recorder.RecordJobStart(ctx, jobExecution)
	defer j.recorder.RecordJobEnd(ctx, jobExecution)

	jobExecution.MarkAsStarted()
	if err := j.repo.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError(moduleName, "failed to persist job start", err, false, false)
	}

	for _, l := range j.listeners {
		l.BeforeJob(ctx, jobExecution)
	}
	defer func() {
		for _, l := range j.listeners {
			l.AfterJob(ctx, jobExecution)
		}
	}()

	current := j.flow.StartElement
	for {
		select {
		case <-ctx.Done():
			jobExecution.MarkAsStopped()
			_ = j.repo.UpdateJobExecution(ctx, jobExecution)
			return ctx.Err()
		default:
		}

		element, ok := j.flow.Elements[current]
		if !ok {
			return j.finishFailed(ctx, jobExecution,
				exception.NewBatchErrorf(moduleName, "flow element '%s' not found in job '%s'", current, j.name))
		}

		var exitStatus model.ExitStatus
		var execErr error

		switch e := element.(type) {
		case port.Step:
			exitStatus, execErr = j.executeStep(ctx, jobExecution, e)
		case *split.Split:
			exitStatus, execErr = j.executeSplit(ctx, jobExecution, e)
		default:
			return j.finishFailed(ctx, jobExecution,
				exception.NewBatchErrorf(moduleName, "flow element '%s' has unsupported type %T", current, element))
		}

		if execErr != nil {
			exitStatus = model.ExitStatusFailed
		}

		rule, found := j.flow.GetTransitionRule(current, exitStatus)
		if !found {
			if execErr != nil {
				return j.finishFailed(ctx, jobExecution, execErr)
			}
			// No outgoing rule and no error means the flow ran off its end.
			return j.finishCompleted(ctx, jobExecution)
		}

		switch {
		case rule.End:
			return j.finishCompleted(ctx, jobExecution)
		case rule.Fail:
			if execErr == nil {
				execErr = exception.NewBatchErrorf(moduleName, "flow rule failed job '%s' after element '%s'", j.name, current)
			}
			return j.finishFailed(ctx, jobExecution, execErr)
		case rule.Stop:
			jobExecution.MarkAsStopped()
			if err := j.repo.UpdateJobExecution(ctx, jobExecution); err != nil {
				logger.Errorf("job '%s': failed to persist stop: %v", j.name, err)
			}
			return nil
		default:
			current = rule.To
		}
	}
}

// executeStep runs one step, reusing the existing StepExecution on restart
// and skipping steps that already completed.
func (j *FlowJob) executeStep(ctx context.Context, jobExecution *model.JobExecution, step port.Step) (model.ExitStatus, error) {
	se, skip, err := j.prepareStepExecution(ctx, jobExecution, step.StepName())
	if err != nil {
		return model.ExitStatusFailed, err
	}
	if skip {
		logger.Infof("job '%s': step '%s' already completed, skipping", j.name, step.StepName())
		return model.ExitStatusCompleted, nil
	}

	jobExecution.CurrentStepName = step.StepName()
	if err := step.Execute(ctx, jobExecution, se); err != nil {
		return model.ExitStatusFailed, err
	}
	return se.ExitStatus, nil
}

// executeSplit launches every branch on its own goroutine and joins them
// at a barrier. Failing branches do not cancel their siblings; their
// errors are joined after the barrier.
func (j *FlowJob) executeSplit(ctx context.Context, jobExecution *model.JobExecution, sp *split.Split) (model.ExitStatus, error) {
	steps := sp.Steps()
	var wg sync.WaitGroup
	errCh := make(chan error, len(steps))

	for _, step := range steps {
		se, skip, err := j.prepareStepExecution(ctx, jobExecution, step.StepName())
		if err != nil {
			return model.ExitStatusFailed, err
		}
		if skip {
			logger.Infof("job '%s': split branch '%s' already completed, skipping", j.name, step.StepName())
			continue
		}

		wg.Add(1)
		go func(step port.Step, se *model.StepExecution) {
			defer wg.Done()
			if err := step.Execute(ctx, jobExecution, se); err != nil {
				errCh <- exception.NewBatchError(moduleName,
					"split '"+sp.Name()+"' branch '"+step.StepName()+"' failed", err, false, false)
			}
		}(step, se)
	}

	wg.Wait()
	close(errCh)

	var joined *multierror.Error
	for err := range errCh {
		joined = multierror.Append(joined, err)
	}
	if err := joined.ErrorOrNil(); err != nil {
		return model.ExitStatusFailed, err
	}
	return model.ExitStatusCompleted, nil
}

func (j *FlowJob) prepareStepExecution(ctx context.Context, jobExecution *model.JobExecution, stepName string) (*model.StepExecution, bool, error) {
	if existing := jobExecution.FindStepExecutionByName(stepName); existing != nil {
		if existing.Status == model.BatchStatusCompleted {
			return existing, true, nil
		}
		// Restarted executions carry copied StepExecutions; persist the one
		// being re-attempted under its new ID.
		if _, err := j.repo.FindStepExecutionByID(ctx, existing.ID); err != nil {
			if saveErr := j.repo.SaveStepExecution(ctx, existing); saveErr != nil {
				return nil, false, exception.NewBatchError(moduleName, "failed to persist step execution", saveErr, false, false)
			}
		}
		return existing, false, nil
	}

	se := model.NewStepExecution(stepName, jobExecution)
	if err := j.repo.SaveStepExecution(ctx, se); err != nil {
		return nil, false, exception.NewBatchError(moduleName, "failed to persist step execution", err, false, false)
	}
	return se, false, nil
}

func (j *FlowJob) finishCompleted(ctx context.Context, jobExecution *model.JobExecution) error {
	jobExecution.MarkAsCompleted()
	if err := j.repo.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError(moduleName, "failed to persist job completion", err, false, false)
	}
	logger.Infof("job '%s' completed", j.name)
	return nil
}

func (j *FlowJob) finishFailed(ctx context.Context, jobExecution *model.JobExecution, cause error) error {
	j.tracer.RecordError(ctx, cause)
	jobExecution.MarkAsFailed(cause)
	if err := j.repo.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("job '%s': failed to persist failure: %v", j.name, err)
	}
	logger.Errorf("job '%s' failed: %v", j.name, cause)
	return cause
}
