// Package usecase implements the job launcher: it resolves job instances
// by name and parameter hash, guards against concurrent runs of the same
// instance, prepares restarts, and runs jobs asynchronously.
package usecase

import (
	"context"
	"errors"
	"sync"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/support/job"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "job_launcher"

// ErrJobAlreadyRunning is returned when the job instance has an unfinished
// execution.
var ErrJobAlreadyRunning = errors.New("job instance already has a running execution")

// ErrJobInstanceAlreadyComplete is returned when the job instance completed
// and cannot be re-run with identical parameters.
var ErrJobInstanceAlreadyComplete = errors.New("job instance already completed")

func init() {
	exception.RegisterErrorType("ErrJobAlreadyRunning", ErrJobAlreadyRunning)
	exception.RegisterErrorType("ErrJobInstanceAlreadyComplete", ErrJobInstanceAlreadyComplete)
}

// JobLauncher launches registered jobs asynchronously and hands back the
// JobExecution for polling.
type JobLauncher struct {
	repo     repository.JobRepository
	registry *job.Registry

	mu            sync.Mutex
	cancellations map[string]context.CancelFunc
}

// NewJobLauncher creates a launcher over the given repository and registry.
func NewJobLauncher(repo repository.JobRepository, registry *job.Registry) *JobLauncher {
	return &JobLauncher{
		repo:          repo,
		registry:      registry,
		cancellations: make(map[string]context.CancelFunc),
	}
}

// Launch starts the named job with params. The job runs on its own
// goroutine; the returned JobExecution can be polled through the
// repository until its status is finished.
func (l *JobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	createdJob, err := l.registry.CreateJob(jobName)
	if err != nil {
		return nil, err
	}

	// Fail fast before any execution metadata exists.
	if err := createdJob.ValidateParameters(params); err != nil {
		return nil, exception.NewBatchError(moduleName, "job parameter validation failed for '"+jobName+"'", err, false, false)
	}

	instance, jobExecution, err := l.prepareExecution(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	if err := l.repo.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to persist job execution", err, false, false)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.registerCancellation(jobExecution.ID, cancel)

	logger.Infof("launching job '%s' (instance %s, execution %s) with parameters %s",
		jobName, instance.ID, jobExecution.ID, params.String())

	go func() {
		defer l.unregisterCancellation(jobExecution.ID)
		defer cancel()
		if err := createdJob.Run(runCtx, jobExecution); err != nil {
			logger.Errorf("job '%s' (execution %s) finished with error: %v", jobName, jobExecution.ID, err)
		}
	}()

	return jobExecution, nil
}

// Stop cancels the context of a running execution.
func (l *JobLauncher) Stop(executionID string) bool {
	l.mu.Lock()
	cancel, ok := l.cancellations[executionID]
	l.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// prepareExecution finds or creates the JobInstance for (jobName, params)
// and builds the JobExecution, handling the restart path.
func (l *JobLauncher) prepareExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution, error) {
	instance, err := l.repo.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if err != nil {
		if !errors.Is(err, repository.ErrJobInstanceNotFound) {
			return nil, nil, exception.NewBatchError(moduleName, "failed to look up job instance", err, false, false)
		}
		instance = model.NewJobInstance(jobName, params)
		if err := l.repo.SaveJobInstance(ctx, instance); err != nil {
			return nil, nil, exception.NewBatchError(moduleName, "failed to persist job instance", err, false, false)
		}
		return instance, model.NewJobExecution(instance.ID, jobName, params), nil
	}

	executions, err := l.repo.FindJobExecutionsByJobInstance(ctx, instance)
	if err != nil {
		return nil, nil, exception.NewBatchError(moduleName, "failed to load executions of job instance", err, false, false)
	}
	for _, je := range executions {
		if !je.Status.IsFinished() {
			return nil, nil, exception.NewBatchError(moduleName,
				"job '"+jobName+"' already has execution "+je.ID+" in status "+string(je.Status),
				ErrJobAlreadyRunning, false, false)
		}
	}

	restartable, err := l.repo.FindLatestRestartableJobExecution(ctx, instance.ID)
	if err != nil {
		if errors.Is(err, repository.ErrJobExecutionNotFound) {
			// Every prior execution finished and none is restartable: the
			// instance already completed.
			return nil, nil, exception.NewBatchError(moduleName,
				"job '"+jobName+"' with these parameters already completed",
				ErrJobInstanceAlreadyComplete, false, false)
		}
		return nil, nil, exception.NewBatchError(moduleName, "failed to look up restartable execution", err, false, false)
	}

	restartable.MarkAsAbandoned()
	if err := l.repo.UpdateJobExecution(ctx, restartable); err != nil {
		return nil, nil, exception.NewBatchError(moduleName, "failed to abandon previous execution", err, false, false)
	}

	logger.Infof("restarting job '%s' from failed execution %s", jobName, restartable.ID)
	return instance, model.CopyForRestart(restartable), nil
}

func (l *JobLauncher) registerCancellation(executionID string, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancellations[executionID] = cancel
}

func (l *JobLauncher) unregisterCancellation(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cancellations, executionID)
}
