package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/infrastructure/repository/inmemory"
	supportjob "github.com/tigerroll/passbatch/pkg/batch/support/job"
)

// fakeJob completes (or fails) immediately when run.
type fakeJob struct {
	name        string
	runErr      error
	validateErr error
}

func (j *fakeJob) JobName() string { return j.name }

func (j *fakeJob) GetFlow() *model.FlowDefinition { return nil }

func (j *fakeJob) ValidateParameters(params model.JobParameters) error { return j.validateErr }

func (j *fakeJob) Run(ctx context.Context, je *model.JobExecution) error {
	je.MarkAsStarted()
	if j.runErr != nil {
		je.MarkAsFailed(j.runErr)
		return j.runErr
	}
	je.MarkAsCompleted()
	return nil
}

func newLauncher(t *testing.T, repo *inmemory.InMemoryJobRepository, jobs ...*fakeJob) *usecase.JobLauncher {
	t.Helper()
	registrations := make([]supportjob.Registration, 0, len(jobs))
	for _, j := range jobs {
		j := j
		registrations = append(registrations, supportjob.Registration{
			Name:  j.name,
			Build: func() (port.Job, error) { return j, nil },
		})
	}
	registry, err := supportjob.NewRegistry(registrations)
	require.NoError(t, err)
	return usecase.NewJobLauncher(repo, registry)
}

func awaitFinished(t *testing.T, repo *inmemory.InMemoryJobRepository, executionID string) *model.JobExecution {
	t.Helper()
	var last *model.JobExecution
	require.Eventually(t, func() bool {
		je, err := repo.FindJobExecutionByID(context.Background(), executionID)
		if err != nil {
			return false
		}
		last = je
		return je.Status.IsFinished()
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestJobLauncher_LaunchRunsJobToCompletion(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo, &fakeJob{name: "okJob"})

	params := model.NewJobParameters()
	params.Put("from", "2026-01-01")

	je, err := launcher.Launch(context.Background(), "okJob", params)
	require.NoError(t, err)

	finished := awaitFinished(t, repo, je.ID)
	assert.Equal(t, model.BatchStatusCompleted, finished.Status)

	instance, err := repo.FindJobInstanceByJobNameAndParameters(context.Background(), "okJob", params)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, finished.JobInstanceID)
}

func TestJobLauncher_UnknownJobIsRejected(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo)

	_, err := launcher.Launch(context.Background(), "missing", model.NewJobParameters())
	require.Error(t, err)
}

func TestJobLauncher_ParameterValidationFailsFast(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo, &fakeJob{name: "strictJob", validateErr: errors.New("missing 'from'")})

	_, err := launcher.Launch(context.Background(), "strictJob", model.NewJobParameters())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")

	// No execution metadata was created.
	_, err = repo.FindJobInstanceByJobNameAndParameters(context.Background(), "strictJob", model.NewJobParameters())
	assert.Error(t, err)
}

func TestJobLauncher_RejectsConcurrentRunOfSameInstance(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo, &fakeJob{name: "busyJob"})

	params := model.NewJobParameters()
	params.Put("from", "2026-01-01")

	instance := model.NewJobInstance("busyJob", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	running := model.NewJobExecution(instance.ID, "busyJob", params)
	running.MarkAsStarted()
	require.NoError(t, repo.SaveJobExecution(ctx, running))

	_, err := launcher.Launch(ctx, "busyJob", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrJobAlreadyRunning)
}

func TestJobLauncher_RejectsRerunOfCompletedInstance(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo, &fakeJob{name: "doneJob"})

	params := model.NewJobParameters()
	params.Put("from", "2026-01-01")

	instance := model.NewJobInstance("doneJob", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	completed := model.NewJobExecution(instance.ID, "doneJob", params)
	completed.MarkAsStarted()
	completed.MarkAsCompleted()
	require.NoError(t, repo.SaveJobExecution(ctx, completed))

	_, err := launcher.Launch(ctx, "doneJob", params)
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrJobInstanceAlreadyComplete)
}

func TestJobLauncher_RestartsFailedInstance(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := newLauncher(t, repo, &fakeJob{name: "retryJob"})

	params := model.NewJobParameters()
	params.Put("from", "2026-01-01")

	instance := model.NewJobInstance("retryJob", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	failed := model.NewJobExecution(instance.ID, "retryJob", params)
	failed.MarkAsStarted()
	failed.MarkAsFailed(errors.New("first attempt broke"))
	require.NoError(t, repo.SaveJobExecution(ctx, failed))

	je, err := launcher.Launch(ctx, "retryJob", params)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, je.ID)
	assert.Equal(t, instance.ID, je.JobInstanceID)

	finished := awaitFinished(t, repo, je.ID)
	assert.Equal(t, model.BatchStatusCompleted, finished.Status)

	// The failed execution is no longer restartable.
	abandoned, err := repo.FindJobExecutionByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusAbandoned, abandoned.Status)
}
