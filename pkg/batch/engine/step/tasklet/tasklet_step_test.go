package tasklet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/passbatch/pkg/batch/infrastructure/repository/inmemory"
	testutil "github.com/tigerroll/passbatch/pkg/batch/test"
)

// fakeTasklet records whether a transaction reached it.
type fakeTasklet struct {
	err    error
	sawTx  bool
	closed bool
}

func (f *fakeTasklet) Execute(ctx context.Context, se *model.StepExecution) (model.ExitStatus, error) {
	_, f.sawTx = coretx.TxFromContext(ctx)
	if f.err != nil {
		return model.ExitStatusFailed, f.err
	}
	return model.ExitStatusCompleted, nil
}

func (f *fakeTasklet) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func setup(t *testing.T) (*inmemory.InMemoryJobRepository, *testutil.MockTransactionManager, *model.JobExecution, *model.StepExecution) {
	t.Helper()
	repo := inmemory.NewInMemoryJobRepository()
	txn := new(testutil.MockTx)
	txManager := new(testutil.MockTransactionManager)
	txManager.On("Begin", mock.Anything, mock.Anything).Return(txn, nil)
	txManager.On("Commit", txn).Return(nil)
	txManager.On("Rollback", txn).Return(nil)

	je := model.NewJobExecution(model.NewID(), "testJob", model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	se := model.NewStepExecution("oneShot", je)
	require.NoError(t, repo.SaveStepExecution(context.Background(), se))
	return repo, txManager, je, se
}

func TestTaskletStep_CommitsOnSuccess(t *testing.T) {
	repo, txManager, je, se := setup(t)
	fake := &fakeTasklet{}
	step := tasklet.NewTaskletStep("oneShot", fake, repo, txManager, nil, nil, nil)

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.True(t, fake.sawTx, "tasklet must run inside a transaction")
	assert.True(t, fake.closed)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatusCompleted, se.ExitStatus)
	assert.Equal(t, 1, se.CommitCount)
	txManager.AssertNumberOfCalls(t, "Commit", 1)
	txManager.AssertNotCalled(t, "Rollback", mock.Anything)
}

func TestTaskletStep_RollsBackOnFailure(t *testing.T) {
	repo, txManager, je, se := setup(t)
	fake := &fakeTasklet{err: errors.New("tasklet broke")}
	step := tasklet.NewTaskletStep("oneShot", fake, repo, txManager, nil, nil, nil)

	err := step.Execute(context.Background(), je, se)
	require.Error(t, err)

	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 1, se.RollbackCount)
	assert.Equal(t, 0, se.CommitCount)
	txManager.AssertNumberOfCalls(t, "Rollback", 1)
	txManager.AssertNotCalled(t, "Commit", mock.Anything)

	persisted, findErr := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.BatchStatusFailed, persisted.Status)
}

func TestTaskletStep_BeginFailureFailsStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	txManager := new(testutil.MockTransactionManager)
	txManager.On("Begin", mock.Anything, mock.Anything).Return(nil, errors.New("pool exhausted"))

	je := model.NewJobExecution(model.NewID(), "testJob", model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	se := model.NewStepExecution("oneShot", je)
	require.NoError(t, repo.SaveStepExecution(context.Background(), se))

	step := tasklet.NewTaskletStep("oneShot", &fakeTasklet{}, repo, txManager, nil, nil, nil)
	err := step.Execute(context.Background(), je, se)
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}
