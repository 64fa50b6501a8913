package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/passbatch/pkg/batch/core/job/split"
	"github.com/tigerroll/passbatch/pkg/batch/infrastructure/repository/inmemory"
)

// fakeStep records its executions and finishes with a configurable outcome.
type fakeStep struct {
	name string
	err  error

	mu       sync.Mutex
	executed int
}

func (s *fakeStep) StepName() string { return s.name }

func (s *fakeStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	s.mu.Lock()
	s.executed++
	s.mu.Unlock()
	se.MarkAsStarted()
	if s.err != nil {
		se.MarkAsFailed(s.err)
		return s.err
	}
	se.MarkAsCompleted()
	return nil
}

func (s *fakeStep) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func newJobExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, jobName string) *model.JobExecution {
	t.Helper()
	je := model.NewJobExecution(model.NewID(), jobName, model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func TestFlowJob_RunsSequentialFlowToCompletion(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	step1 := &fakeStep{name: "first"}
	step2 := &fakeStep{name: "second"}

	flow := model.NewFlowDefinition("first")
	flow.AddElement("first", step1)
	flow.AddElement("second", step2)
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: model.ExitStatusCompleted, To: "second"})
	flow.AddTransitionRule(model.TransitionRule{From: "second", On: model.ExitStatusCompleted, End: true})

	job := runner.NewFlowJob("seqJob", flow, repo, nil, nil, nil, nil)
	je := newJobExecution(t, repo, "seqJob")

	require.NoError(t, job.Run(ctx, je))

	assert.Equal(t, 1, step1.executions())
	assert.Equal(t, 1, step2.executions())
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, model.ExitStatusCompleted, je.ExitStatus)
}

func TestFlowJob_WildcardRuleRoutesUnmatchedStatus(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	failing := &fakeStep{name: "first", err: errors.New("step broke")}
	flow := model.NewFlowDefinition("first")
	flow.AddElement("first", failing)
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: model.ExitStatusCompleted, End: true})
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: "*", Fail: true})

	job := runner.NewFlowJob("failJob", flow, repo, nil, nil, nil, nil)
	je := newJobExecution(t, repo, "failJob")

	err := job.Run(ctx, je)
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.NotEmpty(t, je.Failures)
}

func TestFlowJob_StopRuleStopsJob(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	step1 := &fakeStep{name: "first"}
	step2 := &fakeStep{name: "second"}
	flow := model.NewFlowDefinition("first")
	flow.AddElement("first", step1)
	flow.AddElement("second", step2)
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: model.ExitStatusCompleted, Stop: true})

	job := runner.NewFlowJob("stopJob", flow, repo, nil, nil, nil, nil)
	je := newJobExecution(t, repo, "stopJob")

	require.NoError(t, job.Run(ctx, je))
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Equal(t, 0, step2.executions())
}

func TestFlowJob_SplitRunsAllBranchesAndJoins(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	branchA := &fakeStep{name: "branchA"}
	branchB := &fakeStep{name: "branchB"}
	flow := model.NewFlowDefinition("parallel")
	flow.AddElement("parallel", split.NewSplit("parallel", branchA, branchB))
	flow.AddTransitionRule(model.TransitionRule{From: "parallel", On: model.ExitStatusCompleted, End: true})

	job := runner.NewFlowJob("splitJob", flow, repo, nil, nil, nil, nil)
	je := newJobExecution(t, repo, "splitJob")

	require.NoError(t, job.Run(ctx, je))
	assert.Equal(t, 1, branchA.executions())
	assert.Equal(t, 1, branchB.executions())
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
}

func TestFlowJob_SplitBranchFailureDoesNotCancelSibling(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	branchA := &fakeStep{name: "branchA", err: errors.New("branch broke")}
	branchB := &fakeStep{name: "branchB"}
	flow := model.NewFlowDefinition("parallel")
	flow.AddElement("parallel", split.NewSplit("parallel", branchA, branchB))
	flow.AddTransitionRule(model.TransitionRule{From: "parallel", On: model.ExitStatusCompleted, End: true})

	job := runner.NewFlowJob("splitJob", flow, repo, nil, nil, nil, nil)
	je := newJobExecution(t, repo, "splitJob")

	err := job.Run(ctx, je)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branchA")

	// The sibling branch ran to completion despite the failure.
	assert.Equal(t, 1, branchB.executions())
	sibling := je.FindStepExecutionByName("branchB")
	require.NotNil(t, sibling)
	assert.Equal(t, model.BatchStatusCompleted, sibling.Status)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
}

func TestFlowJob_RestartSkipsCompletedSteps(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	step1 := &fakeStep{name: "first"}
	step2 := &fakeStep{name: "second"}
	flow := model.NewFlowDefinition("first")
	flow.AddElement("first", step1)
	flow.AddElement("second", step2)
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: model.ExitStatusCompleted, To: "second"})
	flow.AddTransitionRule(model.TransitionRule{From: "second", On: model.ExitStatusCompleted, End: true})

	job := runner.NewFlowJob("restartJob", flow, repo, nil, nil, nil, nil)

	// A restarted execution carries a StepExecution copy for the step that
	// already completed in the failed attempt.
	je := model.NewJobExecution(model.NewID(), "restartJob", model.NewJobParameters())
	done := model.NewStepExecution("first", je)
	done.Status = model.BatchStatusCompleted
	done.ExitStatus = model.ExitStatusCompleted
	require.NoError(t, repo.SaveJobExecution(ctx, je))

	require.NoError(t, job.Run(ctx, je))

	assert.Equal(t, 0, step1.executions())
	assert.Equal(t, 1, step2.executions())
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
}
