package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

func TestJobParameters_HashIsInsertionOrderIndependent(t *testing.T) {
	a := model.NewJobParameters()
	a.Put("from", "2026-01-01 00:00")
	a.Put("to", "2026-02-01 00:00")

	b := model.NewJobParameters()
	b.Put("to", "2026-02-01 00:00")
	b.Put("from", "2026-01-01 00:00")

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)

	c := model.NewJobParameters()
	c.Put("from", "2026-01-02 00:00")
	hashC, err := c.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashC)
}

func TestJobParameters_EqualToleratesJSONNumberRoundTrip(t *testing.T) {
	// Values loaded back from persistence arrive as float64.
	stored := model.NewJobParameters()
	stored.Put("limit", float64(100))
	stored.Put("name", "daily")

	fresh := model.NewJobParameters()
	fresh.Put("limit", 100)
	fresh.Put("name", "daily")

	assert.True(t, stored.Equal(fresh))
	assert.True(t, fresh.Contains(stored))

	other := model.NewJobParameters()
	other.Put("limit", 101)
	other.Put("name", "daily")
	assert.False(t, stored.Equal(other))
}

func TestJobParameters_StringMasksRegisteredKeys(t *testing.T) {
	model.SetMaskedParameterKeys([]string{"password"})
	defer model.SetMaskedParameterKeys(nil)

	p := model.NewJobParameters()
	p.Put("Password", "hunter2")
	p.Put("from", "2026-01-01")

	rendered := p.String()
	assert.NotContains(t, rendered, "hunter2")
	assert.Contains(t, rendered, "Password=******")
	assert.Contains(t, rendered, "from=2026-01-01")
}

func TestExecutionContext_GetIntAcceptsNumericForms(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("asInt", 7)
	ec.Put("asInt64", int64(8))
	ec.Put("asFloat", float64(9))
	ec.Put("asString", "10")

	n, ok := ec.GetInt("asInt")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = ec.GetInt("asInt64")
	assert.True(t, ok)
	assert.Equal(t, 8, n)

	n, ok = ec.GetInt("asFloat")
	assert.True(t, ok)
	assert.Equal(t, 9, n)

	_, ok = ec.GetInt("asString")
	assert.False(t, ok)
	_, ok = ec.GetInt("absent")
	assert.False(t, ok)
}

func TestExecutionContext_JSONRoundTrip(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("reader.position", 42)
	ec.Put("label", "daily")

	value, err := ec.Value()
	require.NoError(t, err)

	var restored model.ExecutionContext
	require.NoError(t, restored.Scan(value))

	pos, ok := restored.GetInt("reader.position")
	assert.True(t, ok)
	assert.Equal(t, 42, pos)
	label, ok := restored.GetString("label")
	assert.True(t, ok)
	assert.Equal(t, "daily", label)
}

func TestJobStatus_IsFinished(t *testing.T) {
	assert.True(t, model.BatchStatusCompleted.IsFinished())
	assert.True(t, model.BatchStatusFailed.IsFinished())
	assert.True(t, model.BatchStatusStopped.IsFinished())
	assert.True(t, model.BatchStatusAbandoned.IsFinished())
	assert.False(t, model.BatchStatusStarted.IsFinished())
	assert.False(t, model.BatchStatusStarting.IsFinished())
	assert.False(t, model.BatchStatusRestarting.IsFinished())
}

func TestJobExecution_TransitionValidation(t *testing.T) {
	je := model.NewJobExecution(model.NewID(), "testJob", model.NewJobParameters())

	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, je.TransitionTo(model.BatchStatusCompleted))

	// Completed executions cannot restart.
	err := je.TransitionTo(model.BatchStatusRestarting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job status transition")
}

func TestJobExecution_MarkAsFailedRecordsFailure(t *testing.T) {
	je := model.NewJobExecution(model.NewID(), "testJob", model.NewJobParameters())
	je.MarkAsStarted()

	cause := errors.New("chunk write broke")
	je.MarkAsFailed(cause)

	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, model.ExitStatusFailed, je.ExitStatus)
	require.Len(t, je.Failures, 1)
	assert.ErrorIs(t, je.Failures[0], cause)
	assert.False(t, je.EndTime.IsZero())
}

func TestCopyForRestart_CarriesCompletedStepsAndContexts(t *testing.T) {
	failed := model.NewJobExecution("instance-1", "testJob", model.NewJobParameters())
	failed.MarkAsStarted()
	failed.ExecutionContext.Put("jobKey", "jobValue")

	doneStep := model.NewStepExecution("first", failed)
	doneStep.MarkAsStarted()
	doneStep.MarkAsCompleted()
	doneStep.ReadCount = 12
	doneStep.WriteCount = 12

	failedStep := model.NewStepExecution("second", failed)
	failedStep.MarkAsStarted()
	failedStep.MarkAsFailed(errors.New("broke"))
	failedStep.ExecutionContext.Put("reader.position", 5)

	failed.MarkAsFailed(errors.New("job broke"))

	restarted := model.CopyForRestart(failed)

	assert.Equal(t, model.BatchStatusRestarting, restarted.Status)
	assert.NotEqual(t, failed.ID, restarted.ID)
	assert.Equal(t, "instance-1", restarted.JobInstanceID)

	v, ok := restarted.ExecutionContext.GetString("jobKey")
	assert.True(t, ok)
	assert.Equal(t, "jobValue", v)

	copiedDone := restarted.FindStepExecutionByName("first")
	require.NotNil(t, copiedDone)
	assert.Equal(t, model.BatchStatusCompleted, copiedDone.Status)
	assert.Equal(t, 12, copiedDone.ReadCount)

	copiedFailed := restarted.FindStepExecutionByName("second")
	require.NotNil(t, copiedFailed)
	assert.Equal(t, model.BatchStatusFailed, copiedFailed.Status)
	pos, ok := copiedFailed.ExecutionContext.GetInt("reader.position")
	assert.True(t, ok)
	assert.Equal(t, 5, pos)
}

func TestGetTransitionRule_ExactMatchBeatsWildcard(t *testing.T) {
	flow := model.NewFlowDefinition("first")
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: "*", Fail: true})
	flow.AddTransitionRule(model.TransitionRule{From: "first", On: model.ExitStatusCompleted, To: "second"})

	rule, found := flow.GetTransitionRule("first", model.ExitStatusCompleted)
	require.True(t, found)
	assert.Equal(t, "second", rule.To)

	rule, found = flow.GetTransitionRule("first", model.ExitStatusFailed)
	require.True(t, found)
	assert.True(t, rule.Fail)

	_, found = flow.GetTransitionRule("other", model.ExitStatusCompleted)
	assert.False(t, found)
}
