package tasklet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/internal/component/tasklet"
	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	testutil "github.com/tigerroll/passbatch/pkg/batch/test"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func txContext(txn coretx.Tx) context.Context {
	return coretx.ContextWithTx(context.Background(), txn)
}

func expectOrders(txn *testutil.MockTx, orders []entity.BulkPass) {
	txn.On("ExecuteQuery", mock.Anything, mock.Anything, "bulk_passes",
		map[string]interface{}{"status": entity.BulkPassStatusReady}, "bulk_pass_seq ASC", 0).
		Run(func(args mock.Arguments) {
			dest := args.Get(1).(*[]entity.BulkPass)
			*dest = orders
		}).Return(nil)
}

func expectMembers(txn *testutil.MockTx, groupID string, members []entity.UserGroupMapping) {
	txn.On("ExecuteQuery", mock.Anything, mock.Anything, "user_group_mappings",
		map[string]interface{}{"user_group_id": groupID}, "user_id ASC", 0).
		Run(func(args mock.Arguments) {
			dest := args.Get(1).(*[]entity.UserGroupMapping)
			*dest = members
		}).Return(nil)
}

func TestAddPassesTasklet_IssuesOnePassPerGroupMember(t *testing.T) {
	txn := new(testutil.MockTx)
	order := entity.BulkPass{
		BulkPassSeq: 7,
		PackageSeq:  3,
		UserGroupID: "G1",
		Count:       1,
		Status:      entity.BulkPassStatusReady,
		StartedAt:   fixedNow.Add(-time.Hour),
		EndedAt:     fixedNow.Add(30 * 24 * time.Hour),
	}
	expectOrders(txn, []entity.BulkPass{order})
	expectMembers(txn, "G1", []entity.UserGroupMapping{
		{MappingSeq: 1, UserGroupID: "G1", UserID: "A1000000"},
	})

	var inserted []entity.Pass
	txn.On("ExecuteUpdate", mock.Anything, mock.Anything, adapter.OperationCreate, "passes",
		map[string]interface{}(nil)).
		Run(func(args mock.Arguments) {
			inserted = *(args.Get(1).(*[]entity.Pass))
		}).Return(nil)

	var completedOrder entity.BulkPass
	txn.On("ExecuteUpdate", mock.Anything, mock.Anything, adapter.OperationUpdate, "bulk_passes",
		map[string]interface{}{"bulk_pass_seq": int64(7)}).
		Run(func(args mock.Arguments) {
			completedOrder = *(args.Get(1).(*entity.BulkPass))
		}).Return(nil)

	se := model.NewStepExecution("addPasses", nil)
	exit, err := tasklet.NewAddPassesTasklet(nowFunc).Execute(txContext(txn), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	require.Len(t, inserted, 1)
	pass := inserted[0]
	assert.Equal(t, "A1000000", pass.UserID)
	assert.Equal(t, entity.PassStatusReady, pass.Status)
	assert.Equal(t, 1, pass.RemainingCount)
	assert.Equal(t, int64(3), pass.PackageSeq)
	assert.Equal(t, order.StartedAt, pass.StartedAt)
	assert.Equal(t, order.EndedAt, pass.EndedAt)

	assert.Equal(t, entity.BulkPassStatusCompleted, completedOrder.Status)
	assert.Equal(t, 1, se.ReadCount)
	assert.Equal(t, 1, se.WriteCount)
	txn.AssertExpectations(t)
}

func TestAddPassesTasklet_SkipsOrdersOutsideIssuanceWindow(t *testing.T) {
	txn := new(testutil.MockTx)
	expectOrders(txn, []entity.BulkPass{
		{
			BulkPassSeq: 1,
			UserGroupID: "G1",
			Status:      entity.BulkPassStatusReady,
			StartedAt:   fixedNow.Add(-48 * time.Hour), // too old
			EndedAt:     fixedNow.Add(24 * time.Hour),
		},
		{
			BulkPassSeq: 2,
			UserGroupID: "G1",
			Status:      entity.BulkPassStatusReady,
			StartedAt:   fixedNow.Add(24 * time.Hour), // not started yet
			EndedAt:     fixedNow.Add(48 * time.Hour),
		},
	})

	se := model.NewStepExecution("addPasses", nil)
	exit, err := tasklet.NewAddPassesTasklet(nowFunc).Execute(txContext(txn), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	// Skipped orders are neither expanded nor completed.
	txn.AssertNotCalled(t, "ExecuteUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2, se.ReadCount)
	assert.Equal(t, 0, se.WriteCount)
}

func TestAddPassesTasklet_EmptyGroupCompletesOrderWithoutPasses(t *testing.T) {
	txn := new(testutil.MockTx)
	expectOrders(txn, []entity.BulkPass{
		{
			BulkPassSeq: 5,
			UserGroupID: "empty",
			Status:      entity.BulkPassStatusReady,
			StartedAt:   fixedNow.Add(-time.Hour),
			EndedAt:     fixedNow.Add(24 * time.Hour),
		},
	})
	expectMembers(txn, "empty", nil)
	txn.On("ExecuteUpdate", mock.Anything, mock.Anything, adapter.OperationUpdate, "bulk_passes",
		map[string]interface{}{"bulk_pass_seq": int64(5)}).Return(nil)

	se := model.NewStepExecution("addPasses", nil)
	exit, err := tasklet.NewAddPassesTasklet(nowFunc).Execute(txContext(txn), se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)

	txn.AssertNotCalled(t, "ExecuteUpdate", mock.Anything, mock.Anything, adapter.OperationCreate, "passes", mock.Anything)
	assert.Equal(t, 0, se.WriteCount)
}

func TestAddPassesTasklet_RequiresTransaction(t *testing.T) {
	se := model.NewStepExecution("addPasses", nil)
	exit, err := tasklet.NewAddPassesTasklet(nowFunc).Execute(context.Background(), se)
	require.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, exit)
}
