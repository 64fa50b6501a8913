// Package tasklet holds the one-shot units of work of the application
// jobs.
package tasklet

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "app_tasklet"

// issuanceWindow is how far back a READY order's start time may lie and
// still be picked up by the current run.
const issuanceWindow = 24 * time.Hour

// AddPassesTasklet expands READY bulk orders into passes. For each order
// whose window has started it resolves the target group's members,
// inserts one READY pass per member with the order's count and validity
// window, and marks the order COMPLETED. Everything happens in the step's
// transaction, so a crash leaves zero or all passes for an order.
type AddPassesTasklet struct {
	now func() time.Time
}

var _ port.Tasklet = (*AddPassesTasklet)(nil)

// NewAddPassesTasklet builds the tasklet; now defaults to time.Now.
func NewAddPassesTasklet(now func() time.Time) *AddPassesTasklet {
	if now == nil {
		now = time.Now
	}
	return &AddPassesTasklet{now: now}
}

func (t *AddPassesTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	txn, ok := tx.TxFromContext(ctx)
	if !ok {
		return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "add passes tasklet requires a transaction in context")
	}
	nowAt := t.now().UTC()

	var orders []entity.BulkPass
	query := map[string]interface{}{"status": entity.BulkPassStatusReady}
	if err := txn.ExecuteQuery(ctx, &orders, entity.BulkPass{}.TableName(), query, "bulk_pass_seq ASC", 0); err != nil {
		return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "failed to load ready bulk orders: %w", err)
	}

	issued := 0
	completed := 0
	for _, order := range orders {
		// The issuance window check stays in code: started orders only,
		// and nothing older than the window so stale orders are left for
		// operators to inspect.
		if order.StartedAt.After(nowAt) || order.StartedAt.Before(nowAt.Add(-issuanceWindow)) {
			continue
		}

		var members []entity.UserGroupMapping
		memberQuery := map[string]interface{}{"user_group_id": order.UserGroupID}
		if err := txn.ExecuteQuery(ctx, &members, entity.UserGroupMapping{}.TableName(), memberQuery, "user_id ASC", 0); err != nil {
			return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "failed to resolve group '%s' for order %d: %w", order.UserGroupID, order.BulkPassSeq, err)
		}

		passes := make([]entity.Pass, 0, len(members))
		for _, member := range members {
			passes = append(passes, entity.Pass{
				PackageSeq:     order.PackageSeq,
				UserID:         member.UserID,
				Status:         entity.PassStatusReady,
				RemainingCount: order.Count,
				StartedAt:      order.StartedAt,
				EndedAt:        order.EndedAt,
				CreatedAt:      nowAt,
				UpdatedAt:      nowAt,
			})
		}
		if len(passes) > 0 {
			if err := txn.ExecuteUpdate(ctx, &passes, adapter.OperationCreate, entity.Pass{}.TableName(), nil); err != nil {
				return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "failed to insert passes for order %d: %w", order.BulkPassSeq, err)
			}
		}

		order.Status = entity.BulkPassStatusCompleted
		order.UpdatedAt = nowAt
		orderQuery := map[string]interface{}{"bulk_pass_seq": order.BulkPassSeq}
		if err := txn.ExecuteUpdate(ctx, &order, adapter.OperationUpdate, entity.BulkPass{}.TableName(), orderQuery); err != nil {
			return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "failed to complete order %d: %w", order.BulkPassSeq, err)
		}

		issued += len(passes)
		completed++
		stepExecution.WriteCount += len(passes)
	}
	stepExecution.ReadCount += len(orders)

	logger.Infof("pass issuance: %d orders completed, %d passes issued", completed, issued)
	return model.ExitStatusCompleted, nil
}

func (t *AddPassesTasklet) Close(ctx context.Context) error { return nil }
