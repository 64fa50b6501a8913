// Package writer holds the item writers of the application jobs.
package writer

import (
	"context"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "app_writer"

// ExpiredPassWriter persists expired passes row by row inside the chunk
// transaction.
type ExpiredPassWriter struct {
	ec model.ExecutionContext
}

var _ port.ItemWriter[*entity.Pass] = (*ExpiredPassWriter)(nil)

// NewExpiredPassWriter builds the writer.
func NewExpiredPassWriter() *ExpiredPassWriter {
	return &ExpiredPassWriter{ec: model.NewExecutionContext()}
}

func (w *ExpiredPassWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *ExpiredPassWriter) Write(ctx context.Context, txn tx.Tx, items []*entity.Pass) error {
	if txn == nil {
		return exception.NewBatchErrorf(moduleName, "expired pass writer: no transaction supplied")
	}
	for _, p := range items {
		query := map[string]interface{}{"pass_seq": p.PassSeq}
		if err := txn.ExecuteUpdate(ctx, p, adapter.OperationUpdate, p.TableName(), query); err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to expire pass %d: %w", p.PassSeq, err)
		}
	}
	return nil
}

func (w *ExpiredPassWriter) Close(ctx context.Context) error { return nil }

func (w *ExpiredPassWriter) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *ExpiredPassWriter) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
