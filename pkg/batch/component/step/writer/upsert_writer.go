// Package writer provides reusable item writers for chunk steps.
package writer

import (
	"context"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "writer"

// UpsertWriter persists chunk items into one table through the chunk
// transaction. Conflicts on conflictColumns either update the listed
// columns or, when updateColumns is empty, leave the existing row
// untouched so replayed chunks stay idempotent.
type UpsertWriter[T any] struct {
	name            string
	tableName       string
	conflictColumns []string
	updateColumns   []string
	bulkSize        int
	ec              model.ExecutionContext
}

var _ port.ItemWriter[any] = (*UpsertWriter[any])(nil)

// NewUpsertWriter builds a writer for tableName. bulkSize caps the number
// of rows per insert statement; values <= 0 fall back to 100.
func NewUpsertWriter[T any](name, tableName string, conflictColumns, updateColumns []string, bulkSize int) *UpsertWriter[T] {
	if bulkSize <= 0 {
		bulkSize = 100
	}
	return &UpsertWriter[T]{
		name:            name,
		tableName:       tableName,
		conflictColumns: conflictColumns,
		updateColumns:   updateColumns,
		bulkSize:        bulkSize,
		ec:              model.NewExecutionContext(),
	}
}

func (w *UpsertWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

// Write upserts items within txn in bulkSize slices.
func (w *UpsertWriter[T]) Write(ctx context.Context, txn tx.Tx, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if txn == nil {
		return exception.NewBatchErrorf(moduleName, "writer '%s': no transaction supplied", w.name)
	}
	for start := 0; start < len(items); start += w.bulkSize {
		end := start + w.bulkSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		if err := txn.ExecuteUpsert(ctx, batch, w.tableName, w.conflictColumns, w.updateColumns); err != nil {
			return exception.NewBatchErrorf(moduleName, "writer '%s': failed to upsert %d items into %s: %w", w.name, len(batch), w.tableName, err)
		}
	}
	return nil
}

func (w *UpsertWriter[T]) Close(ctx context.Context) error { return nil }

func (w *UpsertWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *UpsertWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
