package writer

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

// StatisticsWriter folds a chunk of bookings into statistics buckets
// keyed by statistics_at, then persists each bucket once: an existing row
// is loaded and added to, a new bucket is inserted. Buckets flush in
// insertion order of first appearance; the fold itself is plain addition,
// so the result does not depend on intra-chunk ordering.
type StatisticsWriter struct {
	now func() time.Time
	ec  model.ExecutionContext
}

var _ port.ItemWriter[entity.Booking] = (*StatisticsWriter)(nil)

// NewStatisticsWriter builds the writer; now defaults to time.Now.
func NewStatisticsWriter(now func() time.Time) *StatisticsWriter {
	if now == nil {
		now = time.Now
	}
	return &StatisticsWriter{now: now, ec: model.NewExecutionContext()}
}

func (w *StatisticsWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *StatisticsWriter) Write(ctx context.Context, txn tx.Tx, items []entity.Booking) error {
	if txn == nil {
		return exception.NewBatchErrorf(moduleName, "statistics writer: no transaction supplied")
	}
	buckets := FoldBookings(items)
	nowAt := w.now().UTC()
	tableName := entity.Statistics{}.TableName()

	for _, bucket := range buckets {
		query := map[string]interface{}{"statistics_at": bucket.StatisticsAt}

		var existing []entity.Statistics
		if err := txn.ExecuteQuery(ctx, &existing, tableName, query, "", 1); err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to load statistics bucket %s: %w", bucket.StatisticsAt, err)
		}

		if len(existing) == 0 {
			bucket.CreatedAt = nowAt
			bucket.UpdatedAt = nowAt
			if err := txn.ExecuteUpdate(ctx, &bucket, adapter.OperationCreate, tableName, nil); err != nil {
				return exception.NewBatchErrorf(moduleName, "failed to insert statistics bucket %s: %w", bucket.StatisticsAt, err)
			}
			continue
		}

		merged := existing[0]
		merged.AllCount += bucket.AllCount
		merged.AttendedCount += bucket.AttendedCount
		merged.CancelledCount += bucket.CancelledCount
		merged.UpdatedAt = nowAt
		updateQuery := map[string]interface{}{"statistics_seq": merged.StatisticsSeq}
		if err := txn.ExecuteUpdate(ctx, &merged, adapter.OperationUpdate, tableName, updateQuery); err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to update statistics bucket %s: %w", bucket.StatisticsAt, err)
		}
	}
	return nil
}

func (w *StatisticsWriter) Close(ctx context.Context) error { return nil }

func (w *StatisticsWriter) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *StatisticsWriter) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}

// FoldBookings merges bookings into statistics buckets keyed by
// statistics_at, preserving insertion order of first appearance.
func FoldBookings(items []entity.Booking) []entity.Statistics {
	index := make(map[time.Time]int, len(items))
	buckets := make([]entity.Statistics, 0, len(items))
	for _, b := range items {
		key := b.StatisticsAt.UTC()
		i, ok := index[key]
		if !ok {
			buckets = append(buckets, entity.Statistics{StatisticsAt: key})
			i = len(buckets) - 1
			index[key] = i
		}
		buckets[i].Add(b)
	}
	return buckets
}
