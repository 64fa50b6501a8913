package writer

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/internal/notification"
	fwwriter "github.com/tigerroll/passbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

// NewNotificationUpsertWriter inserts derived notifications, leaving
// existing (booking_seq, event) rows untouched so replayed chunks and
// repeated runs never create duplicates.
func NewNotificationUpsertWriter() port.ItemWriter[*entity.Notification] {
	return fwwriter.NewUpsertWriter[*entity.Notification](
		"notificationUpsertWriter",
		entity.Notification{}.TableName(),
		[]string{"booking_seq", "event"},
		nil,
		100,
	)
}

// NotificationSendWriter dispatches each notification through the sender
// collaborator and marks it sent inside the chunk transaction. If the
// commit later fails the dispatch may repeat; the sender contract accepts
// at-least-once delivery.
type NotificationSendWriter struct {
	sender notification.Sender
	now    func() time.Time
	ec     model.ExecutionContext
}

var _ port.ItemWriter[entity.Notification] = (*NotificationSendWriter)(nil)

// NewNotificationSendWriter builds the writer; now defaults to time.Now.
func NewNotificationSendWriter(sender notification.Sender, now func() time.Time) *NotificationSendWriter {
	if now == nil {
		now = time.Now
	}
	return &NotificationSendWriter{sender: sender, now: now, ec: model.NewExecutionContext()}
}

func (w *NotificationSendWriter) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *NotificationSendWriter) Write(ctx context.Context, txn tx.Tx, items []entity.Notification) error {
	if txn == nil {
		return exception.NewBatchErrorf(moduleName, "notification send writer: no transaction supplied")
	}
	for _, n := range items {
		if err := w.sender.Send(ctx, n); err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to dispatch notification %d: %w", n.NotificationSeq, err)
		}
		n.Sent = true
		n.UpdatedAt = w.now().UTC()
		query := map[string]interface{}{"notification_seq": n.NotificationSeq}
		if err := txn.ExecuteUpdate(ctx, &n, adapter.OperationUpdate, n.TableName(), query); err != nil {
			return exception.NewBatchErrorf(moduleName, "failed to mark notification %d sent: %w", n.NotificationSeq, err)
		}
	}
	return nil
}

func (w *NotificationSendWriter) Close(ctx context.Context) error { return nil }

func (w *NotificationSendWriter) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *NotificationSendWriter) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
