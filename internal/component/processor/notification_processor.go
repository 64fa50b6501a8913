package processor

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
)

// BookingNotificationProcessor derives an unsent BEFORE_CLASS
// notification from an upcoming booking.
type BookingNotificationProcessor struct {
	now func() time.Time
}

var _ port.ItemProcessor[entity.Booking, *entity.Notification] = (*BookingNotificationProcessor)(nil)

// NewBookingNotificationProcessor builds a processor; now defaults to
// time.Now.
func NewBookingNotificationProcessor(now func() time.Time) *BookingNotificationProcessor {
	if now == nil {
		now = time.Now
	}
	return &BookingNotificationProcessor{now: now}
}

func (p *BookingNotificationProcessor) Process(ctx context.Context, item entity.Booking) (*entity.Notification, error) {
	nowAt := p.now().UTC()
	return &entity.Notification{
		BookingSeq: item.BookingSeq,
		UserID:     item.UserID,
		Event:      entity.NotificationEventBeforeClass,
		Sent:       false,
		CreatedAt:  nowAt,
		UpdatedAt:  nowAt,
	}, nil
}
