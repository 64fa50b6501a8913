// Package notification defines the dispatch collaborator of the send
// step. Delivery is at-least-once; deduplication happens on the read side
// through the sent flag.
package notification

import (
	"context"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// Sender delivers one notification. Implementations must tolerate
// repeated delivery of the same notification.
type Sender interface {
	Send(ctx context.Context, n entity.Notification) error
}

// LogSender writes deliveries to the application log. It stands in for a
// real channel (push, mail) behind the same interface.
type LogSender struct{}

var _ Sender = (*LogSender)(nil)

// NewLogSender builds a LogSender.
func NewLogSender() *LogSender { return &LogSender{} }

func (s *LogSender) Send(ctx context.Context, n entity.Notification) error {
	logger.Infof("notification dispatched: event=%s booking=%d user=%s", n.Event, n.BookingSeq, n.UserID)
	return nil
}
