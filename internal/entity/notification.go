package entity

import "time"

// Notification event types.
const (
	NotificationEventBeforeClass = "BEFORE_CLASS"
)

// Notification is a pending or delivered message derived from a booking.
// The (booking_seq, event) pair is unique, so re-running the creation
// step never duplicates a notification for the same booking.
type Notification struct {
	NotificationSeq int64     `gorm:"column:notification_seq;primaryKey;autoIncrement"`
	BookingSeq      int64     `gorm:"column:booking_seq"`
	UserID          string    `gorm:"column:user_id"`
	Event           string    `gorm:"column:event"`
	Sent            bool      `gorm:"column:sent"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (Notification) TableName() string { return "notifications" }
