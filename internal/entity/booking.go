package entity

import "time"

// Booking statuses.
const (
	BookingStatusReady     = "READY"
	BookingStatusUsed      = "USED"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusCancelled = "CANCELLED"
)

// Booking is a scheduled class reservation. The pipeline reads bookings
// as input to the notification and statistics jobs and never mutates
// them.
type Booking struct {
	BookingSeq   int64     `gorm:"column:booking_seq;primaryKey;autoIncrement"`
	UserID       string    `gorm:"column:user_id"`
	Status       string    `gorm:"column:status"`
	StartedAt    time.Time `gorm:"column:started_at"`
	EndedAt      time.Time `gorm:"column:ended_at"`
	StatisticsAt time.Time `gorm:"column:statistics_at"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Booking) TableName() string { return "bookings" }
