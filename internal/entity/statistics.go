package entity

import "time"

// Statistics is one aggregation bucket of booking activity, keyed by the
// bucket timestamp. Existing buckets are added to, never overwritten.
type Statistics struct {
	StatisticsSeq  int64     `gorm:"column:statistics_seq;primaryKey;autoIncrement"`
	StatisticsAt   time.Time `gorm:"column:statistics_at"`
	AllCount       int       `gorm:"column:all_count"`
	AttendedCount  int       `gorm:"column:attended_count"`
	CancelledCount int       `gorm:"column:cancelled_count"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (Statistics) TableName() string { return "statistics" }

// Add folds one booking's contribution into the bucket counters.
func (s *Statistics) Add(b Booking) {
	s.AllCount++
	switch b.Status {
	case BookingStatusUsed, BookingStatusCompleted:
		s.AttendedCount++
	case BookingStatusCancelled:
		s.CancelledCount++
	}
}
