package entity

import "time"

// Pass statuses. A pass moves IN_PROGRESS to EXPIRED only once its end
// time has elapsed; the transition is one-directional.
const (
	PassStatusReady      = "READY"
	PassStatusInProgress = "IN_PROGRESS"
	PassStatusExpired    = "EXPIRED"
)

// Pass is one member's usable credit grant issued from a BulkPass order.
type Pass struct {
	PassSeq        int64      `gorm:"column:pass_seq;primaryKey;autoIncrement"`
	PackageSeq     int64      `gorm:"column:package_seq"`
	UserID         string     `gorm:"column:user_id"`
	Status         string     `gorm:"column:status"`
	RemainingCount int        `gorm:"column:remaining_count"`
	StartedAt      time.Time  `gorm:"column:started_at"`
	EndedAt        time.Time  `gorm:"column:ended_at"`
	ExpiredAt      *time.Time `gorm:"column:expired_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (Pass) TableName() string { return "passes" }
