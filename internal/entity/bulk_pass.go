// Package entity defines the persistent domain records of the pass and
// booking pipeline.
package entity

import "time"

// Bulk pass order statuses.
const (
	BulkPassStatusReady     = "READY"
	BulkPassStatusCompleted = "COMPLETED"
	BulkPassStatusFailed    = "FAILED"
)

// BulkPass is an administrative order to issue passes of one package to
// every member of a user group. An order is expanded into passes exactly
// once; the READY to COMPLETED transition happens in the same transaction
// as the fan-out.
type BulkPass struct {
	BulkPassSeq int64     `gorm:"column:bulk_pass_seq;primaryKey;autoIncrement"`
	PackageSeq  int64     `gorm:"column:package_seq"`
	UserGroupID string    `gorm:"column:user_group_id"`
	Count       int       `gorm:"column:count"`
	Status      string    `gorm:"column:status"`
	StartedAt   time.Time `gorm:"column:started_at"`
	EndedAt     time.Time `gorm:"column:ended_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (BulkPass) TableName() string { return "bulk_passes" }
