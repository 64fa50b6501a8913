package entity

import "time"

// UserGroupMapping links one user to one user group. Groups are managed
// externally; the pipeline only reads them to resolve bulk order targets.
type UserGroupMapping struct {
	MappingSeq  int64     `gorm:"column:mapping_seq;primaryKey;autoIncrement"`
	UserGroupID string    `gorm:"column:user_group_id"`
	UserID      string    `gorm:"column:user_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (UserGroupMapping) TableName() string { return "user_group_mappings" }
