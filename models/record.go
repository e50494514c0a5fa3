package models

import "time"

// CheckinRecord is one ledger entry: a single check-in for a task on a
// calendar day. Rows are append-only and never updated. The composite unique
// index is what enforces the one-per-day rule even under concurrent writes.
type CheckinRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"index:idx_task_day,unique;not null" json:"task_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CheckDate time.Time `gorm:"index:idx_task_day,unique;index;type:date;not null" json:"check_date"`
	Note      string    `gorm:"size:500" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
