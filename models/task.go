package models

import "time"

// Cadence values accepted for a check-in task.
const (
	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
)

// CheckinTask is a habit a user checks in against. StreakDays and TotalCount
// are maintained by the check-in transaction; deleting a task keeps its
// historical records.
type CheckinTask struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Cadence       string     `gorm:"size:16;default:'daily'" json:"cadence"`
	TargetDays    int        `gorm:"default:0" json:"target_days"`
	StreakDays    int        `gorm:"default:0" json:"streak_days"`
	TotalCount    int        `gorm:"default:0" json:"total_count"`
	LastCheckTime *time.Time `json:"last_check_time"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidCadence reports whether the given cadence kind is supported.
func ValidCadence(c string) bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	}
	return false
}
