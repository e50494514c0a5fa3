package models

import (
	"strconv"
	"time"
)

// Stats scopes. Per-user scopes are built with UserScope.
const (
	ScopeGlobal = "global"
)

// StatsSnapshot is a derived aggregate over the check-in ledger for one
// scope. It is recomputable at any time and never a source of truth.
type StatsSnapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Scope         string    `gorm:"size:64;uniqueIndex;not null" json:"scope"`
	TotalCheckins int64     `gorm:"not null;default:0" json:"total_checkins"`
	ThisMonth     int64     `gorm:"not null;default:0" json:"this_month"`
	MaxStreak     int       `gorm:"not null;default:0" json:"max_streak"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserScope returns the snapshot scope key for a single user.
func UserScope(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}
