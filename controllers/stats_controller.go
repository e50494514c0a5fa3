package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// StatsController maintains and serves aggregate snapshots derived from the
// check-in ledger. Snapshots are an analytics view: recomputable, allowed to
// lag in-flight writes, never the source of truth.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// Refresh recomputes one scope's snapshot from the ledger and the task
// registry and upserts it. A scope with no data gets a zeroed snapshot.
func (s *StatsController) Refresh(scope string) error {
	records := s.db.Model(&models.CheckinRecord{})
	tasks := s.db.Model(&models.CheckinTask{})
	if userID, ok := scopeUserID(scope); ok {
		records = records.Where("user_id = ?", userID)
		tasks = tasks.Where("user_id = ?", userID)
	}

	var total int64
	if err := records.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var thisMonth int64
	if err := records.Session(&gorm.Session{}).Where("check_date >= ?", monthStart).Count(&thisMonth).Error; err != nil {
		return err
	}

	var maxStreak int
	if err := tasks.Select("COALESCE(MAX(streak_days), 0)").Scan(&maxStreak).Error; err != nil {
		return err
	}

	snapshot := models.StatsSnapshot{
		Scope:         scope,
		TotalCheckins: total,
		ThisMonth:     thisMonth,
		MaxStreak:     maxStreak,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_checkins", "this_month", "max_streak", "updated_at"}),
	}).Create(&snapshot).Error
}

// snapshot returns the stored snapshot for a scope, computing it on first
// access instead of failing.
func (s *StatsController) snapshot(scope string) (*models.StatsSnapshot, error) {
	var snap models.StatsSnapshot
	err := s.db.Where("scope = ?", scope).First(&snap).Error
	if err == nil {
		return &snap, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := s.Refresh(scope); err != nil {
		return nil, err
	}
	if err := s.db.Where("scope = ?", scope).First(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetStats returns the global aggregate snapshot.
func (s *StatsController) GetStats(ctx *gin.Context) {
	snap, err := s.snapshot(models.ScopeGlobal)
	if err != nil {
		utils.Sugar.Errorf("load global stats: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load stats")
		return
	}
	utils.Success(ctx, snap)
}

// GetMyStats returns the caller's snapshot plus the social context the
// dashboard shows next to it: recent check-ins, friend count, and how many
// friends have not checked in today.
func (s *StatsController) GetMyStats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	snap, err := s.snapshot(models.UserScope(userID))
	if err != nil {
		utils.Sugar.Errorf("load user stats user=%d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load stats")
		return
	}

	var recent []models.CheckinRecord
	if err := s.db.Where("user_id = ?", userID).
		Order("check_date DESC").
		Limit(5).
		Find(&recent).Error; err != nil {
		recent = nil
	}

	var friendCount int64
	if err := s.db.Model(&models.Friendship{}).Where("user_id = ?", userID).Count(&friendCount).Error; err != nil {
		friendCount = 0
	}

	notCheckedIn, err := s.countNotCheckedInFriends(userID)
	if err != nil {
		notCheckedIn = 0
	}

	utils.Success(ctx, gin.H{
		"snapshot":               snap,
		"recent_checkins":        recent,
		"friend_count":           friendCount,
		"not_checked_in_friends": notCheckedIn,
	})
}

// countNotCheckedInFriends counts friends without any ledger entry dated
// today. A friend with no tasks at all therefore counts as not checked in.
func (s *StatsController) countNotCheckedInFriends(userID uint) (int64, error) {
	var friendIDs []uint
	if err := s.db.Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &friendIDs).Error; err != nil {
		return 0, err
	}
	friendIDs = utils.UniqueUint(friendIDs)
	if len(friendIDs) == 0 {
		return 0, nil
	}

	today := dayStart(time.Now())
	var checkedIn []uint
	if err := s.db.Model(&models.CheckinRecord{}).
		Distinct("user_id").
		Where("user_id IN ? AND check_date = ?", friendIDs, today).
		Pluck("user_id", &checkedIn).Error; err != nil {
		return 0, err
	}

	seen := make(map[uint]bool, len(checkedIn))
	for _, id := range checkedIn {
		seen[id] = true
	}
	var count int64
	for _, id := range friendIDs {
		if !seen[id] {
			count++
		}
	}
	return count, nil
}

func scopeUserID(scope string) (uint, bool) {
	raw, found := strings.CutPrefix(scope, "user:")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
