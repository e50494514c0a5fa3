package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/config"
	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// CheckinController owns the check-in ledger: the append-only record store
// and the transaction that keeps task counters consistent with it.
type CheckinController struct {
	db    *gorm.DB
	stats *StatsController
}

// NewCheckinController creates a new controller instance.
func NewCheckinController(db *gorm.DB, stats *StatsController) *CheckinController {
	return &CheckinController{db: db, stats: stats}
}

// submitRetries bounds transparent retries of a conflicted check-in commit.
const submitRetries = 3

type checkinResult struct {
	Record     models.CheckinRecord `json:"record"`
	StreakDays int                  `json:"streak_days"`
	TotalCount int                  `json:"total_count"`
}

// Submit records a check-in for one of the caller's tasks. At most one record
// may exist per task per calendar day; the record insert, the counter
// increment and the streak recompute commit together or not at all.
func (c *CheckinController) Submit(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		TaskID uint   `json:"task_id" binding:"required"`
		Note   string `json:"note"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	note := utils.Sanitize(strings.TrimSpace(req.Note))
	if len([]rune(note)) > 500 {
		utils.Error(ctx, http.StatusBadRequest, 40011, "note too long")
		return
	}

	result, err := c.submit(userID, req.TaskID, time.Now(), note)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		case errors.Is(err, errAlreadyCheckedIn):
			utils.Error(ctx, http.StatusBadRequest, 40030, "already checked in today")
		case errors.Is(err, errWriteConflict):
			utils.Error(ctx, http.StatusConflict, 40901, "check-in conflicted, please retry")
		default:
			utils.Sugar.Errorf("check-in failed user=%d task=%d: %v", userID, req.TaskID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to record check-in")
		}
		return
	}

	// Stats are a derived view; refresh after the commit and never fail the
	// check-in over it.
	if err := c.stats.Refresh(models.ScopeGlobal); err != nil {
		utils.Sugar.Warnf("global stats refresh failed: %v", err)
	}
	if err := c.stats.Refresh(models.UserScope(userID)); err != nil {
		utils.Sugar.Warnf("user stats refresh failed user=%d: %v", userID, err)
	}

	utils.Success(ctx, result)
}

// submit retries conflicted commits a bounded number of times, then surfaces
// the conflict to the caller.
func (c *CheckinController) submit(userID, taskID uint, now time.Time, note string) (*checkinResult, error) {
	var lastErr error
	for attempt := 0; attempt < submitRetries; attempt++ {
		result, err := c.trySubmit(userID, taskID, now, note)
		if err == nil || !isRetryableConflict(err) {
			return result, err
		}
		lastErr = err
	}
	utils.Sugar.Warnf("check-in gave up after %d conflicts task=%d: %v", submitRetries, taskID, lastErr)
	return nil, errWriteConflict
}

func (c *CheckinController) trySubmit(userID, taskID uint, now time.Time, note string) (*checkinResult, error) {
	day := dayStart(now)
	lookback := config.Get().StreakLookbackDays

	var result checkinResult
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var task models.CheckinTask
		if err := tx.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error; err != nil {
			return err
		}

		var dup int64
		if err := tx.Model(&models.CheckinRecord{}).
			Where("task_id = ? AND check_date = ?", taskID, day).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return errAlreadyCheckedIn
		}

		record := models.CheckinRecord{
			TaskID:    taskID,
			UserID:    userID,
			CheckDate: day,
			Note:      note,
		}
		if err := tx.Create(&record).Error; err != nil {
			// The unique (task_id, check_date) index is the arbiter: the
			// losing writer of a same-day race lands here.
			if isUniqueViolation(err) {
				return errAlreadyCheckedIn
			}
			return err
		}

		var dates []time.Time
		if err := tx.Model(&models.CheckinRecord{}).
			Where("task_id = ?", taskID).
			Order("check_date DESC").
			Limit(lookback).
			Pluck("check_date", &dates).Error; err != nil {
			return err
		}
		streak := computeStreak(dates, day)

		if err := tx.Model(&models.CheckinTask{}).Where("id = ?", taskID).Updates(map[string]interface{}{
			"total_count":     gorm.Expr("total_count + ?", 1),
			"streak_days":     streak,
			"last_check_time": now,
		}).Error; err != nil {
			return err
		}

		result = checkinResult{
			Record:     record,
			StreakDays: streak,
			TotalCount: task.TotalCount + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMyRecords returns the caller's check-in history, newest first.
func (c *CheckinController) ListMyRecords(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	c.listRecords(ctx, c.db.Where("user_id = ?", userID))
}

// ListTaskRecords returns one task's ledger entries, newest first. Records
// survive task deletion, so no join against the task registry here.
func (c *CheckinController) ListTaskRecords(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	taskID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid task id")
		return
	}
	c.listRecords(ctx, c.db.Where("task_id = ? AND user_id = ?", taskID, userID))
}

func (c *CheckinController) listRecords(ctx *gin.Context, query *gorm.DB) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var records []models.CheckinRecord
	var total int64
	if err := query.Model(&models.CheckinRecord{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to count records")
		return
	}
	if err := query.Order("check_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to list records")
		return
	}

	utils.Success(ctx, gin.H{
		"items": records,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}
