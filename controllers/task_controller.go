package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// TaskController manages the check-in task registry.
type TaskController struct {
	db *gorm.DB
}

// NewTaskController creates a new controller instance.
func NewTaskController(db *gorm.DB) *TaskController {
	return &TaskController{db: db}
}

// Create registers a new check-in task for the caller.
func (t *TaskController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Title      string `json:"title" binding:"required,min=1"`
		Cadence    string `json:"cadence"`
		TargetDays int    `json:"target_days"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40016, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40017, "title cannot be empty")
		return
	}
	if len([]rune(title)) > 200 {
		utils.Error(ctx, http.StatusBadRequest, 40017, "title too long")
		return
	}

	cadence := req.Cadence
	if cadence == "" {
		cadence = models.CadenceDaily
	}
	if !models.ValidCadence(cadence) {
		utils.Error(ctx, http.StatusBadRequest, 40018, "invalid cadence")
		return
	}
	if req.TargetDays < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40019, "invalid target days")
		return
	}

	task := models.CheckinTask{
		UserID:     userID,
		Title:      title,
		Cadence:    cadence,
		TargetDays: req.TargetDays,
	}
	if err := t.db.Create(&task).Error; err != nil {
		utils.Sugar.Errorf("create task failed user=%d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to create task")
		return
	}

	utils.Success(ctx, gin.H{"task": task})
}

// List returns the caller's tasks, newest first.
func (t *TaskController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var tasks []models.CheckinTask
	if err := t.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to list tasks")
		return
	}

	utils.Success(ctx, gin.H{"tasks": tasks})
}

// Delete removes one of the caller's tasks. The task's check-in records stay
// behind as historical ledger entries keyed by task id.
func (t *TaskController) Delete(ctx *gin.Context) {
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

	res := t.db.Where("id = ? AND user_id = ?", taskID, userID).Delete(&models.CheckinTask{})
	if res.Error != nil {
		utils.Sugar.Errorf("delete task failed user=%d task=%d: %v", userID, taskID, res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to delete task")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		return
	}

	utils.Success(ctx, gin.H{"message": "task deleted"})
}
