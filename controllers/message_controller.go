package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// MessageController serves the notification inbox: reminder messages, their
// read state, and the unread badge count.
type MessageController struct {
	db *gorm.DB
}

// NewMessageController creates a new controller instance.
func NewMessageController(db *gorm.DB) *MessageController {
	return &MessageController{db: db}
}

// MessageInfo is a message joined with its sender's public fields.
type MessageInfo struct {
	ID              uint      `json:"id"`
	SenderID        uint      `json:"sender_id"`
	Kind            string    `json:"kind"`
	Content         string    `json:"content"`
	ReadStatus      bool      `json:"read_status"`
	CreatedAt       time.Time `json:"created_at"`
	SenderUsername  string    `json:"sender_username"`
	SenderNickname  string    `json:"sender_nickname"`
	SenderAvatarURL string    `json:"sender_avatar_url"`
}

// List returns the caller's messages, newest first.
func (m *MessageController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := m.db.Model(&models.Message{}).Where("receiver_id = ?", userID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to count messages")
		return
	}

	var messages []MessageInfo
	if err := m.db.Model(&models.Message{}).
		Select("messages.id, messages.sender_id, messages.kind, messages.content, messages.read_status, messages.created_at, "+
			"users.username AS sender_username, users.nickname AS sender_nickname, users.avatar_url AS sender_avatar_url").
		Joins("JOIN users ON users.id = messages.sender_id").
		Where("messages.receiver_id = ?", userID).
		Order("messages.created_at DESC, messages.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&messages).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list messages")
		return
	}

	utils.Success(ctx, gin.H{
		"items": messages,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}

// MarkRead flips a message to read. The transition is one-way and idempotent:
// marking an already-read message succeeds without touching the row.
func (m *MessageController) MarkRead(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	messageID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40015, "invalid message id")
		return
	}

	var message models.Message
	if err := m.db.Where("id = ? AND receiver_id = ?", messageID, userID).First(&message).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40422, "message not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load message")
		return
	}

	if !message.ReadStatus {
		if err := m.db.Model(&message).Update("read_status", true).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to mark message read")
			return
		}
	}

	utils.Success(ctx, gin.H{"message": "marked read"})
}

// UnreadCount returns the caller's unread message count.
func (m *MessageController) UnreadCount(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var count int64
	if err := m.db.Model(&models.Message{}).
		Where("receiver_id = ? AND read_status = ?", userID, false).
		Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to count unread messages")
		return
	}

	utils.Success(ctx, gin.H{"unread_count": count})
}
