package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/config"
	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// FriendController maintains the social graph and its intimacy ranking, and
// issues check-in reminders. Reminding a friend bumps the edge's intimacy, so
// frequently-reminded friends float to the top of the listing.
type FriendController struct {
	db *gorm.DB
}

// NewFriendController creates a new controller instance.
func NewFriendController(db *gorm.DB) *FriendController {
	return &FriendController{db: db}
}

// topNotCheckedInLimit caps the high-intimacy reminder shortlist.
const topNotCheckedInLimit = 10

// FriendInfo is the fixed per-friend result shape for all listings.
type FriendInfo struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	Intimacy  int       `json:"intimacy"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the caller's friends ordered by intimacy descending. Ties
// break on friend id ascending so pages stay stable between requests.
func (f *FriendController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	cacheKey := fmt.Sprintf("cache:friends:%d:page=%d:size=%d", userID, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var total int64
	if err := f.db.Model(&models.Friendship{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to count friends")
		return
	}

	var friends []FriendInfo
	if err := f.friendQuery(userID).
		Order("friendships.intimacy DESC, friendships.friend_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&friends).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list friends")
		return
	}

	payload := gin.H{
		"friends":      friends,
		"total_count":  total,
		"current_page": page,
		"page_size":    pageSize,
		"total_pages":  int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, 10*time.Minute)
	utils.Success(ctx, payload)
}

// ListNotCheckedIn returns friends with no ledger entry dated today, newest
// friendships first. Friends without any task count as not checked in.
func (f *FriendController) ListNotCheckedIn(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var friends []FriendInfo
	if err := f.notCheckedInQuery(userID).
		Order("friendships.created_at DESC").
		Scan(&friends).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to list friends")
		return
	}
	utils.Success(ctx, gin.H{"friends": friends})
}

// ListTopNotCheckedIn returns the highest-intimacy friends who have not
// checked in today: the shortlist worth reminding.
func (f *FriendController) ListTopNotCheckedIn(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var friends []FriendInfo
	if err := f.notCheckedInQuery(userID).
		Order("friendships.intimacy DESC, friendships.friend_id ASC").
		Limit(topNotCheckedInLimit).
		Scan(&friends).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to list friends")
		return
	}
	utils.Success(ctx, gin.H{"friends": friends})
}

// Add creates the symmetric friend edge pair. Both directed rows share one
// creation timestamp and start from the configured intimacy base.
func (f *FriendController) Add(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		FriendID uint `json:"friend_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "invalid request payload")
		return
	}

	err := f.addFriend(userID, req.FriendID)
	if err != nil {
		switch {
		case errors.Is(err, errSelfOperation):
			utils.Error(ctx, http.StatusBadRequest, 40043, "cannot friend yourself")
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.Error(ctx, http.StatusNotFound, 40421, "user not found")
		case errors.Is(err, errAlreadyFriends):
			utils.Error(ctx, http.StatusBadRequest, 40041, "already friends")
		default:
			utils.Sugar.Errorf("add friend failed user=%d friend=%d: %v", userID, req.FriendID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to add friend")
		}
		return
	}

	f.invalidateFriendCaches(userID, req.FriendID)
	utils.Success(ctx, gin.H{"message": "friend added"})
}

func (f *FriendController) addFriend(userID, friendID uint) error {
	if userID == friendID {
		return errSelfOperation
	}

	base := config.Get().IntimacyBase
	return f.db.Transaction(func(tx *gorm.DB) error {
		var friend models.User
		if err := tx.First(&friend, friendID).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Friendship{}).
			Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
				userID, friendID, friendID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errAlreadyFriends
		}

		// Same epoch on both rows keeps the pair symmetric.
		now := time.Now()
		edges := []models.Friendship{
			{UserID: userID, FriendID: friendID, Intimacy: base, CreatedAt: now},
			{UserID: friendID, FriendID: userID, Intimacy: base, CreatedAt: now},
		}
		if err := tx.Create(&edges).Error; err != nil {
			if isUniqueViolation(err) {
				return errAlreadyFriends
			}
			return err
		}
		return nil
	})
}

// Remind sends a check-in reminder to a friend: bumps the directed edge's
// intimacy in place and records a reminder message for the friend.
func (f *FriendController) Remind(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	friendID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid friend id")
		return
	}
	if friendID == userID {
		utils.Error(ctx, http.StatusBadRequest, 40043, "cannot remind yourself")
		return
	}

	cfg := config.Get()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		// Increment-in-place so concurrent reminders never lose updates.
		res := tx.Model(&models.Friendship{}).
			Where("user_id = ? AND friend_id = ?", userID, friendID).
			Update("intimacy", gorm.Expr("intimacy + ?", cfg.RemindIntimacyDelta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotFriend
		}

		message := models.Message{
			SenderID:   userID,
			ReceiverID: friendID,
			Kind:       models.MessageKindReminder,
			Content:    cfg.RemindContent,
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, errNotFriend):
			utils.Error(ctx, http.StatusBadRequest, 40042, "not friends")
		default:
			utils.Sugar.Errorf("remind failed user=%d friend=%d: %v", userID, friendID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to send reminder")
		}
		return
	}

	f.invalidateFriendCaches(userID, friendID)
	utils.Success(ctx, gin.H{"message": "reminder sent"})
}

// friendQuery joins the caller's directed edges with user rows.
func (f *FriendController) friendQuery(userID uint) *gorm.DB {
	return f.db.Model(&models.Friendship{}).
		Select("users.id, users.username, users.nickname, users.avatar_url, friendships.intimacy, friendships.created_at").
		Joins("JOIN users ON users.id = friendships.friend_id").
		Where("friendships.user_id = ?", userID)
}

// notCheckedInQuery filters friendQuery down to friends with no record today.
func (f *FriendController) notCheckedInQuery(userID uint) *gorm.DB {
	today := dayStart(time.Now())
	return f.friendQuery(userID).
		Where("friendships.friend_id NOT IN (?)",
			f.db.Model(&models.CheckinRecord{}).
				Distinct("user_id").
				Where("check_date = ?", today))
}

func (f *FriendController) invalidateFriendCaches(ids ...uint) {
	for _, id := range ids {
		utils.InvalidateByPrefix("cache:friends:" + strconv.Itoa(int(id)) + ":")
	}
}
