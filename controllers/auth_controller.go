package controllers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/models"
	"github.com/hxu/daka/utils"
)

// AuthController handles registration, login, and profile management. It is
// the session provider for everything else: every core operation receives the
// caller's identity from the JWT placed here, never from ambient state.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new controller instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

const tokenTTL = 72 * time.Hour

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_\p{Han}]{3,20}$`)
	emailRe    = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	phoneRe    = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// publicUser is the response shape for user data; it never carries the
// password hash or other private fields.
type publicUser struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url"`
}

func toPublicUser(u models.User) publicUser {
	avatar := u.AvatarURL
	if avatar == "" {
		avatar = "/images/default-avatar.png"
	}
	return publicUser{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Email:     u.Email,
		AvatarURL: avatar,
	}
}

// Register creates an account. A referrer id, when present and valid, links
// the new user and the referrer as friends right away.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username   string `json:"username" binding:"required"`
		Password   string `json:"password" binding:"required,min=6"`
		Nickname   string `json:"nickname"`
		Email      string `json:"email"`
		AvatarURL  string `json:"avatar_url"`
		ReferrerID uint   `json:"referrer_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	if !usernameRe.MatchString(username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-20 letters, digits, underscores or CJK")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !emailRe.MatchString(email) {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid email format")
		return
	}
	nickname := utils.Sanitize(strings.TrimSpace(req.Nickname))
	if nickname == "" {
		nickname = username
	}
	avatar := strings.TrimSpace(req.AvatarURL)

	var existing models.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40902, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		Nickname:     nickname,
		Email:        email,
		AvatarURL:    avatar,
		PasswordHash: hash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			utils.Error(ctx, http.StatusConflict, 40902, "username already exists")
			return
		}
		utils.Sugar.Errorf("register failed username=%s: %v", username, err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	// Referral friendship is best-effort: a bad referrer never fails signup.
	if req.ReferrerID != 0 && req.ReferrerID != user.ID {
		if err := NewFriendController(a.db).addFriend(user.ID, req.ReferrerID); err != nil {
			utils.Sugar.Debugf("referral friendship skipped user=%d referrer=%d: %v", user.ID, req.ReferrerID, err)
		}
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  toPublicUser(user),
	})
}

// Login verifies credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  toPublicUser(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, toPublicUser(user))
}

// GetUserPublic returns public profile fields for any user id.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid user id")
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}

	pub := toPublicUser(user)
	pub.Email = "" // email is private
	utils.Success(ctx, pub)
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Nickname  *string `json:"nickname"`
		Phone     *string `json:"phone"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid request payload")
		return
	}
	if req.Nickname == nil && req.Phone == nil && req.AvatarURL == nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "no fields to update")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	if req.Nickname != nil {
		user.Nickname = utils.Sanitize(strings.TrimSpace(*req.Nickname))
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" && !phoneRe.MatchString(phone) {
			utils.Error(ctx, http.StatusBadRequest, 40008, "invalid phone format")
			return
		}
		user.Phone = phone
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to update profile")
		return
	}
	utils.Success(ctx, toPublicUser(user))
}

// ChangePassword verifies the old password and stores a new hash.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=6"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40009, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.OldPassword) {
		utils.Error(ctx, http.StatusUnauthorized, 40109, "old password incorrect")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to hash password")
		return
	}
	if err := a.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to update password")
		return
	}

	utils.Success(ctx, gin.H{"message": "password changed"})
}
