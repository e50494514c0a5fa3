package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hxu/daka/config"
	"github.com/hxu/daka/controllers"
	"github.com/hxu/daka/middleware"
	"github.com/hxu/daka/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}
	r.Use(middleware.RequestID())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	taskController := controllers.NewTaskController(db)
	statsController := controllers.NewStatsController(db)
	checkinController := controllers.NewCheckinController(db, statsController)
	friendController := controllers.NewFriendController(db)
	messageController := controllers.NewMessageController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)
	authGroup.POST("/change-password", middleware.AuthRequired(), authController.ChangePassword)

	// Public endpoints
	api.GET("/stats", statsController.GetStats)
	api.GET("/users/:id", authController.GetUserPublic)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/tasks", taskController.Create)
	protected.GET("/tasks", taskController.List)
	protected.DELETE("/tasks/:id", taskController.Delete)
	protected.GET("/tasks/:id/records", checkinController.ListTaskRecords)

	protected.POST("/checkin", checkinController.Submit)
	protected.GET("/records", checkinController.ListMyRecords)

	protected.GET("/stats/me", statsController.GetMyStats)

	protected.GET("/friends", friendController.List)
	protected.GET("/friends/not-checked-in", friendController.ListNotCheckedIn)
	protected.GET("/friends/not-checked-in/top", friendController.ListTopNotCheckedIn)
	protected.POST("/friends", friendController.Add)
	protected.POST("/friends/:id/remind", friendController.Remind)

	protected.GET("/messages", messageController.List)
	protected.PUT("/messages/:id/read", messageController.MarkRead)
	protected.GET("/messages/unread-count", messageController.UnreadCount)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
