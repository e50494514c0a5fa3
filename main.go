package main

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/hxu/daka/config"
	"github.com/hxu/daka/controllers"
	"github.com/hxu/daka/models"
	"github.com/hxu/daka/routes"
	"github.com/hxu/daka/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.CheckinTask{},
		&models.CheckinRecord{},
		&models.Friendship{},
		&models.Message{},
		&models.StatsSnapshot{},
	)

	r := routes.SetupRouter(db)

	// Periodic full recompute keeps the global snapshot honest even if a
	// post-commit refresh was ever skipped.
	stats := controllers.NewStatsController(db)
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %dm", cfg.StatsRefreshMinutes), func() {
		if err := stats.Refresh(models.ScopeGlobal); err != nil {
			utils.Sugar.Warnf("scheduled stats refresh failed: %v", err)
		}
	}); err != nil {
		utils.Sugar.Warnf("failed to schedule stats refresh: %v", err)
	}
	c.Start()
	defer c.Stop()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
