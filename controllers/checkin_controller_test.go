package controllers

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hxu/daka/models"
)

func TestSubmitFirstCheckin(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsController(db)
	c := NewCheckinController(db, stats)
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "morning run")

	status, env := perform(t, c.Submit, http.MethodPost, "/api/v1/checkin",
		map[string]interface{}{"task_id": task.ID, "note": "done"}, user.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var result checkinResult
	decodeData(t, env, &result)
	if result.StreakDays != 1 {
		t.Fatalf("streak = %d, want 1", result.StreakDays)
	}
	if result.TotalCount != 1 {
		t.Fatalf("total = %d, want 1", result.TotalCount)
	}
	if result.Record.Note != "done" {
		t.Fatalf("note = %q, want %q", result.Record.Note, "done")
	}

	var count int64
	db.Model(&models.CheckinRecord{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 1 {
		t.Fatalf("record count = %d, want 1", count)
	}

	var reloaded models.CheckinTask
	db.First(&reloaded, task.ID)
	if reloaded.TotalCount != 1 || reloaded.StreakDays != 1 {
		t.Fatalf("task counters = (%d, %d), want (1, 1)", reloaded.TotalCount, reloaded.StreakDays)
	}
	if reloaded.LastCheckTime == nil {
		t.Fatal("last_check_time not set")
	}
}

func TestSubmitSameDayTwiceFails(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "reading")

	status, env := perform(t, c.Submit, http.MethodPost, "/api/v1/checkin",
		map[string]interface{}{"task_id": task.ID}, user.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	status, env = perform(t, c.Submit, http.MethodPost, "/api/v1/checkin",
		map[string]interface{}{"task_id": task.ID}, user.ID, nil)
	mustStatus(t, status, http.StatusBadRequest, env)
	if env.Code != 40030 {
		t.Fatalf("code = %d, want 40030", env.Code)
	}

	var count int64
	db.Model(&models.CheckinRecord{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 1 {
		t.Fatalf("record count = %d, want 1", count)
	}

	var reloaded models.CheckinTask
	db.First(&reloaded, task.ID)
	if reloaded.TotalCount != 1 {
		t.Fatalf("total after duplicate = %d, want 1", reloaded.TotalCount)
	}
}

func TestSubmitConcurrentSameDay(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "meditation")

	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.submit(user.ID, task.ID, time.Now(), "")
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		switch err {
		case nil:
			successes++
		case errAlreadyCheckedIn, errWriteConflict:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}

	var count int64
	db.Model(&models.CheckinRecord{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 1 {
		t.Fatalf("record count = %d, want 1", count)
	}
}

func TestSubmitStreakContiguity(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "journal")

	// Two consecutive prior days, then today: streak 3.
	for _, offset := range []int{-2, -1} {
		rec := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: day(offset)}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed record offset %d: %v", offset, err)
		}
	}

	result, err := c.submit(user.ID, task.ID, time.Now(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.StreakDays != 3 {
		t.Fatalf("streak = %d, want 3", result.StreakDays)
	}
}

func TestSubmitStreakResetsAfterGap(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "journal")

	// Checked in three and two days ago, skipped yesterday: today restarts at 1.
	for _, offset := range []int{-3, -2} {
		rec := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: day(offset)}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed record offset %d: %v", offset, err)
		}
	}

	result, err := c.submit(user.ID, task.ID, time.Now(), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.StreakDays != 1 {
		t.Fatalf("streak = %d, want 1", result.StreakDays)
	}
}

func TestSubmitTaskNotOwned(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	owner := createTestUser(t, db, "alice")
	other := createTestUser(t, db, "bob")
	task := createTestTask(t, db, owner.ID, "owned task")

	status, env := perform(t, c.Submit, http.MethodPost, "/api/v1/checkin",
		map[string]interface{}{"task_id": task.ID}, other.ID, nil)
	mustStatus(t, status, http.StatusNotFound, env)

	var count int64
	db.Model(&models.CheckinRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("record count = %d, want 0", count)
	}
}

func TestSubmitRefreshesStats(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsController(db)
	c := NewCheckinController(db, stats)
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "stretch")

	status, env := perform(t, c.Submit, http.MethodPost, "/api/v1/checkin",
		map[string]interface{}{"task_id": task.ID}, user.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	// Read-your-writes: the committed check-in is visible to stats reads.
	status, env = perform(t, stats.GetStats, http.MethodGet, "/api/v1/stats", nil, 0, nil)
	mustStatus(t, status, http.StatusOK, env)

	var snap models.StatsSnapshot
	decodeData(t, env, &snap)
	if snap.TotalCheckins != 1 {
		t.Fatalf("total checkins = %d, want 1", snap.TotalCheckins)
	}
	if snap.ThisMonth != 1 {
		t.Fatalf("this month = %d, want 1", snap.ThisMonth)
	}
	if snap.MaxStreak != 1 {
		t.Fatalf("max streak = %d, want 1", snap.MaxStreak)
	}
}

func TestListMyRecords(t *testing.T) {
	db := newTestDB(t)
	c := NewCheckinController(db, NewStatsController(db))
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "walk")

	for _, offset := range []int{-2, -1, 0} {
		rec := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: day(offset)}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	status, env := perform(t, c.ListMyRecords, http.MethodGet, "/api/v1/records", nil, user.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var payload struct {
		Items      []models.CheckinRecord `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	decodeData(t, env, &payload)
	if payload.Pagination.Total != 3 {
		t.Fatalf("total = %d, want 3", payload.Pagination.Total)
	}
	if len(payload.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(payload.Items))
	}
	// Newest first.
	if !payload.Items[0].CheckDate.After(payload.Items[2].CheckDate) {
		t.Fatalf("records not ordered newest first")
	}
}
