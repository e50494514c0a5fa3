package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/hxu/daka/models"
)

func TestRefreshCountsLedger(t *testing.T) {
	db := newTestDB(t)
	s := NewStatsController(db)
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "run")

	for _, offset := range []int{-2, -1, 0} {
		rec := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: day(offset)}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
	db.Model(&models.CheckinTask{}).Where("id = ?", task.ID).Update("streak_days", 3)

	if err := s.Refresh(models.ScopeGlobal); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var snap models.StatsSnapshot
	if err := db.Where("scope = ?", models.ScopeGlobal).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.TotalCheckins != 3 {
		t.Fatalf("total = %d, want 3", snap.TotalCheckins)
	}
	if snap.MaxStreak != 3 {
		t.Fatalf("max streak = %d, want 3", snap.MaxStreak)
	}
}

func TestRefreshMonthBoundary(t *testing.T) {
	db := newTestDB(t)
	s := NewStatsController(db)
	user := createTestUser(t, db, "alice")
	task := createTestTask(t, db, user.ID, "run")

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	inMonth := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: monthStart}
	lastMonth := models.CheckinRecord{TaskID: task.ID, UserID: user.ID, CheckDate: monthStart.AddDate(0, 0, -1)}
	for _, rec := range []*models.CheckinRecord{&inMonth, &lastMonth} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	if err := s.Refresh(models.ScopeGlobal); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var snap models.StatsSnapshot
	if err := db.Where("scope = ?", models.ScopeGlobal).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.TotalCheckins != 2 {
		t.Fatalf("total = %d, want 2", snap.TotalCheckins)
	}
	if snap.ThisMonth != 1 {
		t.Fatalf("this month = %d, want 1", snap.ThisMonth)
	}
}

func TestRefreshUserScopeIsolated(t *testing.T) {
	db := newTestDB(t)
	s := NewStatsController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	aliceTask := createTestTask(t, db, alice.ID, "run")
	bobTask := createTestTask(t, db, bob.ID, "read")

	for i := 0; i < 2; i++ {
		rec := models.CheckinRecord{TaskID: aliceTask.ID, UserID: alice.ID, CheckDate: day(-i)}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
	rec := models.CheckinRecord{TaskID: bobTask.ID, UserID: bob.ID, CheckDate: day(0)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := s.Refresh(models.UserScope(alice.ID)); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var snap models.StatsSnapshot
	if err := db.Where("scope = ?", models.UserScope(alice.ID)).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.TotalCheckins != 2 {
		t.Fatalf("total = %d, want 2", snap.TotalCheckins)
	}
}

func TestGetStatsFirstAccess(t *testing.T) {
	db := newTestDB(t)
	s := NewStatsController(db)

	// No snapshot exists yet; first read computes a zeroed one.
	status, env := perform(t, s.GetStats, http.MethodGet, "/api/v1/stats", nil, 0, nil)
	mustStatus(t, status, http.StatusOK, env)

	var snap models.StatsSnapshot
	decodeData(t, env, &snap)
	if snap.Scope != models.ScopeGlobal {
		t.Fatalf("scope = %q, want %q", snap.Scope, models.ScopeGlobal)
	}
	if snap.TotalCheckins != 0 || snap.ThisMonth != 0 || snap.MaxStreak != 0 {
		t.Fatalf("snapshot not zeroed: %+v", snap)
	}
}

func TestGetMyStatsSocialContext(t *testing.T) {
	db := newTestDB(t)
	s := NewStatsController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	fc := NewFriendController(db)
	if err := fc.addFriend(alice.ID, bob.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}
	if err := fc.addFriend(alice.ID, carol.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}

	// Bob checked in today, carol did not.
	bobTask := createTestTask(t, db, bob.ID, "read")
	rec := models.CheckinRecord{TaskID: bobTask.ID, UserID: bob.ID, CheckDate: day(0)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	status, env := perform(t, s.GetMyStats, http.MethodGet, "/api/v1/stats/me", nil, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var payload struct {
		Snapshot            models.StatsSnapshot `json:"snapshot"`
		FriendCount         int64                `json:"friend_count"`
		NotCheckedInFriends int64                `json:"not_checked_in_friends"`
	}
	decodeData(t, env, &payload)
	if payload.FriendCount != 2 {
		t.Fatalf("friend count = %d, want 2", payload.FriendCount)
	}
	if payload.NotCheckedInFriends != 1 {
		t.Fatalf("not checked in = %d, want 1", payload.NotCheckedInFriends)
	}
	if payload.Snapshot.Scope != models.UserScope(alice.ID) {
		t.Fatalf("scope = %q, want %q", payload.Snapshot.Scope, models.UserScope(alice.ID))
	}
}

func TestScopeUserID(t *testing.T) {
	if id, ok := scopeUserID("user:42"); !ok || id != 42 {
		t.Fatalf("user:42 = (%d, %v), want (42, true)", id, ok)
	}
	for _, scope := range []string{models.ScopeGlobal, "user:", "user:0", "user:abc"} {
		if _, ok := scopeUserID(scope); ok {
			t.Fatalf("scope %q parsed as user scope", scope)
		}
	}
}
