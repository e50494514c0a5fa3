package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hxu/daka/models"
)

// resetCache drops cached friend pages so tests with fresh databases never
// see another test's entries.
func resetCache(t *testing.T) {
	t.Helper()
	testRedis.FlushAll()
}

func TestAddFriendSymmetricPair(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	status, env := perform(t, f.Add, http.MethodPost, "/api/v1/friends",
		map[string]interface{}{"friend_id": bob.ID}, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var edges []models.Friendship
	if err := db.Order("user_id ASC").Find(&edges).Error; err != nil {
		t.Fatalf("load edges: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(edges))
	}
	if edges[0].UserID != alice.ID || edges[0].FriendID != bob.ID {
		t.Fatalf("forward edge = %d->%d", edges[0].UserID, edges[0].FriendID)
	}
	if edges[1].UserID != bob.ID || edges[1].FriendID != alice.ID {
		t.Fatalf("reverse edge = %d->%d", edges[1].UserID, edges[1].FriendID)
	}
	for _, e := range edges {
		if e.Intimacy != 10 {
			t.Fatalf("intimacy = %d, want 10", e.Intimacy)
		}
	}
	if !edges[0].CreatedAt.Equal(edges[1].CreatedAt) {
		t.Fatalf("edge timestamps differ: %v vs %v", edges[0].CreatedAt, edges[1].CreatedAt)
	}
}

func TestAddFriendSelf(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")

	status, env := perform(t, f.Add, http.MethodPost, "/api/v1/friends",
		map[string]interface{}{"friend_id": alice.ID}, alice.ID, nil)
	mustStatus(t, status, http.StatusBadRequest, env)
	if env.Code != 40043 {
		t.Fatalf("code = %d, want 40043", env.Code)
	}
}

func TestAddFriendDuplicate(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	if err := f.addFriend(alice.ID, bob.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}

	// Duplicate in either direction is rejected.
	if err := f.addFriend(alice.ID, bob.ID); err != errAlreadyFriends {
		t.Fatalf("repeat add = %v, want errAlreadyFriends", err)
	}
	if err := f.addFriend(bob.ID, alice.ID); err != errAlreadyFriends {
		t.Fatalf("reverse add = %v, want errAlreadyFriends", err)
	}

	var count int64
	db.Model(&models.Friendship{}).Count(&count)
	if count != 2 {
		t.Fatalf("edges = %d, want 2", count)
	}
}

func TestAddFriendUnknownUser(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")

	status, env := perform(t, f.Add, http.MethodPost, "/api/v1/friends",
		map[string]interface{}{"friend_id": 9999}, alice.ID, nil)
	mustStatus(t, status, http.StatusNotFound, env)
}

type friendPage struct {
	Friends     []FriendInfo `json:"friends"`
	TotalCount  int64        `json:"total_count"`
	CurrentPage int          `json:"current_page"`
	PageSize    int          `json:"page_size"`
	TotalPages  int          `json:"total_pages"`
}

func TestListFriendsPagination(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")

	for i := 0; i < 45; i++ {
		friend := createTestUser(t, db, fmt.Sprintf("friend%02d", i))
		if err := f.addFriend(alice.ID, friend.ID); err != nil {
			t.Fatalf("add friend %d: %v", i, err)
		}
	}

	sizes := map[int]int{1: 20, 2: 20, 3: 5}
	for page, wantLen := range sizes {
		target := fmt.Sprintf("/api/v1/friends?page=%d", page)
		status, env := perform(t, f.List, http.MethodGet, target, nil, alice.ID, nil)
		mustStatus(t, status, http.StatusOK, env)

		var got friendPage
		decodeData(t, env, &got)
		if len(got.Friends) != wantLen {
			t.Fatalf("page %d: friends = %d, want %d", page, len(got.Friends), wantLen)
		}
		if got.TotalCount != 45 {
			t.Fatalf("page %d: total = %d, want 45", page, got.TotalCount)
		}
		if got.TotalPages != 3 {
			t.Fatalf("page %d: total pages = %d, want 3", page, got.TotalPages)
		}
	}
}

func TestListFriendsRanking(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	dave := createTestUser(t, db, "dave")

	for _, friend := range []*models.User{bob, carol, dave} {
		if err := f.addFriend(alice.ID, friend.ID); err != nil {
			t.Fatalf("add friend: %v", err)
		}
	}

	// Equal intimacy orders by friend id ascending.
	status, env := perform(t, f.List, http.MethodGet, "/api/v1/friends", nil, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)
	var got friendPage
	decodeData(t, env, &got)
	if got.Friends[0].ID != bob.ID || got.Friends[1].ID != carol.ID || got.Friends[2].ID != dave.ID {
		t.Fatalf("tie order = %d,%d,%d, want %d,%d,%d",
			got.Friends[0].ID, got.Friends[1].ID, got.Friends[2].ID, bob.ID, carol.ID, dave.ID)
	}

	// Reminding dave three times lifts him above the tied pair.
	for i := 0; i < 3; i++ {
		status, env = perform(t, f.Remind, http.MethodPost, "/api/v1/friends/remind", nil, alice.ID,
			gin.Params{{Key: "id", Value: fmt.Sprint(dave.ID)}})
		mustStatus(t, status, http.StatusOK, env)
	}

	resetCache(t)
	status, env = perform(t, f.List, http.MethodGet, "/api/v1/friends", nil, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)
	decodeData(t, env, &got)
	if got.Friends[0].ID != dave.ID {
		t.Fatalf("top friend = %d, want %d", got.Friends[0].ID, dave.ID)
	}
	if got.Friends[0].Intimacy != 13 {
		t.Fatalf("intimacy = %d, want 13", got.Friends[0].Intimacy)
	}
}

func TestRemindIncrementsDirectedEdgeOnly(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	if err := f.addFriend(alice.ID, bob.ID); err != nil {
		t.Fatalf("add friend: %v", err)
	}

	status, env := perform(t, f.Remind, http.MethodPost, "/api/v1/friends/remind", nil, alice.ID,
		gin.Params{{Key: "id", Value: fmt.Sprint(bob.ID)}})
	mustStatus(t, status, http.StatusOK, env)

	var forward, reverse models.Friendship
	if err := db.Where("user_id = ? AND friend_id = ?", alice.ID, bob.ID).First(&forward).Error; err != nil {
		t.Fatalf("load forward edge: %v", err)
	}
	if err := db.Where("user_id = ? AND friend_id = ?", bob.ID, alice.ID).First(&reverse).Error; err != nil {
		t.Fatalf("load reverse edge: %v", err)
	}
	if forward.Intimacy != 11 {
		t.Fatalf("forward intimacy = %d, want 11", forward.Intimacy)
	}
	if reverse.Intimacy != 10 {
		t.Fatalf("reverse intimacy = %d, want 10", reverse.Intimacy)
	}

	var msg models.Message
	if err := db.Where("receiver_id = ?", bob.ID).First(&msg).Error; err != nil {
		t.Fatalf("load reminder message: %v", err)
	}
	if msg.SenderID != alice.ID || msg.Kind != models.MessageKindReminder {
		t.Fatalf("message = sender %d kind %q", msg.SenderID, msg.Kind)
	}
	if msg.ReadStatus {
		t.Fatal("reminder created already read")
	}
}

func TestRemindNotFriend(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	status, env := perform(t, f.Remind, http.MethodPost, "/api/v1/friends/remind", nil, alice.ID,
		gin.Params{{Key: "id", Value: fmt.Sprint(bob.ID)}})
	mustStatus(t, status, http.StatusBadRequest, env)
	if env.Code != 40042 {
		t.Fatalf("code = %d, want 40042", env.Code)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Fatalf("messages = %d, want 0", count)
	}
}

func TestListNotCheckedIn(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	for _, friend := range []*models.User{bob, carol} {
		if err := f.addFriend(alice.ID, friend.ID); err != nil {
			t.Fatalf("add friend: %v", err)
		}
	}

	// Bob checked in today. Carol has no task at all and still shows up.
	bobTask := createTestTask(t, db, bob.ID, "read")
	rec := models.CheckinRecord{TaskID: bobTask.ID, UserID: bob.ID, CheckDate: day(0)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	status, env := perform(t, f.ListNotCheckedIn, http.MethodGet, "/api/v1/friends/not-checked-in", nil, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var got struct {
		Friends []FriendInfo `json:"friends"`
	}
	decodeData(t, env, &got)
	if len(got.Friends) != 1 {
		t.Fatalf("friends = %d, want 1", len(got.Friends))
	}
	if got.Friends[0].ID != carol.ID {
		t.Fatalf("friend = %d, want %d", got.Friends[0].ID, carol.ID)
	}
}

func TestListTopNotCheckedInLimit(t *testing.T) {
	resetCache(t)
	db := newTestDB(t)
	f := NewFriendController(db)
	alice := createTestUser(t, db, "alice")

	for i := 0; i < 12; i++ {
		friend := createTestUser(t, db, fmt.Sprintf("friend%02d", i))
		if err := f.addFriend(alice.ID, friend.ID); err != nil {
			t.Fatalf("add friend %d: %v", i, err)
		}
	}

	status, env := perform(t, f.ListTopNotCheckedIn, http.MethodGet, "/api/v1/friends/not-checked-in/top", nil, alice.ID, nil)
	mustStatus(t, status, http.StatusOK, env)

	var got struct {
		Friends []FriendInfo `json:"friends"`
	}
	decodeData(t, env, &got)
	if len(got.Friends) != topNotCheckedInLimit {
		t.Fatalf("friends = %d, want %d", len(got.Friends), topNotCheckedInLimit)
	}
}
