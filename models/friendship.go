package models

import "time"

// Friendship is one directed half of a symmetric friend edge. Both rows of a
// pair are created together with the same CreatedAt. Intimacy is a
// non-negative weight on the direction user -> friend, bumped when the user
// sends the friend a reminder.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_user_friend,unique;not null" json:"user_id"`
	FriendID  uint      `gorm:"index:idx_user_friend,unique;index;not null" json:"friend_id"`
	Intimacy  int       `gorm:"not null;default:0" json:"intimacy"`
	CreatedAt time.Time `json:"created_at"`
}
