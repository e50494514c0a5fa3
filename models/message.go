package models

import "time"

// Message kinds.
const (
	MessageKindReminder = "reminder"
)

// Message is a notification addressed to a user. ReadStatus only ever moves
// from unread to read.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"index;not null" json:"sender_id"`
	ReceiverID uint      `gorm:"index;not null" json:"receiver_id"`
	Kind       string    `gorm:"size:32;default:'reminder'" json:"kind"`
	Content    string    `gorm:"size:500" json:"content"`
	ReadStatus bool      `gorm:"not null;default:false" json:"read_status"`
	CreatedAt  time.Time `json:"created_at"`
}
