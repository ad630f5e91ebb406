package model

import "time"

// Subscriber is a Telegram chat that receives reminder digests.
type Subscriber struct {
	ID         uint  `gorm:"primaryKey"`
	ChatID     int64 `gorm:"uniqueIndex"`
	FirstName  string
	Username   string
	Department string // optional: restrict digests to one department
	Active     bool   `gorm:"default:true;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReminderLog records that a digest went out to a chat on a given day.
type ReminderLog struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    int64  `gorm:"index:idx_reminder_chat_day,unique"`
	Day       string `gorm:"index:idx_reminder_chat_day,unique;size:10"` // YYYY-MM-DD
	Overdue   int
	SentAt    time.Time
	CreatedAt time.Time
}
