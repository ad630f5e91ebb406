package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"worklog/internal/model"
)

// ReminderRepository remembers which chats already got today's digest.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) AlreadySent(ctx context.Context, chatID int64, day model.Date) (bool, error) {
	var entry model.ReminderLog
	err := r.db.WithContext(ctx).Where("chat_id = ? AND day = ?", chatID, string(day)).First(&entry).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find reminder log: %w", err)
	}
}

// MarkSent records a delivered digest. Marking the same chat and day twice keeps the first entry.
func (r *ReminderRepository) MarkSent(ctx context.Context, chatID int64, day model.Date, overdue int, sentAt time.Time) error {
	entry := model.ReminderLog{ChatID: chatID, Day: string(day), Overdue: overdue, SentAt: sentAt}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// History returns the most recent entries for chatID, newest first.
func (r *ReminderRepository) History(ctx context.Context, chatID int64, limit int) ([]model.ReminderLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []model.ReminderLog
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).
		Order("day DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
