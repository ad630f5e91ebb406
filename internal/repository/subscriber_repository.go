package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"worklog/internal/model"
)

// SubscriberRepository tracks chats that want reminder digests.
type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Subscribe activates chatID, creating it on first contact and refreshing profile info.
func (r *SubscriberRepository) Subscribe(ctx context.Context, chatID int64, firstName, username string) (*model.Subscriber, error) {
	var sub model.Subscriber
	db := r.db.WithContext(ctx)
	err := db.Where("chat_id = ?", chatID).First(&sub).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"username":   username,
			"active":     true,
		}
		if err := db.Model(&sub).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update subscriber: %w", err)
		}
		return &sub, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = model.Subscriber{
			ChatID:    chatID,
			FirstName: firstName,
			Username:  username,
			Active:    true,
		}
		if err := db.Create(&sub).Error; err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}
		return &sub, nil
	default:
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
}

// Unsubscribe deactivates chatID. It reports whether the chat was subscribed.
func (r *SubscriberRepository) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Subscriber{}).
		Where("chat_id = ? AND active = ?", chatID, true).
		Update("active", false)
	if res.Error != nil {
		return false, fmt.Errorf("unsubscribe: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetDepartment limits digests for chatID to one department; empty clears the limit.
func (r *SubscriberRepository) SetDepartment(ctx context.Context, chatID int64, department string) error {
	res := r.db.WithContext(ctx).Model(&model.Subscriber{}).
		Where("chat_id = ?", chatID).
		Update("department", department)
	if res.Error != nil {
		return fmt.Errorf("set department: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SubscriberRepository) FindByChatID(ctx context.Context, chatID int64) (*model.Subscriber, error) {
	var sub model.Subscriber
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriberRepository) ListActive(ctx context.Context) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
