package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
)

// MessageRepository defines the store operations on messages
type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	MarkDelivered(ctx context.Context, messageIDs []string, at time.Time) error
	MarkRead(ctx context.Context, roomID, readerID string, at time.Time) error
	// DeleteOlderThan removes messages in a room created before the cutoff,
	// in pages of pageSize, and returns the total removed.
	DeleteOlderThan(ctx context.Context, roomID string, cutoff time.Time, pageSize int) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id IN ? AND delivered_at IS NULL", messageIDs).
		UpdateColumn("delivered_at", at).Error
}

func (r *messageRepository) MarkRead(ctx context.Context, roomID, readerID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", roomID, readerID).
		UpdateColumn("read_at", at).Error
}

func (r *messageRepository) DeleteOlderThan(ctx context.Context, roomID string, cutoff time.Time, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.Message{}).
			Where("room_id = ? AND created_at < ?", roomID, cutoff).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Message{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}

