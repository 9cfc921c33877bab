package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
)

// RoomRepository defines the store operations on chat rooms and memberships
type RoomRepository interface {
	MemberIDs(ctx context.Context, roomID string) ([]string, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	// IncrementUnread bumps the unread counter of every member except the
	// sender by one, as a single atomic SQL update.
	IncrementUnread(ctx context.Context, roomID, senderID string) error
	// ResetUnread zeroes one member's unread counter without touching others.
	ResetUnread(ctx context.Context, roomID, userID string) error
	// MutedMemberIDs lists members whose notifications are muted for this
	// room at the given instant.
	MutedMemberIDs(ctx context.Context, roomID string, at time.Time) ([]string, error)
	// SetMuteUntil sets one member's notification mute; nil clears it.
	SetMuteUntil(ctx context.Context, roomID, userID string, until *time.Time) error
	UpdateLastMessage(ctx context.Context, roomID, preview, senderID string, at time.Time) error
	// RemoveUserFromAllRooms deletes the user's membership rows. Rooms are
	// never deleted here: other members still depend on them.
	RemoveUserFromAllRooms(ctx context.Context, userID string) (int64, error)
	// RoomsWithRetention lists rooms configured with disappearing messages.
	RoomsWithRetention(ctx context.Context) ([]domain.ChatRoom, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new instance of roomRepository
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *roomRepository) IncrementUnread(ctx context.Context, roomID, senderID string) error {
	return r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id <> ?", roomID, senderID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (r *roomRepository) ResetUnread(ctx context.Context, roomID, userID string) error {
	return r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("unread_count", 0).Error
}

func (r *roomRepository) MutedMemberIDs(ctx context.Context, roomID string, at time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND muted_until IS NOT NULL AND muted_until > ?", roomID, at).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *roomRepository) SetMuteUntil(ctx context.Context, roomID, userID string, until *time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("muted_until", until).Error
}

func (r *roomRepository) UpdateLastMessage(ctx context.Context, roomID, preview, senderID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.ChatRoom{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message_preview": preview,
			"last_sender_id":       senderID,
			"last_message_at":      at,
		}).Error
}

func (r *roomRepository) RemoveUserFromAllRooms(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.RoomMember{})
	return res.RowsAffected, res.Error
}

func (r *roomRepository) RoomsWithRetention(ctx context.Context) ([]domain.ChatRoom, error) {
	var rooms []domain.ChatRoom
	err := r.db.WithContext(ctx).Where("retention_seconds > 0").Find(&rooms).Error
	return rooms, err
}
