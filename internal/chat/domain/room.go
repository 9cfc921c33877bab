package domain

import "time"

// ChatRoom is a shared conversation. Last-message preview fields are
// denormalized onto the room so list views never join against messages.
type ChatRoom struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	Name               string    `json:"name"`
	LastMessagePreview string    `json:"last_message_preview"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastSenderID       string    `json:"last_sender_id"`
	// RetentionSeconds > 0 enables disappearing messages for this room.
	RetentionSeconds int64     `json:"retention_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RoomMember is one user's membership row in a room, including that member's
// per-room notification override. UnreadCount is mutated by two independent
// writers (increment on new message, reset on read), so every update must be
// a single atomic SQL expression, never read-modify-write.
type RoomMember struct {
	RoomID      string `json:"room_id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"primaryKey;index"`
	UnreadCount int64  `json:"unread_count"`
	// MutedUntil suppresses message notifications for this room until the
	// given time. Unread counters still accumulate while muted.
	MutedUntil *time.Time `json:"muted_until,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}

type Message struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	RoomID      string     `json:"room_id" gorm:"index;not null"`
	SenderID    string     `json:"sender_id" gorm:"index;not null"`
	Content     string     `json:"content"`
	MediaURL    string     `json:"media_url,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
}
