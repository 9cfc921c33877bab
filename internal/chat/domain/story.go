package domain

import "time"

// Story is ephemeral content: it expires at ExpiresAt and is swept by the
// expired-content janitor, nested replies and reactions first.
type Story struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	OwnerID   string    `json:"owner_id" gorm:"index;not null"`
	Caption   string    `json:"caption"`
	MediaURL  string    `json:"media_url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

type StoryReply struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	StoryID   string    `json:"story_id" gorm:"index;not null"`
	UserID    string    `json:"user_id" gorm:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type StoryReaction struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	StoryID   string    `json:"story_id" gorm:"index;not null"`
	UserID    string    `json:"user_id" gorm:"index"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Follower records that FollowerID follows UserID and receives story
// notifications from them.
type Follower struct {
	UserID     string    `json:"user_id" gorm:"primaryKey"`
	FollowerID string    `json:"follower_id" gorm:"primaryKey;index"`
	CreatedAt  time.Time `json:"created_at"`
}
