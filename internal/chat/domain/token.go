package domain

import "time"

// DeviceToken represents a push-delivery registration for one client install.
// The token value is its own natural key; a token is owned by exactly one
// user at a time. Tokens unrefreshed for 60 days are swept as stale.
type DeviceToken struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"index;not null"`
	Token           string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo      string    `json:"device_info"`                   // Browser/device metadata
	CreatedAt       time.Time `json:"created_at"`
	LastRefreshedAt time.Time `json:"last_refreshed_at" gorm:"index"`
}
