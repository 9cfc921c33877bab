package domain

import "time"

// Notification preference categories.
const (
	CategoryMessages = "messages"
	CategoryCalls    = "calls"
	CategoryStories  = "stories"
	CategoryBackups  = "backups"
)

// NotificationPreference is a per-user, per-category opt-out. A missing row
// means the category is enabled; this core only reads these rows.
type NotificationPreference struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	Category  string    `json:"category" gorm:"primaryKey"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block records that UserID has blocked BlockedID
type Block struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	BlockedID string    `json:"blocked_id" gorm:"primaryKey;index"`
	CreatedAt time.Time `json:"created_at"`
}

// Report statuses.
const (
	ReportStatusPending  = "pending"
	ReportStatusResolved = "resolved"
)

type Report struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	ReporterID  string    `json:"reporter_id" gorm:"index;not null"`
	ReportedID  string    `json:"reported_id" gorm:"index;not null"`
	Reason      string    `json:"reason" gorm:"not null"`
	Description string    `json:"description"`
	Status      string    `json:"status" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is a stored in-app notification record
type Notification struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	SenderID    string    `json:"sender_id" gorm:"index"`
	RecipientID string    `json:"recipient_id" gorm:"index;not null"`
	Kind        string    `json:"kind"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
