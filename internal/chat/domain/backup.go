package domain

import "time"

// Backup job statuses. Only the transition into completed notifies the owner.
const (
	BackupStatusPending    = "pending"
	BackupStatusProcessing = "processing"
	BackupStatusCompleted  = "completed"
	BackupStatusFailed     = "failed"
)

type BackupJob struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Status    string     `json:"status" gorm:"index"`
	SizeBytes int64      `json:"size_bytes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// BackupItem is one entry in a backup job's nested data subcollection
type BackupItem struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	JobID     string    `json:"job_id" gorm:"index;not null"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
