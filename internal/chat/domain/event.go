package domain

import "time"

// ProcessedEvent marks a trigger delivery as handled. Insert-if-absent on the
// event ID is what keeps non-idempotent effects (unread increments) safe
// against redelivery of the same trigger.
type ProcessedEvent struct {
	EventID     string    `json:"event_id" gorm:"primaryKey"`
	ProcessedAt time.Time `json:"processed_at"`
}
