package domain

import "time"

// Call statuses. Ringing and calling are non-terminal; a call stuck in either
// is force-transitioned to missed by the stale-call sweep.
const (
	CallStatusRinging = "ringing"
	CallStatusCalling = "calling"
	CallStatusOngoing = "ongoing"
	CallStatusEnded   = "ended"
	CallStatusMissed  = "missed"
)

type Call struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	CallerID  string     `json:"caller_id" gorm:"index;not null"`
	CalleeID  string     `json:"callee_id" gorm:"index;not null"`
	Status    string     `json:"status" gorm:"index"`
	Video     bool       `json:"video"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
