package events

import (
	"encoding/json"
	"fmt"
	"time"

	"loopchat-backend/internal/notification"
)

// Collections whose writes emit document-change triggers.
const (
	CollectionMessages   = "messages"
	CollectionCalls      = "calls"
	CollectionStories    = "stories"
	CollectionBackups    = "backups"
	CollectionIdentities = "identities"
)

// Change kinds.
const (
	ChangeCreated = "created"
	ChangeWritten = "written"
	ChangeDeleted = "deleted"
)

// DocumentEvent is one document-change trigger as delivered on the event
// topic. Before/After carry the document snapshots around the write.
type DocumentEvent struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Change     string          `json:"change"`
	DocumentID string          `json:"document_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Key identifies a trigger delivery for the idempotence guard. Redeliveries
// of the same trigger carry the same event ID.
func (e *DocumentEvent) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%s:%s:%s", e.Collection, e.Change, e.DocumentID)
}

// Effect is a tagged variant describing one action an event handler decided
// on. Handlers are pure: they only return effects, the executor applies them.
type Effect interface {
	isEffect()
}

// SendNotification fans a notice out through the dispatcher.
type SendNotification struct {
	Notice notification.Notice
}

// IncrementUnread bumps unread counters for everyone in the room except the
// sender and refreshes the room's last-message preview.
type IncrementUnread struct {
	RoomID   string
	SenderID string
	Preview  string
	At       time.Time
}

// RunCascade removes every trace of a deleted identity.
type RunCascade struct {
	UserID string
}

// LogWarning records that an event was malformed or ignored. Malformed
// legacy records must not crash the pipeline.
type LogWarning struct {
	Reason string
}

// NoOp marks an event as intentionally ignored.
type NoOp struct{}

func (SendNotification) isEffect() {}
func (IncrementUnread) isEffect()  {}
func (RunCascade) isEffect()       {}
func (LogWarning) isEffect()       {}
func (NoOp) isEffect()             {}
