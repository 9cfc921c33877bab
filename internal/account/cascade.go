package account

import (
	"context"
	"fmt"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// DeletePageSize bounds every paginated bulk delete in the cascade.
const DeletePageSize = 500

// Storage prefixes owned by a user, cleaned best-effort during the cascade.
var userMediaPrefixes = []string{"avatars/%s/", "stories/%s/", "backups/%s/"}

// PresenceStore is the realtime-store surface the cascade needs.
type PresenceStore interface {
	DeletePresence(ctx context.Context, userID string) (int64, error)
}

// MediaStore is the blob-storage surface the cascade needs. May be nil when
// no bucket is configured.
type MediaStore interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// CascadeResult accumulates what one deletion run removed and which steps
// failed. Success is an empty error list, not the absence of a panic.
type CascadeResult struct {
	DeletedCounts map[string]int64 `json:"deleted_counts"`
	Errors        []string         `json:"errors"`
}

// Success reports whether every step completed.
func (r *CascadeResult) Success() bool {
	return len(r.Errors) == 0
}

// CascadeEngine removes or redacts a user's data across every collection,
// subcollection and storage prefix that references them. Every step treats
// "nothing found to delete" as success, so re-running the cascade against
// already-partially-deleted data is safe: the safety-net trigger depends on
// that.
type CascadeEngine struct {
	users         repository.UserRepository
	tokens        repository.TokenRepository
	rooms         repository.RoomRepository
	calls         repository.CallRepository
	stories       repository.StoryRepository
	backups       repository.BackupRepository
	blocks        repository.BlockRepository
	reports       repository.ReportRepository
	notifications repository.NotificationRepository
	presence      PresenceStore
	media         MediaStore
	log           *logrus.Entry
}

// NewCascadeEngine wires the cascade against its stores
func NewCascadeEngine(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	rooms repository.RoomRepository,
	calls repository.CallRepository,
	stories repository.StoryRepository,
	backups repository.BackupRepository,
	blocks repository.BlockRepository,
	reports repository.ReportRepository,
	notifications repository.NotificationRepository,
	presence PresenceStore,
	media MediaStore,
) *CascadeEngine {
	return &CascadeEngine{
		users:         users,
		tokens:        tokens,
		rooms:         rooms,
		calls:         calls,
		stories:       stories,
		backups:       backups,
		blocks:        blocks,
		reports:       reports,
		notifications: notifications,
		presence:      presence,
		media:         media,
		log:           logging.WithComponent("CascadeEngine"),
	}
}

// DeleteUser runs the full cascade for one identity. Steps run sequentially
// and are isolated: a failing step is recorded and the rest still run. The
// user's primary record goes last so concurrent reads mid-cascade still see
// a real user for as long as possible.
func (e *CascadeEngine) DeleteUser(ctx context.Context, userID string) *CascadeResult {
	result := &CascadeResult{DeletedCounts: make(map[string]int64)}

	e.step(result, "sessions", func() (int64, error) {
		return e.users.DeleteSessions(ctx, userID)
	})
	e.step(result, "security_events", func() (int64, error) {
		return e.users.DeleteSecurityEvents(ctx, userID, DeletePageSize)
	})
	e.step(result, "settings", func() (int64, error) {
		return e.users.DeleteSettings(ctx, userID)
	})
	e.step(result, "contacts", func() (int64, error) {
		return e.users.DeleteContacts(ctx, userID)
	})
	e.step(result, "blocks", func() (int64, error) {
		return e.blocks.DeleteOwnedBy(ctx, userID)
	})
	e.step(result, "stories", func() (int64, error) {
		return e.deleteStories(ctx, userID)
	})
	e.step(result, "calls", func() (int64, error) {
		return e.calls.DeleteByParticipant(ctx, userID, DeletePageSize)
	})
	// Membership removal, not room deletion: other members still depend on
	// the rooms themselves.
	e.step(result, "room_memberships", func() (int64, error) {
		return e.rooms.RemoveUserFromAllRooms(ctx, userID)
	})
	e.step(result, "notifications", func() (int64, error) {
		return e.notifications.DeleteByParticipant(ctx, userID, DeletePageSize)
	})
	e.step(result, "backups", func() (int64, error) {
		return e.deleteBackups(ctx, userID)
	})
	e.step(result, "device_tokens", func() (int64, error) {
		return e.tokens.DeleteByUserID(ctx, userID)
	})
	e.step(result, "reports", func() (int64, error) {
		return e.reports.DeleteByReported(ctx, userID, DeletePageSize)
	})
	// Reverse reference cleanup: remove this user from everyone else's
	// block list.
	e.step(result, "reverse_blocks", func() (int64, error) {
		return e.blocks.DeleteReferencing(ctx, userID)
	})
	e.step(result, "media_objects", func() (int64, error) {
		return e.deleteMedia(ctx, userID)
	})
	e.step(result, "presence", func() (int64, error) {
		return e.presence.DeletePresence(ctx, userID)
	})
	e.step(result, "user", func() (int64, error) {
		return e.users.Delete(ctx, userID)
	})

	e.log.WithFields(logrus.Fields{
		"user_id": userID,
		"errors":  len(result.Errors),
	}).Info("cascade deletion finished")
	return result
}

// step runs one isolated cleanup step, recording its count or its error.
// It never lets a step failure abort the run.
func (e *CascadeEngine) step(result *CascadeResult, name string, fn func() (int64, error)) {
	count, err := fn()
	result.DeletedCounts[name] = count
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		e.log.WithField("step", name).WithError(err).Warn("cascade step failed")
	}
}

// deleteStories removes the user's stories, nested replies and reactions
// first, paging until a page comes back short.
func (e *CascadeEngine) deleteStories(ctx context.Context, userID string) (int64, error) {
	var total int64
	for {
		stories, err := e.stories.FindByOwner(ctx, userID, DeletePageSize)
		if err != nil {
			return total, err
		}
		if len(stories) == 0 {
			return total, nil
		}
		for _, story := range stories {
			n, err := e.stories.DeleteStory(ctx, story.ID)
			total += n
			if err != nil {
				return total, err
			}
		}
		if len(stories) < DeletePageSize {
			return total, nil
		}
	}
}

func (e *CascadeEngine) deleteBackups(ctx context.Context, userID string) (int64, error) {
	var total int64
	for {
		jobs, err := e.backups.FindByUser(ctx, userID, DeletePageSize)
		if err != nil {
			return total, err
		}
		if len(jobs) == 0 {
			return total, nil
		}
		for _, job := range jobs {
			n, err := e.backups.DeleteJob(ctx, job.ID)
			total += n
			if err != nil {
				return total, err
			}
		}
		if len(jobs) < DeletePageSize {
			return total, nil
		}
	}
}

// deleteMedia clears the user's storage prefixes. Best-effort: a missing
// prefix is not an error, and no bucket configured means skip.
func (e *CascadeEngine) deleteMedia(ctx context.Context, userID string) (int64, error) {
	if e.media == nil {
		return 0, nil
	}
	var total int64
	for _, pattern := range userMediaPrefixes {
		n, err := e.media.DeletePrefix(ctx, fmt.Sprintf(pattern, userID))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
