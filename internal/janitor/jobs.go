package janitor

import (
	"context"
	"net/url"
	"strings"
	"time"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// Sweep cadences and cutoffs.
const (
	disappearingInterval   = 5 * time.Minute
	expiredStoryInterval   = time.Hour
	stalePresenceInterval  = time.Hour
	staleCallInterval      = 15 * time.Minute
	staleTokenInterval     = 24 * time.Hour
	processedEventInterval = 24 * time.Hour

	stalePresenceAge        = time.Hour
	staleCallAge            = 2 * time.Minute
	staleTokenAge           = 60 * 24 * time.Hour
	processedEventRetention = 7 * 24 * time.Hour

	sweepPageSize         = 500
	expiredStoryBatch     = 500
	validationSampleLimit = 1000
)

// PresenceSweeper marks realtime presence records offline once stale.
type PresenceSweeper interface {
	SweepStalePresence(ctx context.Context, olderThan time.Time) (int, error)
}

// TokenValidator dry-runs tokens against the push gateway.
type TokenValidator interface {
	ValidateTokens(ctx context.Context, tokens []string) ([]string, error)
}

// MediaDeleter removes a single stored object. May be nil when no bucket is
// configured.
type MediaDeleter interface {
	DeleteObject(ctx context.Context, object string) error
}

// Sweeper implements the periodic maintenance jobs.
type Sweeper struct {
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	stories   repository.StoryRepository
	calls     repository.CallRepository
	tokens    repository.TokenRepository
	processed repository.EventRepository
	presence  PresenceSweeper
	validator TokenValidator
	media     MediaDeleter
	log       *logrus.Entry
}

// NewSweeper creates the maintenance sweeper
func NewSweeper(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	stories repository.StoryRepository,
	calls repository.CallRepository,
	tokens repository.TokenRepository,
	processed repository.EventRepository,
	presence PresenceSweeper,
	validator TokenValidator,
	media MediaDeleter,
) *Sweeper {
	return &Sweeper{
		rooms:     rooms,
		messages:  messages,
		stories:   stories,
		calls:     calls,
		tokens:    tokens,
		processed: processed,
		presence:  presence,
		validator: validator,
		media:     media,
		log:       logging.WithComponent("Sweeper"),
	}
}

// Jobs returns every sweep with its cadence, ready for the scheduler.
func (s *Sweeper) Jobs() []Job {
	return []Job{
		{Name: "disappearing-messages", Interval: disappearingInterval, Run: s.SweepDisappearingMessages},
		{Name: "expired-stories", Interval: expiredStoryInterval, Run: s.SweepExpiredStories},
		{Name: "stale-presence", Interval: stalePresenceInterval, Run: s.SweepStalePresence},
		{Name: "stale-calls", Interval: staleCallInterval, Run: s.SweepStaleCalls},
		{Name: "stale-tokens", Interval: staleTokenInterval, Run: s.SweepStaleTokens},
		{Name: "processed-events", Interval: processedEventInterval, Run: s.SweepProcessedEvents},
	}
}

// SweepDisappearingMessages deletes messages past their room's retention
// window. A room with a huge backlog may not finish within one run; the next
// run picks up where this one timed out.
func (s *Sweeper) SweepDisappearingMessages(ctx context.Context) error {
	rooms, err := s.rooms.RoomsWithRetention(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var total int64
	for _, room := range rooms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cutoff := now.Add(-time.Duration(room.RetentionSeconds) * time.Second)
		n, err := s.messages.DeleteOlderThan(ctx, room.ID, cutoff, sweepPageSize)
		total += n
		if err != nil {
			return err
		}
	}
	if total > 0 {
		s.log.WithField("deleted", total).Info("removed disappearing messages")
	}
	return nil
}

// SweepExpiredStories deletes stories past their expiry, nested rows first,
// and best-effort removes their media objects.
func (s *Sweeper) SweepExpiredStories(ctx context.Context) error {
	var total int64
	for {
		stories, err := s.stories.FindExpired(ctx, time.Now(), expiredStoryBatch)
		if err != nil {
			return err
		}
		if len(stories) == 0 {
			break
		}

		for _, story := range stories {
			n, err := s.stories.DeleteStory(ctx, story.ID)
			total += n
			if err != nil {
				return err
			}
			s.deleteStoryMedia(ctx, story.MediaURL)
		}
		if len(stories) < expiredStoryBatch {
			break
		}
	}
	if total > 0 {
		s.log.WithField("deleted", total).Info("removed expired stories")
	}
	return nil
}

// deleteStoryMedia removes a story's stored object. Failures are logged and
// swallowed: orphaned media is cheaper than a stuck sweep.
func (s *Sweeper) deleteStoryMedia(ctx context.Context, mediaURL string) {
	if s.media == nil || mediaURL == "" {
		return
	}
	object := objectPath(mediaURL)
	if object == "" {
		return
	}
	if err := s.media.DeleteObject(ctx, object); err != nil {
		s.log.WithField("object", object).WithError(err).Warn("failed to delete story media")
	}
}

// SweepStalePresence marks users offline whose heartbeat stopped.
func (s *Sweeper) SweepStalePresence(ctx context.Context) error {
	swept, err := s.presence.SweepStalePresence(ctx, time.Now().Add(-stalePresenceAge))
	if err != nil {
		return err
	}
	if swept > 0 {
		s.log.WithField("swept", swept).Info("marked stale presence offline")
	}
	return nil
}

// SweepStaleCalls transitions calls stuck ringing to missed.
func (s *Sweeper) SweepStaleCalls(ctx context.Context) error {
	expired, err := s.calls.ExpireStale(ctx, time.Now().Add(-staleCallAge))
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.WithField("expired", expired).Info("expired stuck calls")
	}
	return nil
}

// SweepStaleTokens drops tokens unrefreshed past the staleness cutoff, then
// dry-run validates a sample of the survivors against the gateway and drops
// the ones it reports dead.
func (s *Sweeper) SweepStaleTokens(ctx context.Context) error {
	cutoff := time.Now().Add(-staleTokenAge)

	deleted, err := s.tokens.DeleteStale(ctx, cutoff, sweepPageSize)
	if err != nil {
		return err
	}

	sample, err := s.tokens.SampleActive(ctx, cutoff, validationSampleLimit)
	if err != nil {
		return err
	}
	if len(sample) > 0 && s.validator != nil {
		dead, err := s.validator.ValidateTokens(ctx, sample)
		if err != nil {
			return err
		}
		if len(dead) > 0 {
			n, err := s.tokens.DeleteTokens(ctx, dead)
			deleted += n
			if err != nil {
				return err
			}
		}
	}

	if deleted > 0 {
		s.log.WithField("deleted", deleted).Info("removed stale device tokens")
	}
	return nil
}

// SweepProcessedEvents trims the dedup guard so it does not grow forever.
// Redeliveries older than the retention window no longer occur.
func (s *Sweeper) SweepProcessedEvents(ctx context.Context) error {
	_, err := s.processed.DeleteProcessedBefore(ctx, time.Now().Add(-processedEventRetention))
	return err
}

// objectPath extracts the bucket-relative object path from a public storage
// URL. Returns "" for URLs it does not recognize.
func objectPath(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ""
	}
	path := strings.TrimPrefix(u.Path, "/")
	if !strings.Contains(u.Host, "storage.googleapis.com") {
		return ""
	}
	// Public object URLs are /<bucket>/<object path>.
	_, object, found := strings.Cut(path, "/")
	if !found {
		return ""
	}
	return object
}
