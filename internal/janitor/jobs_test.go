package janitor

import (
	"context"
	"testing"
	"time"

	"loopchat-backend/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomLister struct {
	rooms []domain.ChatRoom
}

func (f *fakeRoomLister) MemberIDs(_ context.Context, _ string) ([]string, error) { return nil, nil }
func (f *fakeRoomLister) IsMember(_ context.Context, _, _ string) (bool, error)   { return false, nil }
func (f *fakeRoomLister) IncrementUnread(_ context.Context, _, _ string) error    { return nil }
func (f *fakeRoomLister) ResetUnread(_ context.Context, _, _ string) error        { return nil }
func (f *fakeRoomLister) MutedMemberIDs(_ context.Context, _ string, _ time.Time) ([]string, error) {
	return nil, nil
}
func (f *fakeRoomLister) SetMuteUntil(_ context.Context, _, _ string, _ *time.Time) error { return nil }
func (f *fakeRoomLister) UpdateLastMessage(_ context.Context, _, _, _ string, _ time.Time) error {
	return nil
}
func (f *fakeRoomLister) RemoveUserFromAllRooms(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
func (f *fakeRoomLister) RoomsWithRetention(_ context.Context) ([]domain.ChatRoom, error) {
	return f.rooms, nil
}

type prune struct {
	roomID string
	cutoff time.Time
}

type fakeMessagePruner struct {
	prunes  []prune
	deleted int64
}

func (f *fakeMessagePruner) FindByID(_ context.Context, _ string) (*domain.Message, error) {
	return nil, nil
}
func (f *fakeMessagePruner) MarkDelivered(_ context.Context, _ []string, _ time.Time) error {
	return nil
}
func (f *fakeMessagePruner) MarkRead(_ context.Context, _, _ string, _ time.Time) error { return nil }

func (f *fakeMessagePruner) DeleteOlderThan(_ context.Context, roomID string, cutoff time.Time, _ int) (int64, error) {
	f.prunes = append(f.prunes, prune{roomID: roomID, cutoff: cutoff})
	return f.deleted, nil
}

type fakeStorySweepStore struct {
	expired []domain.Story
	removed []string
}

func (f *fakeStorySweepStore) FindExpired(_ context.Context, _ time.Time, _ int) ([]domain.Story, error) {
	out := f.expired
	f.expired = nil
	return out, nil
}

func (f *fakeStorySweepStore) FindByOwner(_ context.Context, _ string, _ int) ([]domain.Story, error) {
	return nil, nil
}

func (f *fakeStorySweepStore) DeleteStory(_ context.Context, storyID string) (int64, error) {
	f.removed = append(f.removed, storyID)
	return 1, nil
}

func (f *fakeStorySweepStore) FollowerIDs(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type fakeTokenSweepStore struct {
	staleDeleted  int64
	sample        []string
	deletedTokens []string
}

func (f *fakeTokenSweepStore) SaveToken(_ context.Context, _, _, _ string) error { return nil }
func (f *fakeTokenSweepStore) FindByUserIDs(_ context.Context, _ []string) ([]domain.DeviceToken, error) {
	return nil, nil
}

func (f *fakeTokenSweepStore) DeleteTokens(_ context.Context, tokens []string) (int64, error) {
	f.deletedTokens = append(f.deletedTokens, tokens...)
	return int64(len(tokens)), nil
}

func (f *fakeTokenSweepStore) DeleteByUserID(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeTokenSweepStore) DeleteStale(_ context.Context, _ time.Time, _ int) (int64, error) {
	return f.staleDeleted, nil
}

func (f *fakeTokenSweepStore) SampleActive(_ context.Context, _ time.Time, _ int) ([]string, error) {
	return f.sample, nil
}

type fakeValidator struct {
	dead []string
}

func (f *fakeValidator) ValidateTokens(_ context.Context, _ []string) ([]string, error) {
	return f.dead, nil
}

type fakeObjectDeleter struct {
	objects []string
}

func (f *fakeObjectDeleter) DeleteObject(_ context.Context, object string) error {
	f.objects = append(f.objects, object)
	return nil
}

func TestSweepDisappearingMessages(t *testing.T) {
	rooms := &fakeRoomLister{rooms: []domain.ChatRoom{
		{ID: "room-1", RetentionSeconds: 3600},
		{ID: "room-2", RetentionSeconds: 86400},
	}}
	messages := &fakeMessagePruner{deleted: 7}
	sweeper := NewSweeper(rooms, messages, nil, nil, nil, nil, nil, nil, nil)

	before := time.Now()
	require.NoError(t, sweeper.SweepDisappearingMessages(context.Background()))

	require.Len(t, messages.prunes, 2)
	assert.Equal(t, "room-1", messages.prunes[0].roomID)
	assert.Equal(t, "room-2", messages.prunes[1].roomID)

	// Each room gets its own retention cutoff.
	hourAgo := before.Add(-time.Hour)
	assert.WithinDuration(t, hourAgo, messages.prunes[0].cutoff, 5*time.Second)
	assert.WithinDuration(t, before.Add(-24*time.Hour), messages.prunes[1].cutoff, 5*time.Second)
}

func TestSweepExpiredStoriesRemovesMedia(t *testing.T) {
	stories := &fakeStorySweepStore{expired: []domain.Story{
		{ID: "story-1", MediaURL: "https://storage.googleapis.com/loopchat-media/stories/alice/sunset.jpg"},
		{ID: "story-2", MediaURL: ""},
	}}
	media := &fakeObjectDeleter{}
	sweeper := NewSweeper(nil, nil, stories, nil, nil, nil, nil, nil, media)

	require.NoError(t, sweeper.SweepExpiredStories(context.Background()))

	assert.Equal(t, []string{"story-1", "story-2"}, stories.removed)
	assert.Equal(t, []string{"stories/alice/sunset.jpg"}, media.objects)
}

func TestSweepStaleTokensValidatesSurvivors(t *testing.T) {
	tokens := &fakeTokenSweepStore{
		staleDeleted: 3,
		sample:       []string{"tok-1", "tok-2", "tok-3"},
	}
	validator := &fakeValidator{dead: []string{"tok-2"}}
	sweeper := NewSweeper(nil, nil, nil, nil, tokens, nil, nil, validator, nil)

	require.NoError(t, sweeper.SweepStaleTokens(context.Background()))

	assert.Equal(t, []string{"tok-2"}, tokens.deletedTokens)
}

func TestObjectPath(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://storage.googleapis.com/bucket/stories/alice/a.jpg", "stories/alice/a.jpg"},
		{"https://storage.googleapis.com/bucket", ""},
		{"https://cdn.example.com/stories/alice/a.jpg", ""},
		{"://broken", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, objectPath(tc.url), tc.url)
	}
}

func TestSchedulerRunsJobImmediatelyAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	sched := NewScheduler(time.Second, Job{
		Name:     "heartbeat",
		Interval: time.Hour,
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	sched.Start()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	sched.Stop()
}
