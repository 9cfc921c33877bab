package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loopchat-backend/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserStore backs UserRepository with per-user counters that drain on
// delete, so a second run observes zero rows.
type fakeUserStore struct {
	users          map[string]bool
	sessions       map[string]int64
	securityEvents map[string]int64
	settings       map[string]int64
	contacts       map[string]int64
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	if !f.users[id] {
		return nil, nil
	}
	return &domain.User{ID: id}, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) (int64, error) {
	if !f.users[id] {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

func drain(m map[string]int64, key string) int64 {
	n := m[key]
	delete(m, key)
	return n
}

func (f *fakeUserStore) DeleteSessions(_ context.Context, userID string) (int64, error) {
	return drain(f.sessions, userID), nil
}

func (f *fakeUserStore) DeleteSecurityEvents(_ context.Context, userID string, _ int) (int64, error) {
	return drain(f.securityEvents, userID), nil
}

func (f *fakeUserStore) DeleteSettings(_ context.Context, userID string) (int64, error) {
	return drain(f.settings, userID), nil
}

func (f *fakeUserStore) DeleteContacts(_ context.Context, userID string) (int64, error) {
	return drain(f.contacts, userID), nil
}

type fakeTokenStore struct {
	byUser   map[string]int64
	failUser bool
}

func (f *fakeTokenStore) SaveToken(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeTokenStore) FindByUserIDs(_ context.Context, _ []string) ([]domain.DeviceToken, error) {
	return nil, nil
}

func (f *fakeTokenStore) DeleteTokens(_ context.Context, _ []string) (int64, error) { return 0, nil }

func (f *fakeTokenStore) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	if f.failUser {
		return 0, errors.New("token store unavailable")
	}
	return drain(f.byUser, userID), nil
}

func (f *fakeTokenStore) DeleteStale(_ context.Context, _ time.Time, _ int) (int64, error) {
	return 0, nil
}

func (f *fakeTokenStore) SampleActive(_ context.Context, _ time.Time, _ int) ([]string, error) {
	return nil, nil
}

type fakeRoomStore struct {
	memberships map[string]int64
}

func (f *fakeRoomStore) MemberIDs(_ context.Context, _ string) ([]string, error) { return nil, nil }
func (f *fakeRoomStore) IsMember(_ context.Context, _, _ string) (bool, error)   { return false, nil }
func (f *fakeRoomStore) IncrementUnread(_ context.Context, _, _ string) error    { return nil }
func (f *fakeRoomStore) ResetUnread(_ context.Context, _, _ string) error        { return nil }

func (f *fakeRoomStore) MutedMemberIDs(_ context.Context, _ string, _ time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeRoomStore) SetMuteUntil(_ context.Context, _, _ string, _ *time.Time) error { return nil }
func (f *fakeRoomStore) UpdateLastMessage(_ context.Context, _, _, _ string, _ time.Time) error {
	return nil
}

func (f *fakeRoomStore) RemoveUserFromAllRooms(_ context.Context, userID string) (int64, error) {
	return drain(f.memberships, userID), nil
}

func (f *fakeRoomStore) RoomsWithRetention(_ context.Context) ([]domain.ChatRoom, error) {
	return nil, nil
}

type fakeCallStore struct {
	byParticipant map[string]int64
}

func (f *fakeCallStore) DeleteByParticipant(_ context.Context, userID string, _ int) (int64, error) {
	return drain(f.byParticipant, userID), nil
}

func (f *fakeCallStore) ExpireStale(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

// fakeStoryStore holds stories as records so the paged FindByOwner loop in the
// cascade is exercised for real.
type fakeStoryStore struct {
	stories map[string]domain.Story
	// rows removed per story beyond the story row itself
	nested map[string]int64
}

func (f *fakeStoryStore) FindExpired(_ context.Context, _ time.Time, _ int) ([]domain.Story, error) {
	return nil, nil
}

func (f *fakeStoryStore) FindByOwner(_ context.Context, ownerID string, limit int) ([]domain.Story, error) {
	var out []domain.Story
	for _, s := range f.stories {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStoryStore) DeleteStory(_ context.Context, storyID string) (int64, error) {
	if _, ok := f.stories[storyID]; !ok {
		return 0, nil
	}
	delete(f.stories, storyID)
	return 1 + drain(f.nested, storyID), nil
}

func (f *fakeStoryStore) FollowerIDs(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type fakeBackupStore struct {
	jobs map[string]domain.BackupJob
}

func (f *fakeBackupStore) FindByUser(_ context.Context, userID string, limit int) ([]domain.BackupJob, error) {
	var out []domain.BackupJob
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBackupStore) DeleteJob(_ context.Context, jobID string) (int64, error) {
	if _, ok := f.jobs[jobID]; !ok {
		return 0, nil
	}
	delete(f.jobs, jobID)
	return 1, nil
}

type fakeBlockStore struct {
	owned       map[string]int64
	referencing map[string]int64
}

func (f *fakeBlockStore) Block(_ context.Context, _, _ string) error   { return nil }
func (f *fakeBlockStore) Unblock(_ context.Context, _, _ string) error { return nil }

func (f *fakeBlockStore) DeleteOwnedBy(_ context.Context, userID string) (int64, error) {
	return drain(f.owned, userID), nil
}

func (f *fakeBlockStore) DeleteReferencing(_ context.Context, blockedID string) (int64, error) {
	return drain(f.referencing, blockedID), nil
}

type fakeReportStore struct {
	byReported map[string]int64
}

func (f *fakeReportStore) Create(_ context.Context, _ *domain.Report) error { return nil }

func (f *fakeReportStore) DeleteByReported(_ context.Context, reportedID string, _ int) (int64, error) {
	return drain(f.byReported, reportedID), nil
}

type fakeNotificationStore struct {
	byParticipant map[string]int64
}

func (f *fakeNotificationStore) DeleteByParticipant(_ context.Context, userID string, _ int) (int64, error) {
	return drain(f.byParticipant, userID), nil
}

type fakePresenceStore struct {
	records map[string]bool
}

func (f *fakePresenceStore) DeletePresence(_ context.Context, userID string) (int64, error) {
	if !f.records[userID] {
		return 0, nil
	}
	delete(f.records, userID)
	return 1, nil
}

type fakeMediaStore struct {
	objects  map[string]int
	prefixes []string
}

func (f *fakeMediaStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.prefixes = append(f.prefixes, prefix)
	n := f.objects[prefix]
	delete(f.objects, prefix)
	return n, nil
}

type cascadeFixture struct {
	users   *fakeUserStore
	tokens  *fakeTokenStore
	stories *fakeStoryStore
	media   *fakeMediaStore
	engine  *CascadeEngine
}

func newCascadeFixture(userID string) *cascadeFixture {
	users := &fakeUserStore{
		users:          map[string]bool{userID: true},
		sessions:       map[string]int64{userID: 3},
		securityEvents: map[string]int64{userID: 12},
		settings:       map[string]int64{userID: 1},
		contacts:       map[string]int64{userID: 40},
	}
	tokens := &fakeTokenStore{byUser: map[string]int64{userID: 2}}
	stories := &fakeStoryStore{
		stories: map[string]domain.Story{
			"story-1": {ID: "story-1", OwnerID: userID},
			"story-2": {ID: "story-2", OwnerID: userID},
			"story-3": {ID: "story-3", OwnerID: "someone-else"},
		},
		nested: map[string]int64{"story-1": 4},
	}
	media := &fakeMediaStore{objects: map[string]int{
		"avatars/" + userID + "/": 1,
		"stories/" + userID + "/": 5,
	}}

	engine := NewCascadeEngine(
		users,
		tokens,
		&fakeRoomStore{memberships: map[string]int64{userID: 6}},
		&fakeCallStore{byParticipant: map[string]int64{userID: 9}},
		stories,
		&fakeBackupStore{jobs: map[string]domain.BackupJob{
			"job-1": {ID: "job-1", UserID: userID},
		}},
		&fakeBlockStore{
			owned:       map[string]int64{userID: 2},
			referencing: map[string]int64{userID: 5},
		},
		&fakeReportStore{byReported: map[string]int64{userID: 3}},
		&fakeNotificationStore{byParticipant: map[string]int64{userID: 30}},
		&fakePresenceStore{records: map[string]bool{userID: true}},
		media,
	)
	return &cascadeFixture{users: users, tokens: tokens, stories: stories, media: media, engine: engine}
}

func TestDeleteUserRemovesEverything(t *testing.T) {
	fx := newCascadeFixture("user-1")

	result := fx.engine.DeleteUser(context.Background(), "user-1")

	require.True(t, result.Success(), "errors: %v", result.Errors)
	assert.Equal(t, int64(3), result.DeletedCounts["sessions"])
	assert.Equal(t, int64(12), result.DeletedCounts["security_events"])
	assert.Equal(t, int64(1), result.DeletedCounts["settings"])
	assert.Equal(t, int64(40), result.DeletedCounts["contacts"])
	assert.Equal(t, int64(2), result.DeletedCounts["blocks"])
	// story-1 row + 4 nested, story-2 row; story-3 belongs to someone else
	assert.Equal(t, int64(6), result.DeletedCounts["stories"])
	assert.Equal(t, int64(9), result.DeletedCounts["calls"])
	assert.Equal(t, int64(6), result.DeletedCounts["room_memberships"])
	assert.Equal(t, int64(30), result.DeletedCounts["notifications"])
	assert.Equal(t, int64(1), result.DeletedCounts["backups"])
	assert.Equal(t, int64(2), result.DeletedCounts["device_tokens"])
	assert.Equal(t, int64(3), result.DeletedCounts["reports"])
	assert.Equal(t, int64(5), result.DeletedCounts["reverse_blocks"])
	assert.Equal(t, int64(6), result.DeletedCounts["media_objects"])
	assert.Equal(t, int64(1), result.DeletedCounts["presence"])
	assert.Equal(t, int64(1), result.DeletedCounts["user"])

	assert.Contains(t, fx.media.prefixes, "avatars/user-1/")
	assert.Contains(t, fx.media.prefixes, "stories/user-1/")
	assert.Contains(t, fx.media.prefixes, "backups/user-1/")

	// Other users' data untouched.
	_, stillThere := fx.stories.stories["story-3"]
	assert.True(t, stillThere)
}

func TestDeleteUserIsIdempotent(t *testing.T) {
	fx := newCascadeFixture("user-1")

	first := fx.engine.DeleteUser(context.Background(), "user-1")
	require.True(t, first.Success())

	second := fx.engine.DeleteUser(context.Background(), "user-1")
	require.True(t, second.Success(), "errors: %v", second.Errors)
	for step, count := range second.DeletedCounts {
		assert.Zero(t, count, "step %s removed rows on a second run", step)
	}
}

func TestDeleteUserIsolatesFailingStep(t *testing.T) {
	fx := newCascadeFixture("user-1")
	fx.tokens.failUser = true

	result := fx.engine.DeleteUser(context.Background(), "user-1")

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "device_tokens:"))

	// Every other step still ran, including the final user row delete.
	assert.Equal(t, int64(1), result.DeletedCounts["user"])
	assert.Equal(t, int64(3), result.DeletedCounts["reports"])
	assert.Empty(t, fx.users.users)
}

func TestDeleteUserWithoutMediaStore(t *testing.T) {
	fx := newCascadeFixture("user-1")
	fx.engine.media = nil

	result := fx.engine.DeleteUser(context.Background(), "user-1")

	require.True(t, result.Success())
	assert.Zero(t, result.DeletedCounts["media_objects"])
}
