package notification

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

func newTestDispatcher(repo *fakeTokenRepo, prefs *fakePrefRepo, gateway *fakeGateway) *Dispatcher {
	resolver := NewTokenResolver(repo, testBreaker("database"))
	delivery := NewDeliveryEngine(gateway, resolver, testBreaker("push-gateway"))
	return NewDispatcher(prefs, resolver, delivery, testBreaker("database"))
}

func TestDispatchFiltersDisabledRecipients(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.add("user-a", "token-a")
	repo.add("user-b", "token-b")
	prefs := newFakePrefRepo()
	prefs.disable("user-b", domain.CategoryMessages)
	gateway := newFakeGateway()

	d := newTestDispatcher(repo, prefs, gateway)
	result, err := d.Dispatch(context.Background(), Notice{
		Type:       TypeNewMessage,
		Category:   domain.CategoryMessages,
		Recipients: []string{"user-a", "user-b"},
		Title:      "Alice",
		Body:       "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, gateway.batches, 1)
	assert.Equal(t, []string{"token-a"}, gateway.batches[0])
}

func TestDispatchFailsOpenOnPreferenceOutage(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.add("user-a", "token-a")
	prefs := newFakePrefRepo()
	prefs.err = errors.New("preference store down")
	gateway := newFakeGateway()

	d := newTestDispatcher(repo, prefs, gateway)
	result, err := d.Dispatch(context.Background(), Notice{
		Type:       TypeNewMessage,
		Category:   domain.CategoryMessages,
		Recipients: []string{"user-a"},
	})
	require.NoError(t, err)

	// A preference outage must not suppress delivery.
	assert.Equal(t, 1, result.SuccessCount)
}

func TestDispatchNoopsOnEmptyRecipientsOrTokens(t *testing.T) {
	repo := newFakeTokenRepo()
	prefs := newFakePrefRepo()
	gateway := newFakeGateway()
	d := newTestDispatcher(repo, prefs, gateway)

	result, err := d.Dispatch(context.Background(), Notice{Type: TypeNewStory, Category: domain.CategoryStories})
	require.NoError(t, err)
	assert.Zero(t, result.SuccessCount+result.FailureCount)

	// Recipients with no tokens: still a no-op, not an error.
	result, err = d.Dispatch(context.Background(), Notice{
		Type:       TypeNewStory,
		Category:   domain.CategoryStories,
		Recipients: []string{"user-x"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.SuccessCount+result.FailureCount)
	assert.Empty(t, gateway.batches)
}

func TestDispatchTruncatesAndStampsPayload(t *testing.T) {
	repo := newFakeTokenRepo()
	repo.add("user-a", "token-a")
	prefs := newFakePrefRepo()
	gateway := newFakeGateway()
	d := newTestDispatcher(repo, prefs, gateway)

	_, err := d.Dispatch(context.Background(), Notice{
		Type:         TypeIncomingCall,
		Category:     domain.CategoryCalls,
		Recipients:   []string{"user-a"},
		Title:        strings.Repeat("t", 150),
		Body:         strings.Repeat("b", 300),
		Data:         map[string]string{"callId": "call-1"},
		HighPriority: true,
		TTL:          30 * time.Second,
	})
	require.NoError(t, err)

	require.Len(t, gateway.payloads, 1)
	p := gateway.payloads[0]
	assert.Len(t, p.Title, 100)
	assert.True(t, strings.HasSuffix(p.Title, "..."))
	assert.Len(t, p.Body, 250)
	assert.Equal(t, TypeIncomingCall, p.Data["type"])
	assert.Equal(t, "call-1", p.Data["callId"])
	assert.True(t, p.HighPriority)
	assert.Equal(t, 30*time.Second, p.TTL)
}
