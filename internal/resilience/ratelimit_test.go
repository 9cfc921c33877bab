package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limits map[string]int) (*RateLimiter, *time.Time) {
	l := NewRateLimiter(DefaultWindow, limits, 60)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestRateLimiterWindowProperty(t *testing.T) {
	l, current := newTestLimiter(map[string]int{OpReportUser: 5})
	defer l.Stop()

	// N allowed requests within the window.
	for i := 0; i < 5; i++ {
		d := l.Check("user-1", OpReportUser)
		require.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	// The (N+1)th within the same window is rejected with a retry hint.
	d := l.Check("user-1", OpReportUser)
	require.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfterSeconds, 0)

	// After the window elapses the key behaves as fresh.
	*current = current.Add(61 * time.Second)
	d = l.Check("user-1", OpReportUser)
	require.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(map[string]int{OpBlockUser: 2, OpReportUser: 2})
	defer l.Stop()

	l.Check("user-1", OpBlockUser)
	l.Check("user-1", OpBlockUser)
	require.False(t, l.Check("user-1", OpBlockUser).Allowed)

	// Same identity, different operation: separate counter.
	assert.True(t, l.Check("user-1", OpReportUser).Allowed)
	// Same operation, different identity: separate counter.
	assert.True(t, l.Check("user-2", OpBlockUser).Allowed)
}

func TestRateLimiterRetryAfterShrinks(t *testing.T) {
	l, current := newTestLimiter(map[string]int{OpDeleteAccount: 1})
	defer l.Stop()

	require.True(t, l.Check("user-1", OpDeleteAccount).Allowed)

	d := l.Check("user-1", OpDeleteAccount)
	require.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfterSeconds)

	*current = current.Add(45 * time.Second)
	d = l.Check("user-1", OpDeleteAccount)
	require.False(t, d.Allowed)
	assert.Equal(t, 15, d.RetryAfterSeconds)
}

func TestRateLimiterUnknownOperationUsesDefault(t *testing.T) {
	l, _ := newTestLimiter(map[string]int{})
	defer l.Stop()

	d := l.Check("user-1", "unlisted_op")
	require.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining)
}
