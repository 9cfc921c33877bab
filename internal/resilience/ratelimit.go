package resilience

import (
	"math"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultWindow is the fixed rate-limit window length.
const DefaultWindow = 60 * time.Second

// Operation names gated by the limiter.
const (
	OpUpdatePresence    = "update_presence"
	OpGetPresence       = "get_presence"
	OpBatchStatusUpdate = "batch_status_update"
	OpBlockUser         = "block_user"
	OpUnblockUser       = "unblock_user"
	OpReportUser        = "report_user"
	OpDeleteAccount     = "delete_account"
	OpResetUnread       = "reset_unread"
	OpMuteRoom          = "mute_room"
	OpRegisterToken     = "register_token"
)

// DefaultLimits is the per-window ceiling table for each operation.
var DefaultLimits = map[string]int{
	OpUpdatePresence:    120,
	OpGetPresence:       120,
	OpBatchStatusUpdate: 60,
	OpBlockUser:         20,
	OpUnblockUser:       20,
	OpReportUser:        5,
	OpDeleteAccount:     2,
	OpResetUnread:       60,
	OpMuteRoom:          20,
	OpRegisterToken:     10,
}

// Decision is the limiter's answer for one request.
type Decision struct {
	Allowed           bool
	Remaining         int
	RetryAfterSeconds int
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// RateLimiter enforces a fixed window per (identity, operation) key. Counters
// are in-memory and per process instance: a restart or horizontal scale-out
// resets or duplicates them. This is a best-effort abuse guard, not a strict
// quota system; a shared counter store can replace the cache behind Check
// without changing callers.
type RateLimiter struct {
	window       time.Duration
	limits       map[string]int
	defaultLimit int

	mu       sync.Mutex
	counters *ttlcache.Cache[string, *windowCounter]

	now func() time.Time
}

// NewRateLimiter creates a limiter with the given window and ceiling table
func NewRateLimiter(window time.Duration, limits map[string]int, defaultLimit int) *RateLimiter {
	counters := ttlcache.New[string, *windowCounter](
		ttlcache.WithTTL[string, *windowCounter](window),
		ttlcache.WithDisableTouchOnHit[string, *windowCounter](),
	)
	go counters.Start()

	return &RateLimiter{
		window:       window,
		limits:       limits,
		defaultLimit: defaultLimit,
		counters:     counters,
		now:          time.Now,
	}
}

// NewDefaultRateLimiter creates the limiter with the standard window and table
func NewDefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(DefaultWindow, DefaultLimits, 60)
}

// Check records one request for the (identity, operation) key and decides
// whether it is allowed within the current window.
func (l *RateLimiter) Check(identity, operation string) Decision {
	limit, ok := l.limits[operation]
	if !ok {
		limit = l.defaultLimit
	}

	key := identity + "|" + operation
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var counter *windowCounter
	if item := l.counters.Get(key); item != nil {
		counter = item.Value()
	}

	// Fresh key, or the previous window has expired: reset, not carry-over.
	if counter == nil || !now.Before(counter.resetAt) {
		counter = &windowCounter{count: 1, resetAt: now.Add(l.window)}
		l.counters.Set(key, counter, l.window)
		return Decision{Allowed: true, Remaining: limit - 1}
	}

	if counter.count >= limit {
		retryAfter := int(math.Ceil(counter.resetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfterSeconds: retryAfter}
	}

	counter.count++
	return Decision{Allowed: true, Remaining: limit - counter.count}
}

// Stop halts the background expiry of counters
func (l *RateLimiter) Stop() {
	l.counters.Stop()
}
