package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit state machine position.
type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds the per-dependency thresholds.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// CircuitOpenError is the fast-fail returned while the circuit is open.
// Callers must not retry in a tight loop; this error is the backpressure.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable, retry after %ds", e.Name, int(e.RetryAfter.Seconds()))
}

// BreakerSnapshot is a non-mutating diagnostic view served by the health
// endpoint.
type BreakerSnapshot struct {
	Name          string       `json:"name"`
	State         BreakerState `json:"state"`
	FailureCount  int          `json:"failure_count"`
	SuccessCount  int          `json:"success_count"`
	NextAttemptAt *time.Time   `json:"next_attempt_at,omitempty"`
}

// CircuitBreaker protects one downstream dependency. State is per process
// instance and reconstructed fresh on restart; with multiple stateless
// instances each enforces independently.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	successCount  int
	nextAttemptAt time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the named dependency
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs op through the breaker. While open it fails fast with a
// *CircuitOpenError without invoking op.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	return b.ExecuteWithFallback(ctx, op, nil)
}

// ExecuteWithFallback runs op through the breaker, invoking fallback instead
// of failing fast when the circuit is open.
func (b *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op func(context.Context) error, fallback func(context.Context) error) error {
	if err := b.allow(); err != nil {
		if fallback != nil {
			return fallback(ctx)
		}
		return err
	}

	err := op(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// allow checks whether a call may proceed, transitioning OPEN→HALF_OPEN once
// the timeout has elapsed.
func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	now := b.now()
	if now.Before(b.nextAttemptAt) {
		return &CircuitOpenError{Name: b.name, RetryAfter: b.nextAttemptAt.Sub(now)}
	}

	// Timeout elapsed: probe with a half-open circuit.
	b.state = StateHalfOpen
	b.successCount = 0
	return nil
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.successCount = 0
		}
	}
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	// A single failure while half-open reopens immediately; from closed the
	// circuit opens once the failure threshold is reached.
	if b.state == StateHalfOpen || b.failureCount >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.nextAttemptAt = b.now().Add(b.cfg.Timeout)
	}
}

// Snapshot returns the current diagnostic view without mutating state
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BreakerSnapshot{
		Name:         b.name,
		State:        b.state,
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
	}
	if b.state == StateOpen {
		t := b.nextAttemptAt
		snap.NextAttemptAt = &t
	}
	return snap
}

// Dependency names used across the service.
const (
	BreakerDatabase    = "database"
	BreakerRealtime    = "realtime"
	BreakerPushGateway = "push-gateway"
)

// Registry holds the independently configured breaker per dependency.
type Registry struct {
	breakers map[string]*CircuitBreaker
}

// NewRegistry builds the standard set of breakers. The push gateway tolerates
// more transient failures than the stores, so it gets a higher threshold and
// a longer timeout.
func NewRegistry() *Registry {
	return &Registry{
		breakers: map[string]*CircuitBreaker{
			BreakerDatabase: NewCircuitBreaker(BreakerDatabase, BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			}),
			BreakerRealtime: NewCircuitBreaker(BreakerRealtime, BreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			}),
			BreakerPushGateway: NewCircuitBreaker(BreakerPushGateway, BreakerConfig{
				FailureThreshold: 10,
				SuccessThreshold: 3,
				Timeout:          60 * time.Second,
			}),
		},
	}
}

// Get returns the breaker for the named dependency
func (r *Registry) Get(name string) *CircuitBreaker {
	return r.breakers[name]
}

// Snapshots returns the diagnostic view of every breaker
func (r *Registry) Snapshots() []BreakerSnapshot {
	out := make([]BreakerSnapshot, 0, len(r.breakers))
	for _, name := range []string{BreakerDatabase, BreakerRealtime, BreakerPushGateway} {
		if b, ok := r.breakers[name]; ok {
			out = append(out, b.Snapshot())
		}
	}
	return out
}
