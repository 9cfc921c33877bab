package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"loopchat-backend/internal/chat/domain"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/fcm"
)

func testBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, resilience.BreakerConfig{
		FailureThreshold: 100,
		SuccessThreshold: 1,
		Timeout:          time.Second,
	})
}

// fakeTokenRepo is an in-memory TokenRepository for tests
type fakeTokenRepo struct {
	mu         sync.Mutex
	byUser     map[string][]string
	deleted    []string
	queryLens  []int
	failLookup error
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byUser: make(map[string][]string)}
}

func (f *fakeTokenRepo) add(userID string, tokens ...string) {
	f.byUser[userID] = append(f.byUser[userID], tokens...)
}

func (f *fakeTokenRepo) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	f.add(userID, token)
	return nil
}

func (f *fakeTokenRepo) FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLookup != nil {
		return nil, f.failLookup
	}
	f.queryLens = append(f.queryLens, len(userIDs))
	var out []domain.DeviceToken
	for _, id := range userIDs {
		for _, tok := range f.byUser[id] {
			out = append(out, domain.DeviceToken{UserID: id, Token: tok})
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, tokens...)
	return int64(len(tokens)), nil
}

func (f *fakeTokenRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	n := int64(len(f.byUser[userID]))
	delete(f.byUser, userID)
	return n, nil
}

func (f *fakeTokenRepo) DeleteStale(ctx context.Context, cutoff time.Time, pageSize int) (int64, error) {
	return 0, nil
}

func (f *fakeTokenRepo) SampleActive(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return nil, nil
}

// fakePrefRepo is an in-memory PreferenceRepository for tests
type fakePrefRepo struct {
	disabled map[string]bool // userID|category
	err      error
}

func newFakePrefRepo() *fakePrefRepo {
	return &fakePrefRepo{disabled: make(map[string]bool)}
}

func (f *fakePrefRepo) disable(userID, category string) {
	f.disabled[userID+"|"+category] = true
}

func (f *fakePrefRepo) FindDisabled(ctx context.Context, userIDs []string, category string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range userIDs {
		if f.disabled[id+"|"+category] {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeGateway records batches and scripts failures per batch index
type fakeGateway struct {
	mu          sync.Mutex
	batches     [][]string
	payloads    []fcm.Payload
	rejectBatch map[int]bool      // batch index -> whole-call rejection
	tokenErrors map[string]string // token -> error code
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rejectBatch: make(map[int]bool),
		tokenErrors: make(map[string]string),
	}
}

func (f *fakeGateway) SendBatch(ctx context.Context, tokens []string, payload fcm.Payload) (*fcm.BatchResult, error) {
	f.mu.Lock()
	index := len(f.batches)
	f.batches = append(f.batches, tokens)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	if f.rejectBatch[index] {
		return nil, errors.New("gateway unreachable")
	}

	result := &fcm.BatchResult{}
	for _, tok := range tokens {
		if code, ok := f.tokenErrors[tok]; ok {
			result.FailureCount++
			result.Failures = append(result.Failures, fcm.TokenFailure{Token: tok, ErrorCode: code})
		} else {
			result.SuccessCount++
		}
	}
	return result, nil
}
