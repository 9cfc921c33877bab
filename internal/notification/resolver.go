package notification

import (
	"context"
	"errors"
	"sync"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/fcm"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// InQueryLimit is the store's ceiling on values in one IN query.
const InQueryLimit = 10

// TokenResolver maps user identities to their registered delivery tokens and
// garbage-collects tokens the gateway reports dead.
type TokenResolver struct {
	tokens  repository.TokenRepository
	breaker *resilience.CircuitBreaker
	log     *logrus.Entry
}

// NewTokenResolver creates a resolver backed by the token store
func NewTokenResolver(tokens repository.TokenRepository, dbBreaker *resilience.CircuitBreaker) *TokenResolver {
	return &TokenResolver{
		tokens:  tokens,
		breaker: dbBreaker,
		log:     logging.WithComponent("TokenResolver"),
	}
}

// ResolveTokens returns the deduplicated token set for the given users.
// Lookups are partitioned into IN-query-sized chunks issued in parallel; all
// chunks are awaited before returning. An empty result is not an error:
// callers must treat it as "nothing to deliver."
func (r *TokenResolver) ResolveTokens(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	chunks := chunkStrings(uniqueStrings(userIDs), InQueryLimit)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		seen      = make(map[string]struct{})
		out       []string
		chunkErrs []error
	)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()

			err := r.breaker.Execute(ctx, func(ctx context.Context) error {
				records, err := r.tokens.FindByUserIDs(ctx, ids)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, rec := range records {
					// The same token can be registered under multiple users.
					if _, ok := seen[rec.Token]; ok {
						continue
					}
					seen[rec.Token] = struct{}{}
					out = append(out, rec.Token)
				}
				return nil
			})
			if err != nil {
				mu.Lock()
				chunkErrs = append(chunkErrs, err)
				mu.Unlock()
			}
		}(chunk)
	}
	wg.Wait()

	if len(chunkErrs) > 0 {
		return nil, errors.Join(chunkErrs...)
	}
	return out, nil
}

// CleanupInvalidTokens deletes tokens whose delivery failure code marks them
// permanently dead. Unknown or transient codes never cause deletion.
func (r *TokenResolver) CleanupInvalidTokens(ctx context.Context, failures []fcm.TokenFailure) (int64, error) {
	var dead []string
	for _, f := range failures {
		if fcm.IsTokenDeathCode(f.ErrorCode) {
			dead = append(dead, f.Token)
		}
	}
	if len(dead) == 0 {
		return 0, nil
	}

	var removed int64
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		n, err := r.tokens.DeleteTokens(ctx, dead)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}

	r.log.WithField("removed", removed).Info("cleaned up invalid tokens")
	return removed, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func chunkStrings(in []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(in); start += size {
		end := start + size
		if end > len(in) {
			end = len(in)
		}
		chunks = append(chunks, in[start:end])
	}
	return chunks
}
