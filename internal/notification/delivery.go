package notification

import (
	"context"
	"sync"

	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/fcm"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// MulticastBatchSize is the push gateway's ceiling on tokens per multicast.
const MulticastBatchSize = fcm.MaxTokensPerBatch

// Gateway is the push gateway surface the delivery engine needs. Implemented
// by *fcm.Client; tests substitute a fake.
type Gateway interface {
	SendBatch(ctx context.Context, tokens []string, payload fcm.Payload) (*fcm.BatchResult, error)
}

// DeliveryResult aggregates one fan-out across all batches.
type DeliveryResult struct {
	SuccessCount int
	FailureCount int
}

// DeliveryEngine splits token sets into gateway-sized batches, sends them
// concurrently and routes per-token failures into token cleanup.
type DeliveryEngine struct {
	gateway  Gateway
	resolver *TokenResolver
	breaker  *resilience.CircuitBreaker
	log      *logrus.Entry
}

// NewDeliveryEngine creates the batched delivery engine
func NewDeliveryEngine(gateway Gateway, resolver *TokenResolver, pushBreaker *resilience.CircuitBreaker) *DeliveryEngine {
	return &DeliveryEngine{
		gateway:  gateway,
		resolver: resolver,
		breaker:  pushBreaker,
		log:      logging.WithComponent("DeliveryEngine"),
	}
}

// Send fans payload out to every token. All batches are issued concurrently,
// so total latency is bounded by the slowest batch, not the sum. A batch
// whose gateway call rejects entirely counts every token in it as failed;
// partial per-token failures are aggregated and handed to token cleanup.
// Partial failure is never an error: the result always accounts for every
// token (SuccessCount+FailureCount == len(tokens)).
func (e *DeliveryEngine) Send(ctx context.Context, tokens []string, payload fcm.Payload) (*DeliveryResult, error) {
	result := &DeliveryResult{}
	if len(tokens) == 0 {
		return result, nil
	}

	batches := chunkStrings(tokens, MulticastBatchSize)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures []fcm.TokenFailure
	)

	for i, batch := range batches {
		wg.Add(1)
		go func(index int, batch []string) {
			defer wg.Done()

			var batchResult *fcm.BatchResult
			err := e.breaker.Execute(ctx, func(ctx context.Context) error {
				res, err := e.gateway.SendBatch(ctx, batch, payload)
				if err != nil {
					return err
				}
				batchResult = res
				return nil
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Whole-batch rejection: no partial credit. These tokens are
				// not routed to cleanup since nothing was learned about them.
				result.FailureCount += len(batch)
				e.log.WithFields(logrus.Fields{
					"batch":  index,
					"tokens": len(batch),
				}).WithError(err).Warn("multicast batch rejected")
				return
			}

			result.SuccessCount += batchResult.SuccessCount
			result.FailureCount += batchResult.FailureCount
			failures = append(failures, batchResult.Failures...)
		}(i, batch)
	}
	wg.Wait()

	if len(failures) > 0 {
		// Delivery and garbage collection are coupled: a dead token is only
		// discovered by trying to use it.
		if _, err := e.resolver.CleanupInvalidTokens(ctx, failures); err != nil {
			e.log.WithError(err).Warn("failed to clean up invalid tokens")
		}
	}

	e.log.WithFields(logrus.Fields{
		"success": result.SuccessCount,
		"failure": result.FailureCount,
		"batches": len(batches),
	}).Info("fan-out complete")
	return result, nil
}
