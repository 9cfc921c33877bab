package notification

import (
	"context"
	"sync"
	"time"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/fcm"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// Notification types carried in data.type. These are a wire contract the
// client app routes on; renaming one requires a client-side migration.
const (
	TypeNewMessage      = "new_message"
	TypeIncomingCall    = "incoming_call"
	TypeNewStory        = "new_story"
	TypeBackupCompleted = "backup_completed"
)

// Human-text ceilings for the notification block.
const (
	maxTitleLen = 100
	maxBodyLen  = 250
)

// Notice is one event's fan-out request: who to notify and what to say.
// Recipients are candidates; the dispatcher filters them by preference.
type Notice struct {
	Type         string
	Category     string
	Recipients   []string
	Title        string
	Body         string
	Data         map[string]string
	HighPriority bool
	TTL          time.Duration
	Channel      string
}

// Dispatcher filters recipients by notification preference, resolves tokens
// and hands the payload to batched delivery.
type Dispatcher struct {
	prefs    repository.PreferenceRepository
	resolver *TokenResolver
	delivery *DeliveryEngine
	breaker  *resilience.CircuitBreaker
	log      *logrus.Entry
}

// NewDispatcher creates the notification dispatcher
func NewDispatcher(prefs repository.PreferenceRepository, resolver *TokenResolver, delivery *DeliveryEngine, dbBreaker *resilience.CircuitBreaker) *Dispatcher {
	return &Dispatcher{
		prefs:    prefs,
		resolver: resolver,
		delivery: delivery,
		breaker:  dbBreaker,
		log:      logging.WithComponent("Dispatcher"),
	}
}

// Dispatch runs one notice through preference filtering, token resolution and
// batched delivery. An empty recipient or token set is a no-op, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notice) (*DeliveryResult, error) {
	recipients := d.filterByPreference(ctx, uniqueStrings(n.Recipients), n.Category)
	if len(recipients) == 0 {
		return &DeliveryResult{}, nil
	}

	tokens, err := d.resolver.ResolveTokens(ctx, recipients)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return &DeliveryResult{}, nil
	}

	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = n.Type

	payload := fcm.Payload{
		Title:        truncate(n.Title, maxTitleLen),
		Body:         truncate(n.Body, maxBodyLen),
		Data:         data,
		HighPriority: n.HighPriority,
		TTL:          n.TTL,
		Channel:      n.Channel,
	}
	return d.delivery.Send(ctx, tokens, payload)
}

// filterByPreference removes candidates that opted out of the category.
// Lookups are chunked and parallel; a lookup failure fails open so a
// preference-store outage can never suppress all notifications.
func (d *Dispatcher) filterByPreference(ctx context.Context, candidates []string, category string) []string {
	if len(candidates) == 0 || category == "" {
		return candidates
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		disabled = make(map[string]struct{})
	)

	for _, chunk := range chunkStrings(candidates, InQueryLimit) {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()

			err := d.breaker.Execute(ctx, func(ctx context.Context) error {
				off, err := d.prefs.FindDisabled(ctx, ids, category)
				if err != nil {
					return err
				}
				mu.Lock()
				for _, id := range off {
					disabled[id] = struct{}{}
				}
				mu.Unlock()
				return nil
			})
			if err != nil {
				d.log.WithField("category", category).WithError(err).Warn("preference lookup failed, failing open")
			}
		}(chunk)
	}
	wg.Wait()

	if len(disabled) == 0 {
		return candidates
	}
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, off := disabled[id]; !off {
			out = append(out, id)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
