package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loopchat-backend/internal/chat/domain"
	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const subscriptionAckDeadline = 10 * time.Second

// Consumer pulls document-change triggers off the event topic, deduplicates
// redeliveries and routes each event through its handler and the executor.
type Consumer struct {
	client   *pubsub.Client
	topic    string
	subName  string
	guard    repository.EventRepository
	users    repository.UserRepository
	rooms    repository.RoomRepository
	stories  repository.StoryRepository
	executor *Executor
	timeout  time.Duration
	log      *logrus.Entry
}

// NewConsumer creates the event consumer. credentialsFile may be empty when
// ambient credentials are available.
func NewConsumer(
	projectID, topic, credentialsFile string,
	guard repository.EventRepository,
	users repository.UserRepository,
	rooms repository.RoomRepository,
	stories repository.StoryRepository,
	executor *Executor,
	handlerTimeout time.Duration,
) (*Consumer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(context.Background(), projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Consumer{
		client:   client,
		topic:    topic,
		subName:  topic + "-sub",
		guard:    guard,
		users:    users,
		rooms:    rooms,
		stories:  stories,
		executor: executor,
		timeout:  handlerTimeout,
		log:      logging.WithComponent("EventConsumer"),
	}, nil
}

// Start blocks receiving from the subscription until ctx is cancelled. The
// subscription is created on first run if the topic already exists.
func (c *Consumer) Start(ctx context.Context) {
	sub := c.client.Subscription(c.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		c.log.WithError(err).Error("failed to check subscription")
		return
	}

	if !exists {
		topic := c.client.Topic(c.topic)
		topicExists, err := topic.Exists(ctx)
		if err != nil || !topicExists {
			c.log.WithError(err).WithField("topic", c.topic).Error("event topic unavailable")
			return
		}
		sub, err = c.client.CreateSubscription(ctx, c.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: subscriptionAckDeadline,
		})
		if err != nil {
			c.log.WithError(err).Error("failed to create subscription")
			return
		}
		c.log.WithField("subscription", c.subName).Info("created subscription")
	}

	c.log.WithField("subscription", c.subName).Info("listening for document events")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := c.Handle(ctx, msg.Data)

		// Redelivery only helps when a protected dependency is shedding load;
		// anything else would redeliver forever.
		var open *resilience.CircuitOpenError
		if errors.As(err, &open) {
			msg.Nack()
			return
		}
		if err != nil {
			c.log.WithError(err).Warn("event handling failed, not retrying")
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		c.log.WithError(err).Error("receive loop stopped")
	}
}

// Handle processes one raw trigger payload. Malformed payloads and duplicate
// deliveries return nil so they are acked and dropped.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var ev DocumentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.WithError(err).Warn("dropping undecodable event")
		return nil
	}

	first, err := c.guard.MarkProcessed(ctx, ev.Key())
	if err != nil {
		// Fail open: double handling is recoverable, a silently dropped event
		// is not.
		c.log.WithError(err).WithField("event", ev.Key()).Warn("dedup guard unavailable, processing anyway")
	} else if !first {
		c.log.WithField("event", ev.Key()).Debug("skipping duplicate delivery")
		return nil
	}

	effects, err := c.route(ctx, &ev)
	if err == nil {
		err = c.executor.Apply(ctx, effects)
	}

	// A load-shedding failure comes back as a nack and a redelivery. The
	// guard entry has to be released first, or the retry would be dropped
	// as a duplicate.
	var open *resilience.CircuitOpenError
	if errors.As(err, &open) {
		if forgetErr := c.guard.ForgetProcessed(ctx, ev.Key()); forgetErr != nil {
			c.log.WithError(forgetErr).WithField("event", ev.Key()).Warn("failed to release dedup entry for retry")
		}
	}
	return err
}

// route loads whatever context the event's handler needs and invokes it.
func (c *Consumer) route(ctx context.Context, ev *DocumentEvent) ([]Effect, error) {
	switch {
	case ev.Collection == CollectionMessages && ev.Change == ChangeCreated:
		var msg domain.Message
		if err := decodeSnapshot(ev.After, &msg); err != nil {
			return []Effect{LogWarning{Reason: "message event with undecodable snapshot"}}, nil
		}
		memberIDs, err := c.rooms.MemberIDs(ctx, msg.RoomID)
		if err != nil {
			return nil, err
		}
		mutedIDs, err := c.rooms.MutedMemberIDs(ctx, msg.RoomID, time.Now())
		if err != nil {
			// Mute lookup failure must not cost anyone the notification.
			c.log.WithError(err).WithField("room", msg.RoomID).Warn("mute lookup failed, notifying all members")
			mutedIDs = nil
		}
		return MessageEffects(&msg, c.userName(ctx, msg.SenderID), memberIDs, mutedIDs), nil

	case ev.Collection == CollectionCalls && ev.Change == ChangeCreated:
		var call domain.Call
		if err := decodeSnapshot(ev.After, &call); err != nil {
			return []Effect{LogWarning{Reason: "call event with undecodable snapshot"}}, nil
		}
		return CallEffects(&call, c.userName(ctx, call.CallerID)), nil

	case ev.Collection == CollectionStories && ev.Change == ChangeCreated:
		var story domain.Story
		if err := decodeSnapshot(ev.After, &story); err != nil {
			return []Effect{LogWarning{Reason: "story event with undecodable snapshot"}}, nil
		}
		followerIDs, err := c.stories.FollowerIDs(ctx, story.OwnerID)
		if err != nil {
			return nil, err
		}
		return StoryEffects(&story, c.userName(ctx, story.OwnerID), followerIDs), nil

	case ev.Collection == CollectionBackups && (ev.Change == ChangeWritten || ev.Change == ChangeCreated):
		var before, after *domain.BackupJob
		if len(ev.Before) > 0 {
			before = &domain.BackupJob{}
			if err := decodeSnapshot(ev.Before, before); err != nil {
				before = nil
			}
		}
		if len(ev.After) > 0 {
			after = &domain.BackupJob{}
			if err := decodeSnapshot(ev.After, after); err != nil {
				return []Effect{LogWarning{Reason: "backup event with undecodable snapshot"}}, nil
			}
		}
		return BackupEffects(before, after), nil

	case ev.Collection == CollectionIdentities && ev.Change == ChangeDeleted:
		return IdentityDeletedEffects(ev.DocumentID), nil

	default:
		return []Effect{NoOp{}}, nil
	}
}

// userName resolves a display name, tolerating a missing or unreadable user:
// notification copy degrades to a generic title instead of failing the event.
func (c *Consumer) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := c.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Name
}

func decodeSnapshot(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return errors.New("empty snapshot")
	}
	return json.Unmarshal(raw, into)
}

// Close releases the underlying client.
func (c *Consumer) Close() error {
	return c.client.Close()
}
