package events

import (
	"context"
	"errors"

	"loopchat-backend/internal/account"
	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/notification"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// NoticeDispatcher is the fan-out surface the executor needs.
type NoticeDispatcher interface {
	Dispatch(ctx context.Context, n notification.Notice) (*notification.DeliveryResult, error)
}

// CascadeRunner removes a deleted identity's data.
type CascadeRunner interface {
	DeleteUser(ctx context.Context, userID string) *account.CascadeResult
}

// Executor applies the effects handlers decide on. Handlers stay pure; all
// stores and side channels live here.
type Executor struct {
	dispatcher NoticeDispatcher
	rooms      repository.RoomRepository
	cascade    CascadeRunner
	dbBreaker  *resilience.CircuitBreaker
	log        *logrus.Entry
}

// NewExecutor creates the effect executor
func NewExecutor(dispatcher NoticeDispatcher, rooms repository.RoomRepository, cascade CascadeRunner, dbBreaker *resilience.CircuitBreaker) *Executor {
	return &Executor{
		dispatcher: dispatcher,
		rooms:      rooms,
		cascade:    cascade,
		dbBreaker:  dbBreaker,
		log:        logging.WithComponent("EventExecutor"),
	}
}

// Apply runs every effect in order. Effects are independent, so one failing
// does not stop the rest; the joined error reports everything that failed.
func (e *Executor) Apply(ctx context.Context, effects []Effect) error {
	var errs []error
	for _, effect := range effects {
		if err := e.apply(ctx, effect); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) apply(ctx context.Context, effect Effect) error {
	switch eff := effect.(type) {
	case SendNotification:
		result, err := e.dispatcher.Dispatch(ctx, eff.Notice)
		if err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"type":    eff.Notice.Type,
			"success": result.SuccessCount,
			"failure": result.FailureCount,
		}).Info("notification dispatched")
		return nil

	case IncrementUnread:
		return e.dbBreaker.Execute(ctx, func(ctx context.Context) error {
			if err := e.rooms.IncrementUnread(ctx, eff.RoomID, eff.SenderID); err != nil {
				return err
			}
			return e.rooms.UpdateLastMessage(ctx, eff.RoomID, eff.Preview, eff.SenderID, eff.At)
		})

	case RunCascade:
		result := e.cascade.DeleteUser(ctx, eff.UserID)
		if !result.Success() {
			// The cascade already isolated and logged its failures; the next
			// invocation through the account endpoint or the deletion trigger
			// picks up the leftovers.
			e.log.WithFields(logrus.Fields{
				"user_id": eff.UserID,
				"errors":  result.Errors,
			}).Warn("cascade finished with failed steps")
		}
		return nil

	case LogWarning:
		e.log.Warn(eff.Reason)
		return nil

	case NoOp:
		return nil

	default:
		e.log.WithField("effect", effect).Warn("unknown effect kind")
		return nil
	}
}
