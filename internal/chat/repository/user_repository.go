package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the store operations on user records and the
// first-party subcollections scoped under a user
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Delete removes the user's primary record. Deleting an already-deleted
	// user is a no-op.
	Delete(ctx context.Context, id string) (int64, error)
	DeleteSessions(ctx context.Context, userID string) (int64, error)
	DeleteSecurityEvents(ctx context.Context, userID string, pageSize int) (int64, error)
	DeleteSettings(ctx context.Context, userID string) (int64, error)
	DeleteContacts(ctx context.Context, userID string) (int64, error)
}

// EventRepository tracks which trigger deliveries have been handled
type EventRepository interface {
	// MarkProcessed records the event ID and reports whether this delivery is
	// the first one. A second delivery of the same ID returns false.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	// ForgetProcessed releases an event ID so a later redelivery is handled
	// again instead of being dropped as a duplicate.
	ForgetProcessed(ctx context.Context, eventID string) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	return res.RowsAffected, res.Error
}

func (r *userRepository) DeleteSessions(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}

func (r *userRepository) DeleteSecurityEvents(ctx context.Context, userID string, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.SecurityEvent{}).
			Where("user_id = ?", userID).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.SecurityEvent{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}

func (r *userRepository) DeleteSettings(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.UserSettings{})
	return res.RowsAffected, res.Error
}

func (r *userRepository) DeleteContacts(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Contact{})
	return res.RowsAffected, res.Error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new instance of eventRepository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	record := &domain.ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepository) ForgetProcessed(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&domain.ProcessedEvent{}).Error
}

func (r *eventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("processed_at < ?", cutoff).Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
