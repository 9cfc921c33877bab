package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
)

// CallRepository defines the store operations on call history
type CallRepository interface {
	// DeleteByParticipant removes calls where the user is either party.
	DeleteByParticipant(ctx context.Context, userID string, pageSize int) (int64, error)
	// ExpireStale transitions calls stuck in a non-terminal state since the
	// cutoff to missed. The status guard in the WHERE clause makes concurrent
	// sweeps safe: a call already transitioned is simply not matched.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type callRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new instance of callRepository
func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) DeleteByParticipant(ctx context.Context, userID string, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.Call{}).
			Where("caller_id = ? OR callee_id = ?", userID, userID).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Call{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}

func (r *callRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("status IN ? AND created_at < ?", []string{domain.CallStatusRinging, domain.CallStatusCalling}, cutoff).
		Updates(map[string]interface{}{
			"status":   domain.CallStatusMissed,
			"ended_at": now,
		})
	return res.RowsAffected, res.Error
}
