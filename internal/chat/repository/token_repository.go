package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository defines the store operations on push-delivery tokens
type TokenRepository interface {
	// SaveToken upserts a token registration and refreshes its staleness clock.
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	// FindByUserIDs returns all tokens owned by the given users. Callers are
	// responsible for keeping len(userIDs) within the store's IN-query limit.
	FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.DeviceToken, error)
	// DeleteTokens removes the given token values and returns how many rows
	// were actually deleted. Unknown tokens are a no-op.
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
	// DeleteByUserID removes every token owned by a user.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	// DeleteStale removes tokens unrefreshed since the cutoff, in pages.
	DeleteStale(ctx context.Context, cutoff time.Time, pageSize int) (int64, error)
	// SampleActive returns up to limit token values refreshed since the cutoff,
	// for dry-run validation against the gateway.
	SampleActive(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	now := time.Now()
	record := &domain.DeviceToken{
		ID:              uuid.New().String(),
		UserID:          userID,
		Token:           token,
		DeviceInfo:      deviceInfo,
		CreatedAt:       now,
		LastRefreshedAt: now,
	}

	// Atomic upsert: INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "last_refreshed_at"}),
	}).Create(record).Error
}

func (r *tokenRepository) FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []domain.DeviceToken
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *tokenRepository) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&domain.DeviceToken{})
	return res.RowsAffected, res.Error
}

func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.DeviceToken{})
	return res.RowsAffected, res.Error
}

func (r *tokenRepository) DeleteStale(ctx context.Context, cutoff time.Time, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.DeviceToken{}).
			Where("last_refreshed_at < ?", cutoff).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.DeviceToken{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}

func (r *tokenRepository) SampleActive(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&domain.DeviceToken{}).
		Where("last_refreshed_at >= ?", cutoff).
		Order("last_refreshed_at ASC").
		Limit(limit).
		Pluck("token", &tokens).Error
	return tokens, err
}
