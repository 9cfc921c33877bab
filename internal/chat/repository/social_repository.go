package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository reads per-user notification preferences. Preferences
// are owned by the user settings UI; this core never writes them.
type PreferenceRepository interface {
	// FindDisabled returns the subset of userIDs that have explicitly turned
	// the category off. A user without a row is enabled by default.
	FindDisabled(ctx context.Context, userIDs []string, category string) ([]string, error)
}

// BlockRepository defines the store operations on block lists
type BlockRepository interface {
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
	DeleteOwnedBy(ctx context.Context, userID string) (int64, error)
	// DeleteReferencing removes the user from every other user's block list.
	DeleteReferencing(ctx context.Context, blockedID string) (int64, error)
}

// ReportRepository defines the store operations on abuse reports
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	DeleteByReported(ctx context.Context, reportedID string, pageSize int) (int64, error)
}

// NotificationRepository defines the store operations on stored notifications
type NotificationRepository interface {
	DeleteByParticipant(ctx context.Context, userID string, pageSize int) (int64, error)
}

type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new instance of preferenceRepository
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) FindDisabled(ctx context.Context, userIDs []string, category string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.NotificationPreference{}).
		Where("user_id IN ? AND category = ? AND enabled = ?", userIDs, category, false).
		Pluck("user_id", &ids).Error
	return ids, err
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new instance of blockRepository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Block(ctx context.Context, userID, blockedID string) error {
	record := &domain.Block{
		UserID:    userID,
		BlockedID: blockedID,
		CreatedAt: time.Now(),
	}
	// Blocking twice is a no-op, not an error.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

func (r *blockRepository) Unblock(ctx context.Context, userID, blockedID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND blocked_id = ?", userID, blockedID).
		Delete(&domain.Block{}).Error
}

func (r *blockRepository) DeleteOwnedBy(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Block{})
	return res.RowsAffected, res.Error
}

func (r *blockRepository) DeleteReferencing(ctx context.Context, blockedID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("blocked_id = ?", blockedID).Delete(&domain.Block{})
	return res.RowsAffected, res.Error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new instance of reportRepository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Status == "" {
		report.Status = domain.ReportStatusPending
	}
	report.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) DeleteByReported(ctx context.Context, reportedID string, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.Report{}).
			Where("reported_id = ?", reportedID).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Report{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new instance of notificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) DeleteByParticipant(ctx context.Context, userID string, pageSize int) (int64, error) {
	var total int64
	for {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.Notification{}).
			Where("sender_id = ? OR recipient_id = ?", userID, userID).
			Limit(pageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Notification{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < pageSize {
			return total, nil
		}
	}
}
