package repository

import (
	"context"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
)

// BackupRepository defines the store operations on backup jobs
type BackupRepository interface {
	FindByUser(ctx context.Context, userID string, limit int) ([]domain.BackupJob, error)
	// DeleteJob removes a job's nested items before the job row itself.
	DeleteJob(ctx context.Context, jobID string) (int64, error)
}

type backupRepository struct {
	db *gorm.DB
}

// NewBackupRepository creates a new instance of backupRepository
func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

func (r *backupRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.BackupJob, error) {
	var jobs []domain.BackupJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *backupRepository) DeleteJob(ctx context.Context, jobID string) (int64, error) {
	var total int64

	res := r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&domain.BackupItem{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	res = r.db.WithContext(ctx).Where("id = ?", jobID).Delete(&domain.BackupJob{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected
	return total, nil
}
