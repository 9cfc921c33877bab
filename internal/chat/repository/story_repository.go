package repository

import (
	"context"
	"time"

	"loopchat-backend/internal/chat/domain"

	"gorm.io/gorm"
)

// StoryRepository defines the store operations on stories and followers
type StoryRepository interface {
	FindExpired(ctx context.Context, before time.Time, limit int) ([]domain.Story, error)
	FindByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Story, error)
	// DeleteStory removes a story's nested replies and reactions before the
	// story row itself. Returns rows removed including nested ones.
	DeleteStory(ctx context.Context, storyID string) (int64, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

type storyRepository struct {
	db *gorm.DB
}

// NewStoryRepository creates a new instance of storyRepository
func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &storyRepository{db: db}
}

func (r *storyRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]domain.Story, error) {
	var stories []domain.Story
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Limit(limit).
		Find(&stories).Error
	return stories, err
}

func (r *storyRepository) FindByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Story, error) {
	var stories []domain.Story
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Limit(limit).
		Find(&stories).Error
	return stories, err
}

func (r *storyRepository) DeleteStory(ctx context.Context, storyID string) (int64, error) {
	var total int64

	res := r.db.WithContext(ctx).Where("story_id = ?", storyID).Delete(&domain.StoryReply{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	res = r.db.WithContext(ctx).Where("story_id = ?", storyID).Delete(&domain.StoryReaction{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected

	res = r.db.WithContext(ctx).Where("id = ?", storyID).Delete(&domain.Story{})
	if res.Error != nil {
		return total, res.Error
	}
	total += res.RowsAffected
	return total, nil
}

func (r *storyRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Follower{}).
		Where("user_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}
