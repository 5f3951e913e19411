package storage

import (
	"context"

	"gorm.io/gorm"

	"safelink/internal/models"
)

// ActivityRepository defines the interface for activity-feed data operations.
type ActivityRepository interface {
	CreateBatch(ctx context.Context, entries []models.ActivityEntry) error
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.ActivityEntry, error)
}

type gormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GORM-based ActivityRepository.
func NewGormActivityRepository(db *gorm.DB) ActivityRepository {
	return &gormActivityRepository{db: db}
}

func (r *gormActivityRepository) CreateBatch(ctx context.Context, entries []models.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *gormActivityRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.ActivityEntry, error) {
	var entries []models.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
