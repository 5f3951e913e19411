package storage

import (
	"context"

	"gorm.io/gorm"

	"safelink/internal/models"
)

// SubscriptionRepository defines the interface for push-subscription
// data operations. The delivery gateway only reads; the register and
// unregister endpoints write.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	FindActiveByUserID(ctx context.Context, userID uint) ([]models.PushSubscription, error)
	Deactivate(ctx context.Context, userID uint, token string) error
}

type gormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GORM-based SubscriptionRepository.
func NewGormSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &gormSubscriptionRepository{db: db}
}

// Upsert re-activates an existing (user, token) row or creates a new one.
// Device tokens are stable across app restarts, so re-registration is
// the common path.
func (r *gormSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	var existing models.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", sub.UserID, sub.Token).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&existing).
			Updates(map[string]interface{}{"is_active": true, "platform": sub.Platform}).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *gormSubscriptionRepository) FindActiveByUserID(ctx context.Context, userID uint) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active", userID).
		Find(&subs).Error
	return subs, err
}

func (r *gormSubscriptionRepository) Deactivate(ctx context.Context, userID uint, token string) error {
	return r.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("user_id = ? AND token = ?", userID, token).
		Update("is_active", false).Error
}
