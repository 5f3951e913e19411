package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"safelink/internal/models"
)

// AlertRepository defines the interface for SOS alert data operations.
type AlertRepository interface {
	CreateWithRecipients(ctx context.Context, alert *models.SOSAlert, recipientIDs []uint) error
	GetByID(ctx context.Context, id uint) (*models.SOSAlert, error)
	MarkResolved(ctx context.Context, id, userID uint, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id, userID uint, at time.Time) (bool, error)
	ListActiveByCreator(ctx context.Context, userID uint, limit int) ([]models.SOSAlert, error)
	ListActiveForRecipient(ctx context.Context, userID uint, limit int) ([]models.SOSAlert, error)
	ExpireActiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type gormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a new GORM-based AlertRepository.
func NewGormAlertRepository(db *gorm.DB) AlertRepository {
	return &gormAlertRepository{db: db}
}

// CreateWithRecipients persists the alert and its recipient snapshot in
// one transaction, so a half-written alert can never be observed.
func (r *gormAlertRepository) CreateWithRecipients(ctx context.Context, alert *models.SOSAlert, recipientIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		recipients := make([]models.SOSRecipient, 0, len(recipientIDs))
		for _, id := range recipientIDs {
			recipients = append(recipients, models.SOSRecipient{AlertID: alert.ID, UserID: id})
		}
		if len(recipients) > 0 {
			if err := tx.Create(&recipients).Error; err != nil {
				return err
			}
		}
		alert.Recipients = recipients
		return nil
	})
}

func (r *gormAlertRepository) GetByID(ctx context.Context, id uint) (*models.SOSAlert, error) {
	var alert models.SOSAlert
	err := r.db.WithContext(ctx).Preload("Recipients").First(&alert, id).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// MarkResolved transitions an active alert owned by userID to resolved.
// The guarded UPDATE is the atomic find-and-update; RowsAffected tells
// the caller whether the transition actually happened.
func (r *gormAlertRepository) MarkResolved(ctx context.Context, id, userID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SOSAlert{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.SOSActive).
		Updates(map[string]interface{}{"status": models.SOSResolved, "resolved_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCancelled transitions an active alert owned by userID to cancelled.
func (r *gormAlertRepository) MarkCancelled(ctx context.Context, id, userID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SOSAlert{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.SOSActive).
		Updates(map[string]interface{}{"status": models.SOSCancelled, "cancelled_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormAlertRepository) ListActiveByCreator(ctx context.Context, userID uint, limit int) ([]models.SOSAlert, error) {
	var alerts []models.SOSAlert
	err := r.db.WithContext(ctx).
		Preload("Recipients").
		Where("user_id = ? AND status = ?", userID, models.SOSActive).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

func (r *gormAlertRepository) ListActiveForRecipient(ctx context.Context, userID uint, limit int) ([]models.SOSAlert, error) {
	var alerts []models.SOSAlert
	err := r.db.WithContext(ctx).
		Joins("JOIN sos_alert_recipients ON sos_alert_recipients.alert_id = sos_alerts.id").
		Where("sos_alert_recipients.user_id = ? AND sos_alerts.status = ?", userID, models.SOSActive).
		Order("sos_alerts.created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

// ExpireActiveOlderThan resolves alerts that stayed active past the
// retention window. Used by the background sweep; preserves the
// semantic that stale alerts stop being active without the creator
// explicitly resolving them.
func (r *gormAlertRepository) ExpireActiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SOSAlert{}).
		Where("status = ? AND created_at < ?", models.SOSActive, cutoff).
		Updates(map[string]interface{}{"status": models.SOSResolved, "resolved_at": now})
	return res.RowsAffected, res.Error
}
