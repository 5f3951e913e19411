package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"safelink/internal/models"
)

// RelationshipRepository defines the interface for friend-relationship
// data operations. The pair uniqueness constraint lives on the ordered
// (requester_id, recipient_id) columns, so existence checks query both
// orderings.
type RelationshipRepository interface {
	Create(ctx context.Context, rel *models.FriendRelationship) error
	GetByID(ctx context.Context, id uint) (*models.FriendRelationship, error)
	FindBetween(ctx context.Context, userA, userB uint) (*models.FriendRelationship, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.RelationshipStatus) (bool, error)
	Reopen(ctx context.Context, id uint, requesterID, recipientID uint, message string) (bool, error)
	Delete(ctx context.Context, id uint) error
	ListAcceptedFor(ctx context.Context, userID uint) ([]models.FriendRelationship, error)
	ListPendingFor(ctx context.Context, userID uint) ([]models.FriendRelationship, error)
	CountPendingInbound(ctx context.Context, recipientID uint) (int64, error)
	CountOutboundSince(ctx context.Context, requesterID uint, since time.Time) (int64, error)
}

type gormRelationshipRepository struct {
	db *gorm.DB
}

// NewGormRelationshipRepository creates a new GORM-based RelationshipRepository.
func NewGormRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &gormRelationshipRepository{db: db}
}

func (r *gormRelationshipRepository) Create(ctx context.Context, rel *models.FriendRelationship) error {
	return r.db.WithContext(ctx).Create(rel).Error
}

func (r *gormRelationshipRepository) GetByID(ctx context.Context, id uint) (*models.FriendRelationship, error) {
	var rel models.FriendRelationship
	if err := r.db.WithContext(ctx).First(&rel, id).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

// FindBetween returns the single record for the pair, whichever way
// around it was created, or nil if none exists.
func (r *gormRelationshipRepository) FindBetween(ctx context.Context, userA, userB uint) (*models.FriendRelationship, error) {
	var rel models.FriendRelationship
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
			userA, userB, userB, userA).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

// UpdateStatus transitions a record from one status to another in a
// single guarded UPDATE. The returned bool reports whether a row in the
// expected state was actually updated, which serializes concurrent
// responders at the storage layer.
func (r *gormRelationshipRepository) UpdateStatus(ctx context.Context, id uint, from, to models.RelationshipStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FriendRelationship{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reopen flips a rejected record back to pending with a possibly new
// direction, preserving the record identity. Guarded the same way as
// UpdateStatus.
func (r *gormRelationshipRepository) Reopen(ctx context.Context, id uint, requesterID, recipientID uint, message string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FriendRelationship{}).
		Where("id = ? AND status = ?", id, models.RelationshipRejected).
		Updates(map[string]interface{}{
			"requester_id": requesterID,
			"recipient_id": recipientID,
			"status":       models.RelationshipPending,
			"message":      message,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRelationshipRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FriendRelationship{}, id).Error
}

func (r *gormRelationshipRepository) ListAcceptedFor(ctx context.Context, userID uint) ([]models.FriendRelationship, error) {
	var rels []models.FriendRelationship
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?",
			userID, userID, models.RelationshipAccepted).
		Find(&rels).Error
	return rels, err
}

func (r *gormRelationshipRepository) ListPendingFor(ctx context.Context, userID uint) ([]models.FriendRelationship, error) {
	var rels []models.FriendRelationship
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?",
			userID, userID, models.RelationshipPending).
		Order("created_at DESC").
		Find(&rels).Error
	return rels, err
}

func (r *gormRelationshipRepository) CountPendingInbound(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FriendRelationship{}).
		Where("recipient_id = ? AND status = ?", recipientID, models.RelationshipPending).
		Count(&count).Error
	return count, err
}

func (r *gormRelationshipRepository) CountOutboundSince(ctx context.Context, requesterID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FriendRelationship{}).
		Where("requester_id = ? AND created_at >= ?", requesterID, since).
		Count(&count).Error
	return count, err
}
