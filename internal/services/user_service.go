package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"safelink/internal/geo"
	"safelink/internal/models"
	"safelink/internal/storage"
)

var ErrUserNotFound = errors.New("user not found")

// ProfileUpdate carries the mutable profile fields. Nil pointers mean
// "leave unchanged".
type ProfileUpdate struct {
	Nickname          *string
	AvatarURL         *string
	ShareWithEveryone *bool
}

// UserService handles profile reads and updates.
type UserService interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error)
	UpdateLocation(ctx context.Context, userID uint, lat, lng float64) error
	Search(ctx context.Context, query string, currentUserID uint) ([]models.User, error)
}

type userService struct {
	userRepo storage.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo storage.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of the update and returns the
// refreshed profile.
func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Nickname != nil {
		user.Nickname = *update.Nickname
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.ShareWithEveryone != nil {
		user.ShareWithEveryone = *update.ShareWithEveryone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return user, nil
}

// UpdateLocation stores the client's current coordinates after
// validation. The location only feeds the nearby-recipient computation
// of SOS alerts.
func (s *userService) UpdateLocation(ctx context.Context, userID uint, lat, lng float64) error {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	if err := s.userRepo.UpdateLocation(ctx, userID, lat, lng); err != nil {
		return fmt.Errorf("failed to update location of user %d: %w", userID, err)
	}
	return nil
}

// Search finds other users by username or nickname.
func (s *userService) Search(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	if query == "" {
		return []models.User{}, nil
	}
	users, err := s.userRepo.SearchUsers(ctx, query, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}
