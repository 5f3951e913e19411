package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"safelink/internal/auth"
	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/storage"
)

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("this account has been disabled")
)

// AuthService handles registration, login and logout.
type AuthService interface {
	Register(ctx context.Context, username, password, email, nickname string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	Logout(ctx context.Context, tokenString string) error
}

type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, authCfg config.AuthConfig) AuthService {
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		authCfg:   authCfg,
	}
}

// Register creates a new account with a bcrypt password hash.
func (s *authService) Register(ctx context.Context, username, password, email, nickname string) (*models.User, error) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username %q: %w", username, err)
	}

	if email != "" {
		if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Nickname:     nickname,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent registration beat us to the unique index.
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}

	log.Printf("auth: registered user %q (id=%d)", username, user.ID)
	return user, nil
}

// Login verifies the credentials and issues a JWT.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrAccountDisabled
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.authCfg)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token for user %d: %w", user.ID, err)
	}

	if err := s.userRepo.TouchLastSeen(ctx, user.ID, time.Now()); err != nil {
		log.Printf("auth: failed to update last_seen for user %d: %v", user.ID, err)
	}
	return token, user, nil
}

// Logout revokes the presented token by blacklisting its JTI until the
// token would have expired anyway.
func (s *authService) Logout(ctx context.Context, tokenString string) error {
	claims, err := auth.ValidateToken(ctx, tokenString, s.authCfg.JWTSecretKey, nil)
	if err != nil {
		// An already-expired token needs no revocation.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("failed to validate token for logout: %w", err)
	}

	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
