package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"safelink/internal/activity"
	"safelink/internal/models"
	"safelink/internal/notify"
	"safelink/internal/storage"
)

var (
	ErrNoFriendsToNotify = errors.New("you have no friends to notify yet")
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrMessageTooLong    = errors.New("message is too long")
)

const quickMessageMaxLen = 280

// StatusService broadcasts lightweight "I'm fine" style signals to the
// user's accepted friends: the one-tap safe-home check-in and short
// free-form quick messages.
type StatusService interface {
	SafeHome(ctx context.Context, userID uint) (int, error)
	QuickMessage(ctx context.Context, userID uint, text string) (int, error)
}

type statusService struct {
	userRepo    storage.UserRepository
	friends     FriendService
	gateway     *notify.Gateway
	activityLog activity.Writer
}

// NewStatusService creates a new StatusService instance.
func NewStatusService(userRepo storage.UserRepository, friends FriendService, gateway *notify.Gateway, activityLog activity.Writer) StatusService {
	return &statusService{
		userRepo:    userRepo,
		friends:     friends,
		gateway:     gateway,
		activityLog: activityLog,
	}
}

// SafeHome tells all friends the user arrived home safely. Returns the
// number of friends notified.
func (s *statusService) SafeHome(ctx context.Context, userID uint) (int, error) {
	sender, friendIDs, err := s.senderAndFriends(ctx, userID)
	if err != nil {
		return 0, err
	}

	name := displayName(sender)
	liveSent, pushSent := s.gateway.Broadcast(ctx, notify.Event{
		Type:  notify.EventFriendSafeHome,
		Title: fmt.Sprintf("%s is home safe", name),
		Body:  fmt.Sprintf("%s checked in as safely home", name),
		Data:  map[string]string{"senderId": fmt.Sprintf("%d", userID)},
	}, friendIDs)
	log.Printf("status: safe-home from user %d reached %d friends (live=%d push=%d)",
		userID, len(friendIDs), liveSent, pushSent)

	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   userID,
		Type:      activity.TypeSafeHome,
		Message:   fmt.Sprintf("%s arrived home safely", name),
		VisibleTo: friendIDs,
	})
	return len(friendIDs), nil
}

// QuickMessage broadcasts a short free-form status line to all friends.
func (s *statusService) QuickMessage(ctx context.Context, userID uint, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyMessage
	}
	if len(text) > quickMessageMaxLen {
		return 0, ErrMessageTooLong
	}

	sender, friendIDs, err := s.senderAndFriends(ctx, userID)
	if err != nil {
		return 0, err
	}

	name := displayName(sender)
	liveSent, pushSent := s.gateway.Broadcast(ctx, notify.Event{
		Type:  notify.EventFriendQuickMessage,
		Title: fmt.Sprintf("Message from %s", name),
		Body:  text,
		Data:  map[string]string{"senderId": fmt.Sprintf("%d", userID)},
	}, friendIDs)
	log.Printf("status: quick message from user %d reached %d friends (live=%d push=%d)",
		userID, len(friendIDs), liveSent, pushSent)

	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   userID,
		Type:      activity.TypeQuickMessage,
		Message:   fmt.Sprintf("%s: %s", name, text),
		VisibleTo: friendIDs,
	})
	return len(friendIDs), nil
}

func (s *statusService) senderAndFriends(ctx context.Context, userID uint) (*models.UserBasicInfo, []uint, error) {
	friendIDs, err := s.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list friends of user %d: %w", userID, err)
	}
	if len(friendIDs) == 0 {
		return nil, nil, ErrNoFriendsToNotify
	}

	sender, err := s.userRepo.GetBasicInfoByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return sender, friendIDs, nil
}
