package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"safelink/internal/activity"
	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/notify"
	"safelink/internal/presence"
	appredis "safelink/internal/redis"
	"safelink/internal/storage"
)

var (
	ErrSelfRequest            = errors.New("cannot send a friend request to yourself")
	ErrRecipientNotFound      = errors.New("recipient account does not exist")
	ErrAlreadyFriends         = errors.New("you are already friends")
	ErrRequestAlreadySent     = errors.New("you already have a pending request to this user")
	ErrRequestAlreadyReceived = errors.New("this user already sent you a pending request")
	ErrRequestBlocked         = errors.New("a friend request cannot be sent to this user")
	ErrRequestNotFound        = errors.New("friend request not found")
	ErrNotRecipientOfRequest  = errors.New("you are not the recipient of this friend request")
	ErrNotRequesterOfRequest  = errors.New("you are not the sender of this friend request")
	ErrRequestNotPending      = errors.New("this friend request is not pending")
	ErrNotFriends             = errors.New("you are not friends with this user")
	ErrTooManyRequestsSent    = errors.New("too many friend requests sent, try again later")
	ErrRecipientInboxFull     = errors.New("this user has too many pending requests")
	ErrRelationshipConflict   = errors.New("the relationship changed concurrently, try again")
	ErrSelfBlock              = errors.New("cannot block yourself")
)

const outboundRequestWindow = 24 * time.Hour

// FriendService governs the friend-relationship state machine: request,
// respond, cancel, remove, block. State mutations commit first; the
// notification and activity side effects run afterwards and are strictly
// best-effort.
type FriendService interface {
	SendRequest(ctx context.Context, requesterID, recipientID uint, message string) (*models.FriendRelationship, error)
	RespondToRequest(ctx context.Context, responderID, requestID uint, accept bool) error
	CancelRequest(ctx context.Context, requesterID, requestID uint) error
	RemoveFriend(ctx context.Context, userID, friendID uint) error
	BlockUser(ctx context.Context, userID, targetID uint) error
	UnblockUser(ctx context.Context, userID, targetID uint) error
	ListFriends(ctx context.Context, userID uint) ([]models.FriendView, error)
	ListRequests(ctx context.Context, userID uint) ([]models.RequestView, error)
	AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

type friendService struct {
	userRepo        storage.UserRepository
	relRepo         storage.RelationshipRepository
	limiter         appredis.RequestLimiter
	gateway         *notify.Gateway
	activityLog     activity.Writer
	limits          config.LimitsConfig
	onlineThreshold time.Duration
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(
	userRepo storage.UserRepository,
	relRepo storage.RelationshipRepository,
	limiter appredis.RequestLimiter,
	gateway *notify.Gateway,
	activityLog activity.Writer,
	limits config.LimitsConfig,
	onlineThreshold time.Duration,
) FriendService {
	return &friendService{
		userRepo:        userRepo,
		relRepo:         relRepo,
		limiter:         limiter,
		gateway:         gateway,
		activityLog:     activityLog,
		limits:          limits,
		onlineThreshold: onlineThreshold,
	}
}

// SendRequest creates a pending relationship, or reopens a rejected one
// with the new direction. Exactly one record ever exists per pair: every
// other existing status maps to a specific conflict error.
func (s *friendService) SendRequest(ctx context.Context, requesterID, recipientID uint, message string) (*models.FriendRelationship, error) {
	if requesterID == recipientID {
		return nil, ErrSelfRequest
	}

	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to look up recipient %d: %w", recipientID, err)
	}
	if !recipient.IsActive {
		return nil, ErrRecipientNotFound
	}

	existing, err := s.relRepo.FindBetween(ctx, requesterID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing relationship between %d and %d: %w", requesterID, recipientID, err)
	}

	if existing != nil {
		switch existing.Status {
		case models.RelationshipAccepted:
			return nil, ErrAlreadyFriends
		case models.RelationshipPending:
			if existing.RequesterID == requesterID {
				return nil, ErrRequestAlreadySent
			}
			return nil, ErrRequestAlreadyReceived
		case models.RelationshipBlocked:
			return nil, ErrRequestBlocked
		}
	}

	if err := s.applyAbuseCaps(ctx, requesterID, recipientID); err != nil {
		return nil, err
	}

	var rel *models.FriendRelationship
	if existing != nil && existing.Status == models.RelationshipRejected {
		// Reuse the rejected record, re-pointing it at the new direction.
		reopened, err := s.relRepo.Reopen(ctx, existing.ID, requesterID, recipientID, message)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen relationship %d: %w", existing.ID, err)
		}
		if !reopened {
			return nil, ErrRelationshipConflict
		}
		rel, err = s.relRepo.GetByID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload relationship %d: %w", existing.ID, err)
		}
	} else {
		rel = &models.FriendRelationship{
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      models.RelationshipPending,
			Message:     message,
		}
		if err := s.relRepo.Create(ctx, rel); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// The storage constraint caught a concurrent insert for
				// the same pair; the existence check above is the primary
				// mechanism, this is the safety net.
				return nil, ErrRelationshipConflict
			}
			return nil, fmt.Errorf("failed to create friend request %d -> %d: %w", requesterID, recipientID, err)
		}
	}

	s.notifyRequestSent(ctx, rel, recipient)
	return rel, nil
}

// applyAbuseCaps enforces the rolling outbound window and the inbound
// pending ceiling before any record is written.
func (s *friendService) applyAbuseCaps(ctx context.Context, requesterID, recipientID uint) error {
	allowed, err := s.limiter.AllowOutbound(ctx, requesterID, s.limits.OutboundRequestsPerDay, outboundRequestWindow)
	if err != nil {
		// The limiter is unreachable; approximate the window from the
		// database instead of taking friend requests down with it.
		log.Printf("friend: outbound limiter unavailable for user %d, falling back to storage: %v", requesterID, err)
		sent, cerr := s.relRepo.CountOutboundSince(ctx, requesterID, time.Now().Add(-outboundRequestWindow))
		if cerr != nil {
			return fmt.Errorf("failed to count outbound requests for user %d: %w", requesterID, cerr)
		}
		if sent >= int64(s.limits.OutboundRequestsPerDay) {
			return ErrTooManyRequestsSent
		}
	} else if !allowed {
		return ErrTooManyRequestsSent
	}

	pending, err := s.relRepo.CountPendingInbound(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to count pending requests for user %d: %w", recipientID, err)
	}
	if pending >= int64(s.limits.InboundPendingMax) {
		return ErrRecipientInboxFull
	}
	return nil
}

func (s *friendService) notifyRequestSent(ctx context.Context, rel *models.FriendRelationship, recipient *models.User) {
	requester, err := s.userRepo.GetBasicInfoByID(ctx, rel.RequesterID)
	if err != nil {
		log.Printf("friend: failed to load requester %d for notification: %v", rel.RequesterID, err)
		return
	}

	s.gateway.Deliver(ctx, notify.Event{
		Type:        notify.EventFriendRequestReceived,
		RecipientID: rel.RecipientID,
		Title:       "New friend request",
		Body:        fmt.Sprintf("%s wants to add you as a friend", displayName(requester)),
		Data: map[string]string{
			"requestId":   rel.IDString(),
			"requesterId": fmt.Sprintf("%d", rel.RequesterID),
		},
	})

	// Visible only to the requester; the recipient learns about it from
	// the notification and the pending-requests list.
	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   rel.RequesterID,
		Type:      activity.TypeFriendRequestSent,
		Message:   fmt.Sprintf("You sent a friend request to %s", recipient.Username),
		VisibleTo: []uint{rel.RequesterID},
	})
}

// RespondToRequest lets the recipient accept or reject a pending
// request. Rejections are intentionally private: the requester is
// notified but no activity entry is written.
func (s *friendService) RespondToRequest(ctx context.Context, responderID, requestID uint, accept bool) error {
	rel, err := s.relRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("failed to load friend request %d: %w", requestID, err)
	}

	if rel.RecipientID != responderID {
		return ErrNotRecipientOfRequest
	}
	if rel.Status != models.RelationshipPending {
		return ErrRequestNotPending
	}

	target := models.RelationshipRejected
	if accept {
		target = models.RelationshipAccepted
	}

	updated, err := s.relRepo.UpdateStatus(ctx, requestID, models.RelationshipPending, target)
	if err != nil {
		return fmt.Errorf("failed to update friend request %d to %s: %w", requestID, target, err)
	}
	if !updated {
		// Concurrent responder or cancellation won the race.
		return ErrRequestNotPending
	}

	if accept {
		s.notifyAccepted(ctx, rel)
	} else {
		s.gateway.Deliver(ctx, notify.Event{
			Type:        notify.EventFriendRequestRejected,
			RecipientID: rel.RequesterID,
			Title:       "Friend request declined",
			Body:        "Your friend request was declined",
			Data:        map[string]string{"requestId": rel.IDString()},
		})
	}
	return nil
}

func (s *friendService) notifyAccepted(ctx context.Context, rel *models.FriendRelationship) {
	infos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, []uint{rel.RequesterID, rel.RecipientID})
	if err != nil || len(infos) != 2 {
		log.Printf("friend: failed to load participants of request %d: %v", rel.ID, err)
		return
	}
	var requester, responder *models.UserBasicInfo
	for _, info := range infos {
		if info.ID == rel.RequesterID {
			requester = info
		} else {
			responder = info
		}
	}

	s.gateway.Deliver(ctx, notify.Event{
		Type:        notify.EventFriendRequestAccepted,
		RecipientID: rel.RequesterID,
		Title:       "Friend request accepted",
		Body:        fmt.Sprintf("%s accepted your friend request", displayName(responder)),
		Data:        map[string]string{"friendId": fmt.Sprintf("%d", rel.RecipientID)},
	})

	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   rel.RecipientID,
		Type:      activity.TypeFriendRequestAccepted,
		Message:   fmt.Sprintf("%s accepted your friend request", displayName(responder)),
		VisibleTo: []uint{rel.RequesterID},
	})
	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   rel.RecipientID,
		Type:      activity.TypeFriendAdded,
		Message:   fmt.Sprintf("You are now friends with %s", displayName(requester)),
		VisibleTo: []uint{rel.RecipientID},
	})
}

// CancelRequest deletes a still-pending request outright. Unlike a
// rejection, cancellation leaves no trace.
func (s *friendService) CancelRequest(ctx context.Context, requesterID, requestID uint) error {
	rel, err := s.relRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("failed to load friend request %d: %w", requestID, err)
	}

	if rel.RequesterID != requesterID {
		return ErrNotRequesterOfRequest
	}
	if rel.Status != models.RelationshipPending {
		return ErrRequestNotPending
	}

	if err := s.relRepo.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("failed to delete friend request %d: %w", requestID, err)
	}
	return nil
}

// RemoveFriend terminates an accepted relationship by deletion; there is
// no "unfriended" status.
func (s *friendService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	rel, err := s.relRepo.FindBetween(ctx, userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to look up relationship between %d and %d: %w", userID, friendID, err)
	}
	if rel == nil || rel.Status != models.RelationshipAccepted {
		return ErrNotFriends
	}

	if err := s.relRepo.Delete(ctx, rel.ID); err != nil {
		return fmt.Errorf("failed to delete relationship %d: %w", rel.ID, err)
	}
	return nil
}

// BlockUser overwrites whatever relationship exists with a blocked
// record owned by the blocker, suppressing any future requests from
// either side until unblocked.
func (s *friendService) BlockUser(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return ErrSelfBlock
	}

	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("failed to look up user %d: %w", targetID, err)
	}

	existing, err := s.relRepo.FindBetween(ctx, userID, targetID)
	if err != nil {
		return fmt.Errorf("failed to check existing relationship between %d and %d: %w", userID, targetID, err)
	}
	if existing != nil {
		if existing.Status == models.RelationshipBlocked {
			if existing.RequesterID == userID {
				return nil // already blocked by us
			}
			return ErrRequestBlocked
		}
		if err := s.relRepo.Delete(ctx, existing.ID); err != nil {
			return fmt.Errorf("failed to clear relationship %d before block: %w", existing.ID, err)
		}
	}

	rel := &models.FriendRelationship{
		RequesterID: userID,
		RecipientID: targetID,
		Status:      models.RelationshipBlocked,
	}
	if err := s.relRepo.Create(ctx, rel); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRelationshipConflict
		}
		return fmt.Errorf("failed to create block record %d -> %d: %w", userID, targetID, err)
	}
	return nil
}

// UnblockUser removes a block previously placed by the caller.
func (s *friendService) UnblockUser(ctx context.Context, userID, targetID uint) error {
	rel, err := s.relRepo.FindBetween(ctx, userID, targetID)
	if err != nil {
		return fmt.Errorf("failed to look up relationship between %d and %d: %w", userID, targetID, err)
	}
	if rel == nil || rel.Status != models.RelationshipBlocked {
		return ErrRequestNotFound
	}
	if rel.RequesterID != userID {
		return ErrNotRequesterOfRequest
	}

	if err := s.relRepo.Delete(ctx, rel.ID); err != nil {
		return fmt.Errorf("failed to delete block record %d: %w", rel.ID, err)
	}
	return nil
}

// ListFriends returns the accepted relationships of the user, annotated
// with the friend's public info, the derived isOnline flag, and which
// side originally asked.
func (s *friendService) ListFriends(ctx context.Context, userID uint) ([]models.FriendView, error) {
	rels, err := s.relRepo.ListAcceptedFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends for user %d: %w", userID, err)
	}

	views := make([]models.FriendView, 0, len(rels))
	if len(rels) == 0 {
		return views, nil
	}

	friendIDs := make([]uint, 0, len(rels))
	relByFriend := make(map[uint]models.FriendRelationship, len(rels))
	for _, rel := range rels {
		other := rel.OtherParty(userID)
		friendIDs = append(friendIDs, other)
		relByFriend[other] = rel
	}

	friends, err := s.userRepo.GetByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend profiles for user %d: %w", userID, err)
	}

	for _, friend := range friends {
		rel := relByFriend[friend.ID]
		views = append(views, models.FriendView{
			Friend: models.UserBasicInfo{
				ID:        friend.ID,
				Username:  friend.Username,
				Nickname:  friend.Nickname,
				AvatarURL: friend.AvatarURL,
			},
			RelationshipID: rel.ID,
			IsRequester:    rel.RequesterID == userID,
			IsOnline:       presence.IsOnline(friend.LastSeenAt, s.onlineThreshold),
		})
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Friend.Username < views[j].Friend.Username })
	return views, nil
}

// ListRequests returns the user's pending requests, sent and received,
// annotated with the counterpart's public info.
func (s *friendService) ListRequests(ctx context.Context, userID uint) ([]models.RequestView, error) {
	rels, err := s.relRepo.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests for user %d: %w", userID, err)
	}

	views := make([]models.RequestView, 0, len(rels))
	for _, rel := range rels {
		counterpart, err := s.userRepo.GetBasicInfoByID(ctx, rel.OtherParty(userID))
		if err != nil {
			log.Printf("friend: failed to load counterpart of request %d: %v", rel.ID, err)
			continue
		}
		views = append(views, models.RequestView{
			RequestID:   rel.ID,
			Counterpart: *counterpart,
			Message:     rel.Message,
			SentByMe:    rel.RequesterID == userID,
		})
	}
	return views, nil
}

// AcceptedFriendIDs returns the IDs of all accepted friends; the SOS and
// status engines use it to compute recipient sets.
func (s *friendService) AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	rels, err := s.relRepo.ListAcceptedFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends for user %d: %w", userID, err)
	}
	ids := make([]uint, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.OtherParty(userID))
	}
	return ids, nil
}

func displayName(info *models.UserBasicInfo) string {
	if info.Nickname != "" {
		return info.Nickname
	}
	return info.Username
}
