package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"safelink/internal/activity"
	"safelink/internal/config"
	"safelink/internal/geo"
	"safelink/internal/models"
	"safelink/internal/notify"
	"safelink/internal/storage"
)

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNoRecipients       = errors.New("no one is available to receive this alert")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrAlertNotActive     = errors.New("alert is no longer active")
	ErrNotAlertOwner      = errors.New("only the alert creator can do this")
)

// SOSService raises and settles emergency alerts. An alert commits
// together with its recipient snapshot; notification fan-out happens
// after the commit and never affects the outcome.
type SOSService interface {
	CreateAlert(ctx context.Context, userID uint, lat, lng float64, message string) (*models.SOSAlert, error)
	CancelAlert(ctx context.Context, userID, alertID uint) error
	ResolveAlert(ctx context.Context, userID, alertID uint) error
	ListMine(ctx context.Context, userID uint) ([]models.SOSAlert, error)
	ListReceived(ctx context.Context, userID uint) ([]models.SOSAlert, error)
	ExpireStale(ctx context.Context) (int64, error)
}

type sosService struct {
	userRepo    storage.UserRepository
	alertRepo   storage.AlertRepository
	friends     FriendService
	geocoder    geo.Geocoder
	gateway     *notify.Gateway
	activityLog activity.Writer
	cfg         config.SOSConfig
}

// NewSOSService creates a new SOSService instance.
func NewSOSService(
	userRepo storage.UserRepository,
	alertRepo storage.AlertRepository,
	friends FriendService,
	geocoder geo.Geocoder,
	gateway *notify.Gateway,
	activityLog activity.Writer,
	cfg config.SOSConfig,
) SOSService {
	return &sosService{
		userRepo:    userRepo,
		alertRepo:   alertRepo,
		friends:     friends,
		geocoder:    geocoder,
		gateway:     gateway,
		activityLog: activityLog,
		cfg:         cfg,
	}
}

// CreateAlert validates the location, computes the recipient snapshot
// (accepted friends plus nearby opted-in users), and persists the alert.
// An empty snapshot aborts the whole operation: an SOS nobody will see
// must fail loudly rather than succeed silently.
func (s *sosService) CreateAlert(ctx context.Context, userID uint, lat, lng float64, message string) (*models.SOSAlert, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}

	sender, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	recipientIDs, err := s.computeRecipients(ctx, sender, lat, lng)
	if err != nil {
		return nil, err
	}
	if len(recipientIDs) == 0 {
		return nil, ErrNoRecipients
	}

	alert := &models.SOSAlert{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Message:   message,
		PlaceName: s.resolvePlaceName(ctx, lat, lng),
		Status:    models.SOSActive,
	}
	if err := s.alertRepo.CreateWithRecipients(ctx, alert, recipientIDs); err != nil {
		return nil, fmt.Errorf("failed to persist alert for user %d: %w", userID, err)
	}

	s.fanOut(ctx, sender, alert, recipientIDs)
	return alert, nil
}

// computeRecipients returns the union of the sender's accepted friends
// and, when the sender opted into sharing with everyone, nearby users
// who made the same choice. Deduplicated, never including the sender.
func (s *sosService) computeRecipients(ctx context.Context, sender *models.User, lat, lng float64) ([]uint, error) {
	friendIDs, err := s.friends.AcceptedFriendIDs(ctx, sender.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends of user %d: %w", sender.ID, err)
	}

	seen := make(map[uint]struct{}, len(friendIDs))
	ids := make([]uint, 0, len(friendIDs))
	for _, id := range friendIDs {
		if _, dup := seen[id]; dup || id == sender.ID {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if !sender.ShareWithEveryone {
		return ids, nil
	}

	latDelta, lngDelta := geo.BoundingDeltas(lat, s.cfg.NearbyRadiusMeters)
	nearby, err := s.userRepo.FindNearbySharers(ctx, lat, lng, latDelta, lngDelta, sender.ID)
	if err != nil {
		// Friends alone still make a valid audience; log and carry on.
		log.Printf("sos: nearby lookup failed for user %d: %v", sender.ID, err)
		return ids, nil
	}
	for _, u := range nearby {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		if u.Latitude == nil || u.Longitude == nil {
			continue
		}
		if geo.DistanceMeters(lat, lng, *u.Latitude, *u.Longitude) > s.cfg.NearbyRadiusMeters {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// resolvePlaceName best-effort reverse-geocodes the location, falling
// back to raw coordinates.
func (s *sosService) resolvePlaceName(ctx context.Context, lat, lng float64) string {
	if s.geocoder == nil {
		return fmt.Sprintf("%.5f, %.5f", lat, lng)
	}
	place, err := s.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		log.Printf("sos: reverse geocode failed for (%f, %f): %v", lat, lng, err)
		return fmt.Sprintf("%.5f, %.5f", lat, lng)
	}
	return place
}

func (s *sosService) fanOut(ctx context.Context, sender *models.User, alert *models.SOSAlert, recipientIDs []uint) {
	name := sender.Nickname
	if name == "" {
		name = sender.Username
	}

	template := notify.Event{
		Type:  notify.EventSOSAlert,
		Title: fmt.Sprintf("SOS from %s", name),
		Body:  fmt.Sprintf("%s needs help near %s", name, alert.PlaceName),
		Data: map[string]string{
			"alertId":   alert.IDString(),
			"senderId":  fmt.Sprintf("%d", sender.ID),
			"latitude":  fmt.Sprintf("%f", alert.Latitude),
			"longitude": fmt.Sprintf("%f", alert.Longitude),
		},
	}
	liveSent, pushSent := s.gateway.Broadcast(ctx, template, recipientIDs)
	log.Printf("sos: alert %d fanned out to %d recipients (live=%d push=%d)",
		alert.ID, len(recipientIDs), liveSent, pushSent)

	s.activityLog.Append(ctx, activity.Entry{
		ActorID:   sender.ID,
		Type:      activity.TypeSOSRaised,
		Message:   fmt.Sprintf("%s raised an SOS alert", name),
		VisibleTo: recipientIDs,
	})
}

// CancelAlert marks an active alert cancelled. Only the creator may do
// this, and only while the alert is still active.
func (s *sosService) CancelAlert(ctx context.Context, userID, alertID uint) error {
	done, err := s.alertRepo.MarkCancelled(ctx, alertID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cancel alert %d: %w", alertID, err)
	}
	if !done {
		return s.settleFailure(ctx, userID, alertID)
	}
	return nil
}

// ResolveAlert marks an active alert resolved, creator-only.
func (s *sosService) ResolveAlert(ctx context.Context, userID, alertID uint) error {
	done, err := s.alertRepo.MarkResolved(ctx, alertID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to resolve alert %d: %w", alertID, err)
	}
	if !done {
		return s.settleFailure(ctx, userID, alertID)
	}
	return nil
}

// settleFailure disambiguates a failed guarded update. Non-owners get
// ErrNotAlertOwner regardless of the alert's status, so the API leaks
// nothing about other people's alerts.
func (s *sosService) settleFailure(ctx context.Context, userID, alertID uint) error {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlertNotFound
		}
		return fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	if alert.UserID != userID {
		return ErrNotAlertOwner
	}
	return ErrAlertNotActive
}

func (s *sosService) ListMine(ctx context.Context, userID uint) ([]models.SOSAlert, error) {
	alerts, err := s.alertRepo.ListActiveByCreator(ctx, userID, s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts of user %d: %w", userID, err)
	}
	return alerts, nil
}

func (s *sosService) ListReceived(ctx context.Context, userID uint) ([]models.SOSAlert, error) {
	alerts, err := s.alertRepo.ListActiveForRecipient(ctx, userID, s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list received alerts of user %d: %w", userID, err)
	}
	return alerts, nil
}

// ExpireStale resolves alerts that have been active longer than the TTL.
// Called from the background sweep loop.
func (s *sosService) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.AlertTTL)
	n, err := s.alertRepo.ExpireActiveOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale alerts: %w", err)
	}
	if n > 0 {
		log.Printf("sos: expired %d stale alerts", n)
	}
	return n, nil
}
