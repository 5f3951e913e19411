package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"safelink/internal/activity"
	"safelink/internal/models"
	"safelink/internal/notify"
	"safelink/internal/presence"
	"safelink/internal/storage"
)

// In-memory fakes for the storage and infrastructure interfaces, shared
// by the service tests in this package.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User), nextID: 1}
}

func (r *fakeUserRepo) add(user models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	} else if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	u := user
	r.users[u.ID] = &u
	return &u
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.nextID
	r.nextID++
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && email != "" {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) UpdateLocation(_ context.Context, id uint, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Latitude = &lat
	u.Longitude = &lng
	return nil
}

func (r *fakeUserRepo) TouchLastSeen(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastSeenAt = &at
	}
	return nil
}

func (r *fakeUserRepo) SearchUsers(_ context.Context, query string, currentUserID uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	q := strings.ToLower(query)
	for _, u := range r.users {
		if u.ID == currentUserID || !u.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Nickname), q) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetBasicInfoByID(_ context.Context, id uint) (*models.UserBasicInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.UserBasicInfo{ID: u.ID, Username: u.Username, Nickname: u.Nickname, AvatarURL: u.AvatarURL}, nil
}

func (r *fakeUserRepo) GetMultipleBasicInfoByIDs(_ context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UserBasicInfo
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			out = append(out, &models.UserBasicInfo{ID: u.ID, Username: u.Username, Nickname: u.Nickname, AvatarURL: u.AvatarURL})
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FindNearbySharers(_ context.Context, lat, lng, latDelta, lngDelta float64, excludeID uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.ID == excludeID || !u.ShareWithEveryone || !u.IsActive {
			continue
		}
		if u.Latitude == nil || u.Longitude == nil {
			continue
		}
		if *u.Latitude < lat-latDelta || *u.Latitude > lat+latDelta {
			continue
		}
		if *u.Longitude < lng-lngDelta || *u.Longitude > lng+lngDelta {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

var _ storage.UserRepository = (*fakeUserRepo)(nil)

type fakeRelRepo struct {
	mu     sync.Mutex
	rels   map[uint]*models.FriendRelationship
	nextID uint
}

func newFakeRelRepo() *fakeRelRepo {
	return &fakeRelRepo{rels: make(map[uint]*models.FriendRelationship), nextID: 1}
}

func (r *fakeRelRepo) Create(_ context.Context, rel *models.FriendRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rels {
		if existing.Involves(rel.RequesterID) && existing.Involves(rel.RecipientID) {
			return gorm.ErrDuplicatedKey
		}
	}
	rel.ID = r.nextID
	r.nextID++
	rel.CreatedAt = time.Now()
	stored := *rel
	r.rels[rel.ID] = &stored
	return nil
}

func (r *fakeRelRepo) GetByID(_ context.Context, id uint) (*models.FriendRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.rels[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *rel
	return &copied, nil
}

func (r *fakeRelRepo) FindBetween(_ context.Context, userA, userB uint) (*models.FriendRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rel := range r.rels {
		if rel.Involves(userA) && rel.Involves(userB) {
			copied := *rel
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRelRepo) UpdateStatus(_ context.Context, id uint, from, to models.RelationshipStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.rels[id]
	if !ok || rel.Status != from {
		return false, nil
	}
	rel.Status = to
	return true, nil
}

func (r *fakeRelRepo) Reopen(_ context.Context, id uint, requesterID, recipientID uint, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.rels[id]
	if !ok || rel.Status != models.RelationshipRejected {
		return false, nil
	}
	rel.RequesterID = requesterID
	rel.RecipientID = recipientID
	rel.Status = models.RelationshipPending
	rel.Message = message
	return true, nil
}

func (r *fakeRelRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rels, id)
	return nil
}

func (r *fakeRelRepo) ListAcceptedFor(_ context.Context, userID uint) ([]models.FriendRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FriendRelationship
	for _, rel := range r.rels {
		if rel.Involves(userID) && rel.Status == models.RelationshipAccepted {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (r *fakeRelRepo) ListPendingFor(_ context.Context, userID uint) ([]models.FriendRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FriendRelationship
	for _, rel := range r.rels {
		if rel.Involves(userID) && rel.Status == models.RelationshipPending {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (r *fakeRelRepo) CountPendingInbound(_ context.Context, recipientID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rel := range r.rels {
		if rel.RecipientID == recipientID && rel.Status == models.RelationshipPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeRelRepo) CountOutboundSince(_ context.Context, requesterID uint, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, rel := range r.rels {
		if rel.RequesterID == requesterID && !rel.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

var _ storage.RelationshipRepository = (*fakeRelRepo)(nil)

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[uint]*models.SOSAlert
	nextID uint
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[uint]*models.SOSAlert), nextID: 1}
}

func (r *fakeAlertRepo) CreateWithRecipients(_ context.Context, alert *models.SOSAlert, recipientIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert.ID = r.nextID
	r.nextID++
	alert.CreatedAt = time.Now()
	alert.Recipients = make([]models.SOSRecipient, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		alert.Recipients = append(alert.Recipients, models.SOSRecipient{AlertID: alert.ID, UserID: id})
	}
	stored := *alert
	r.alerts[alert.ID] = &stored
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id uint) (*models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *fakeAlertRepo) MarkResolved(_ context.Context, id, userID uint, at time.Time) (bool, error) {
	return r.mark(id, userID, models.SOSResolved, at)
}

func (r *fakeAlertRepo) MarkCancelled(_ context.Context, id, userID uint, at time.Time) (bool, error) {
	return r.mark(id, userID, models.SOSCancelled, at)
}

func (r *fakeAlertRepo) mark(id, userID uint, to models.SOSStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.UserID != userID || alert.Status != models.SOSActive {
		return false, nil
	}
	alert.Status = to
	if to == models.SOSResolved {
		alert.ResolvedAt = &at
	} else {
		alert.CancelledAt = &at
	}
	return true, nil
}

func (r *fakeAlertRepo) ListActiveByCreator(_ context.Context, userID uint, limit int) ([]models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SOSAlert
	for _, alert := range r.alerts {
		if alert.UserID == userID && alert.Status == models.SOSActive && len(out) < limit {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ListActiveForRecipient(_ context.Context, userID uint, limit int) ([]models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SOSAlert
	for _, alert := range r.alerts {
		if alert.Status != models.SOSActive || len(out) >= limit {
			continue
		}
		for _, rec := range alert.Recipients {
			if rec.UserID == userID {
				out = append(out, *alert)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ExpireActiveOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var n int64
	for _, alert := range r.alerts {
		if alert.Status == models.SOSActive && alert.CreatedAt.Before(cutoff) {
			alert.Status = models.SOSResolved
			alert.ResolvedAt = &now
			n++
		}
	}
	return n, nil
}

var _ storage.AlertRepository = (*fakeAlertRepo)(nil)

type fakeSubRepo struct {
	mu   sync.Mutex
	subs []models.PushSubscription
}

func (r *fakeSubRepo) Upsert(_ context.Context, sub *models.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *fakeSubRepo) FindActiveByUserID(_ context.Context, userID uint) ([]models.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.IsActive {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *fakeSubRepo) Deactivate(_ context.Context, userID uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.subs {
		if r.subs[i].UserID == userID && r.subs[i].Token == token {
			r.subs[i].IsActive = false
		}
	}
	return nil
}

var _ storage.SubscriptionRepository = (*fakeSubRepo)(nil)

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) AllowOutbound(_ context.Context, _ uint, _ int, _ time.Duration) (bool, error) {
	l.calls++
	return l.allow, l.err
}

type capturingWriter struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (w *capturingWriter) Append(_ context.Context, entry activity.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
}

func (w *capturingWriter) byType(entryType string) []activity.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []activity.Entry
	for _, e := range w.entries {
		if e.Type == entryType {
			out = append(out, e)
		}
	}
	return out
}

// recordingConn is a presence.Conn that collects delivered payloads.
type recordingConn struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func (c *recordingConn) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.payloads = append(c.payloads, payload)
	return true
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

type fixedGeocoder struct {
	place string
	err   error
}

func (g *fixedGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return g.place, g.err
}

// newTestGateway builds a real gateway over the given presence registry
// and an empty subscription store, so deliveries are silent no-ops
// unless a test registers a connection.
func newTestGateway(registry presence.Registry) *notify.Gateway {
	return notify.NewGateway(registry, &fakeSubRepo{}, nil, time.Second)
}
