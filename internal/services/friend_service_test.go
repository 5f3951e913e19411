package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safelink/internal/activity"
	"safelink/internal/config"
	"safelink/internal/models"
	"safelink/internal/presence"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{OutboundRequestsPerDay: 20, InboundPendingMax: 50}
}

type friendFixture struct {
	users    *fakeUserRepo
	rels     *fakeRelRepo
	limiter  *fakeLimiter
	registry presence.Registry
	writer   *capturingWriter
	svc      FriendService
}

func newFriendFixture(t *testing.T) *friendFixture {
	t.Helper()
	f := &friendFixture{
		users:    newFakeUserRepo(),
		rels:     newFakeRelRepo(),
		limiter:  &fakeLimiter{allow: true},
		registry: presence.NewMemoryRegistry(),
		writer:   &capturingWriter{},
	}
	f.svc = NewFriendService(f.users, f.rels, f.limiter, newTestGateway(f.registry), f.writer, testLimits(), 10*time.Minute)
	return f
}

func (f *friendFixture) addUser(username string) *models.User {
	return f.users.add(models.User{Username: username, IsActive: true})
}

func TestSendRequestCreatesPending(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	conn := &recordingConn{}
	f.registry.Register(bob.ID, conn)

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "hi bob")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, models.RelationshipPending, rel.Status)
	assert.Equal(t, alice.ID, rel.RequesterID)
	assert.Equal(t, bob.ID, rel.RecipientID)
	assert.Equal(t, "hi bob", rel.Message)

	// Live event went to the recipient's open connection.
	assert.Equal(t, 1, conn.count())

	// Activity entry is visible to the requester only.
	entries := f.writer.byType(activity.TypeFriendRequestSent)
	require.Len(t, entries, 1)
	assert.Equal(t, []uint{alice.ID}, entries[0].VisibleTo)
}

func TestSendRequestToSelf(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendRequestRecipientMissingOrInactive(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, 999, "")
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	ghost := f.users.add(models.User{Username: "ghost", IsActive: false})
	_, err = f.svc.SendRequest(context.Background(), alice.ID, ghost.ID, "")
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestSendRequestDuplicateDirections(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	// Same direction again.
	_, err = f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrRequestAlreadySent)

	// Opposite direction while still pending.
	_, err = f.svc.SendRequest(context.Background(), bob.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrRequestAlreadyReceived)
}

func TestSendRequestWhenAlreadyFriends(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true))

	_, err = f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
	_, err = f.svc.SendRequest(context.Background(), bob.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestSendRequestOutboundCap(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	f.limiter.allow = false
	_, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrTooManyRequestsSent)

	// Nothing was written.
	rel, ferr := f.rels.FindBetween(context.Background(), alice.ID, bob.ID)
	require.NoError(t, ferr)
	assert.Nil(t, rel)
}

func TestSendRequestLimiterOutageFallsBackToStorage(t *testing.T) {
	f := newFriendFixture(t)
	f.svc = NewFriendService(f.users, f.rels, f.limiter, newTestGateway(f.registry), f.writer,
		config.LimitsConfig{OutboundRequestsPerDay: 1, InboundPendingMax: 50}, 10*time.Minute)

	alice := f.addUser("alice")
	bob := f.addUser("bob")
	carol := f.addUser("carol")

	f.limiter.allow = false
	f.limiter.err = context.DeadlineExceeded

	// The storage-derived window still has room, so the request goes out.
	_, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	// The next one exceeds the storage-derived window.
	_, err = f.svc.SendRequest(context.Background(), alice.ID, carol.ID, "")
	assert.ErrorIs(t, err, ErrTooManyRequestsSent)
}

func TestSendRequestInboundCap(t *testing.T) {
	f := newFriendFixture(t)
	f.svc = NewFriendService(f.users, f.rels, f.limiter, newTestGateway(f.registry), f.writer,
		config.LimitsConfig{OutboundRequestsPerDay: 20, InboundPendingMax: 1}, 10*time.Minute)

	alice := f.addUser("alice")
	bob := f.addUser("bob")
	carol := f.addUser("carol")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, carol.ID, "")
	require.NoError(t, err)

	_, err = f.svc.SendRequest(context.Background(), bob.ID, carol.ID, "")
	assert.ErrorIs(t, err, ErrRecipientInboxFull)
}

func TestRejectedRequestReopensWithNewDirection(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "first try")
	require.NoError(t, err)
	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, false))

	// Bob now asks Alice: same record, flipped direction, pending again.
	reopened, err := f.svc.SendRequest(context.Background(), bob.ID, alice.ID, "my turn")
	require.NoError(t, err)
	assert.Equal(t, rel.ID, reopened.ID)
	assert.Equal(t, models.RelationshipPending, reopened.Status)
	assert.Equal(t, bob.ID, reopened.RequesterID)
	assert.Equal(t, alice.ID, reopened.RecipientID)
	assert.Equal(t, "my turn", reopened.Message)
}

func TestRespondAccept(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	aliceConn := &recordingConn{}
	f.registry.Register(alice.ID, aliceConn)

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true))

	stored, err := f.rels.GetByID(context.Background(), rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipAccepted, stored.Status)

	// Requester got the acceptance event on their live connection.
	assert.Equal(t, 1, aliceConn.count())

	// Both participants got an activity entry, each seeing their own.
	assert.Len(t, f.writer.byType(activity.TypeFriendRequestAccepted), 1)
	assert.Len(t, f.writer.byType(activity.TypeFriendAdded), 1)
}

func TestRespondRejectLeavesNoActivity(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	before := len(f.writer.entries)
	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, false))

	stored, err := f.rels.GetByID(context.Background(), rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipRejected, stored.Status)
	assert.Len(t, f.writer.entries, before, "rejection must not produce activity entries")
}

func TestRespondAuthorization(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")
	carol := f.addUser("carol")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	// Only the recipient may answer; the requester cannot accept their own.
	assert.ErrorIs(t, f.svc.RespondToRequest(context.Background(), alice.ID, rel.ID, true), ErrNotRecipientOfRequest)
	assert.ErrorIs(t, f.svc.RespondToRequest(context.Background(), carol.ID, rel.ID, true), ErrNotRecipientOfRequest)

	assert.ErrorIs(t, f.svc.RespondToRequest(context.Background(), bob.ID, 999, true), ErrRequestNotFound)

	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true))
	assert.ErrorIs(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true), ErrRequestNotPending)
}

func TestCancelRequest(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.CancelRequest(context.Background(), bob.ID, rel.ID), ErrNotRequesterOfRequest)

	require.NoError(t, f.svc.CancelRequest(context.Background(), alice.ID, rel.ID))

	// Cancellation deletes outright; the pair can start fresh.
	found, err := f.rels.FindBetween(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRemoveFriend(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	assert.ErrorIs(t, f.svc.RemoveFriend(context.Background(), alice.ID, bob.ID), ErrNotFriends)

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)

	// Pending is not friendship.
	assert.ErrorIs(t, f.svc.RemoveFriend(context.Background(), alice.ID, bob.ID), ErrNotFriends)

	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true))
	require.NoError(t, f.svc.RemoveFriend(context.Background(), bob.ID, alice.ID))

	found, err := f.rels.FindBetween(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestBlockAndUnblock(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")

	rel, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.RespondToRequest(context.Background(), bob.ID, rel.ID, true))

	// Blocking replaces the friendship.
	require.NoError(t, f.svc.BlockUser(context.Background(), alice.ID, bob.ID))

	blocked, err := f.rels.FindBetween(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, blocked)
	assert.Equal(t, models.RelationshipBlocked, blocked.Status)
	assert.Equal(t, alice.ID, blocked.RequesterID)

	// Neither side can send requests while blocked.
	_, err = f.svc.SendRequest(context.Background(), bob.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrRequestBlocked)
	_, err = f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrRequestBlocked)

	// Only the blocker can lift the block.
	assert.ErrorIs(t, f.svc.UnblockUser(context.Background(), bob.ID, alice.ID), ErrNotRequesterOfRequest)
	require.NoError(t, f.svc.UnblockUser(context.Background(), alice.ID, bob.ID))

	_, err = f.svc.SendRequest(context.Background(), bob.ID, alice.ID, "fresh start")
	assert.NoError(t, err)
}

func TestListFriendsDerivesOnlineFlag(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")

	recent := time.Now().Add(-time.Minute)
	stale := time.Now().Add(-time.Hour)
	bob := f.users.add(models.User{Username: "bob", IsActive: true, LastSeenAt: &recent})
	carol := f.users.add(models.User{Username: "carol", IsActive: true, LastSeenAt: &stale})

	for _, friend := range []*models.User{bob, carol} {
		rel, err := f.svc.SendRequest(context.Background(), alice.ID, friend.ID, "")
		require.NoError(t, err)
		require.NoError(t, f.svc.RespondToRequest(context.Background(), friend.ID, rel.ID, true))
	}

	views, err := f.svc.ListFriends(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byName := map[string]models.FriendView{}
	for _, v := range views {
		byName[v.Friend.Username] = v
	}
	assert.True(t, byName["bob"].IsOnline)
	assert.False(t, byName["carol"].IsOnline)
	assert.True(t, byName["bob"].IsRequester)
}

func TestListRequestsShowsBothDirections(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser("alice")
	bob := f.addUser("bob")
	carol := f.addUser("carol")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, "to bob")
	require.NoError(t, err)
	_, err = f.svc.SendRequest(context.Background(), carol.ID, alice.ID, "from carol")
	require.NoError(t, err)

	views, err := f.svc.ListRequests(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	var sent, received int
	for _, v := range views {
		if v.SentByMe {
			sent++
			assert.Equal(t, "bob", v.Counterpart.Username)
		} else {
			received++
			assert.Equal(t, "carol", v.Counterpart.Username)
		}
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, received)
}
