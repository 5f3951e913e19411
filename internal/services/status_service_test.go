package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safelink/internal/activity"
	"safelink/internal/models"
	"safelink/internal/presence"
)

type statusFixture struct {
	users    *fakeUserRepo
	rels     *fakeRelRepo
	registry presence.Registry
	writer   *capturingWriter
	friends  FriendService
	svc      StatusService
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	f := &statusFixture{
		users:    newFakeUserRepo(),
		rels:     newFakeRelRepo(),
		registry: presence.NewMemoryRegistry(),
		writer:   &capturingWriter{},
	}
	gateway := newTestGateway(f.registry)
	f.friends = NewFriendService(f.users, f.rels, &fakeLimiter{allow: true}, gateway, f.writer, testLimits(), 10*time.Minute)
	f.svc = NewStatusService(f.users, f.friends, gateway, f.writer)
	return f
}

func (f *statusFixture) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	rel, err := f.friends.SendRequest(context.Background(), a.ID, b.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.friends.RespondToRequest(context.Background(), b.ID, rel.ID, true))
}

func TestSafeHomeNotifiesAllFriends(t *testing.T) {
	f := newStatusFixture(t)
	alice := f.users.add(models.User{Username: "alice", IsActive: true})
	bob := f.users.add(models.User{Username: "bob", IsActive: true})
	carol := f.users.add(models.User{Username: "carol", IsActive: true})
	f.befriend(t, alice, bob)
	f.befriend(t, alice, carol)

	bobConn := &recordingConn{}
	f.registry.Register(bob.ID, bobConn)

	notified, err := f.svc.SafeHome(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, notified)
	assert.Equal(t, 1, bobConn.count())

	entries := f.writer.byType(activity.TypeSafeHome)
	require.Len(t, entries, 1)
	assert.ElementsMatch(t, []uint{bob.ID, carol.ID}, entries[0].VisibleTo)
}

func TestSafeHomeRequiresFriends(t *testing.T) {
	f := newStatusFixture(t)
	alice := f.users.add(models.User{Username: "alice", IsActive: true})

	_, err := f.svc.SafeHome(context.Background(), alice.ID)
	assert.ErrorIs(t, err, ErrNoFriendsToNotify)
}

func TestQuickMessageValidation(t *testing.T) {
	f := newStatusFixture(t)
	alice := f.users.add(models.User{Username: "alice", IsActive: true})
	bob := f.users.add(models.User{Username: "bob", IsActive: true})
	f.befriend(t, alice, bob)

	_, err := f.svc.QuickMessage(context.Background(), alice.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.svc.QuickMessage(context.Background(), alice.ID, strings.Repeat("x", 281))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	notified, err := f.svc.QuickMessage(context.Background(), alice.ID, "running late, all fine")
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	entries := f.writer.byType(activity.TypeQuickMessage)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "running late")
}
