package activity

import (
	"context"
	"time"
)

// Entry is one socially-visible event, fanned out to every user in
// VisibleTo when it lands in the feed store.
type Entry struct {
	ActorID   uint      `json:"actorId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	VisibleTo []uint    `json:"visibleTo"`
	At        time.Time `json:"at"`
}

// Entry types written by the friend and SOS engines.
const (
	TypeFriendRequestSent     = "friend_request_sent"
	TypeFriendRequestAccepted = "friend_request_accepted"
	TypeFriendAdded           = "friend_added"
	TypeSOSRaised             = "sos_raised"
	TypeSafeHome              = "safe_home"
	TypeQuickMessage          = "quick_message"
)

// Writer appends entries to the activity log. Append is fire-and-forget
// from the caller's perspective: implementations log their own failures
// and never surface them.
type Writer interface {
	Append(ctx context.Context, entry Entry)
}
