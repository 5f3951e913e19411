package notify

// Event types carried on the live channel and mirrored into the data
// field of push messages, so clients can correlate and deduplicate the
// two deliveries of the same logical event.
const (
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
	EventSOSAlert              = "sos_alert"
	EventFriendSafeHome        = "friend_safe_home"
	EventFriendQuickMessage    = "friend_quick_action_message"
)

// Event is an in-flight notification. It is constructed by the services
// after their state mutation has committed, consumed by the Gateway, and
// never persisted directly.
type Event struct {
	Type        string            `json:"eventType"`
	RecipientID uint              `json:"-"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// For returns a copy of the event addressed to a single recipient,
// used when fanning one template out to a recipient list.
func (e Event) For(recipientID uint) Event {
	e.RecipientID = recipientID
	return e
}
