package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"safelink/internal/presence"
	"safelink/internal/push"
	"safelink/internal/storage"
)

// Outcome reports what happened on each delivery channel. It is
// informational: callers never fail their own operation based on it.
type Outcome struct {
	LiveSent bool
	PushSent bool
	PushErr  error
}

// Gateway delivers notification events over the two redundant channels:
// a live websocket push when the recipient holds an open connection, and
// a durable mobile push regardless. The channels deliberately overlap;
// clients deduplicate by event type and payload. Failures on either
// channel are logged and reported in the Outcome, never raised — a push
// outage must not fail the friend-accept or SOS-send that triggered it.
type Gateway struct {
	registry    presence.Registry
	subs        storage.SubscriptionRepository
	sender      push.Sender
	sendTimeout time.Duration
}

// NewGateway creates a delivery gateway. sender may be nil when push is
// disabled, in which case only live delivery is attempted.
func NewGateway(registry presence.Registry, subs storage.SubscriptionRepository, sender push.Sender, sendTimeout time.Duration) *Gateway {
	return &Gateway{
		registry:    registry,
		subs:        subs,
		sender:      sender,
		sendTimeout: sendTimeout,
	}
}

// Deliver attempts both channels for a single recipient. It never
// returns an error.
func (g *Gateway) Deliver(ctx context.Context, event Event) Outcome {
	var out Outcome

	out.LiveSent = g.deliverLive(event)
	out.PushSent, out.PushErr = g.deliverPush(ctx, event)

	if out.PushErr != nil {
		log.Printf("notify: push delivery failed for user %d, event %s: %v",
			event.RecipientID, event.Type, out.PushErr)
	}
	return out
}

// Broadcast fans an event template out to a list of recipients and
// returns how many live and push deliveries went through.
func (g *Gateway) Broadcast(ctx context.Context, template Event, recipientIDs []uint) (liveSent, pushSent int) {
	for _, id := range recipientIDs {
		out := g.Deliver(ctx, template.For(id))
		if out.LiveSent {
			liveSent++
		}
		if out.PushSent {
			pushSent++
		}
	}
	return liveSent, pushSent
}

// deliverLive pushes the JSON-encoded event over the recipient's open
// connection, if one exists. Fire-and-forget: no acknowledgement, and a
// full send buffer just drops the event (durable push still covers it).
func (g *Gateway) deliverLive(event Event) bool {
	conn, ok := g.registry.Lookup(event.RecipientID)
	if !ok {
		return false
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: failed to encode event %s for user %d: %v", event.Type, event.RecipientID, err)
		return false
	}
	if !conn.Send(payload) {
		log.Printf("notify: live channel for user %d is full or closed, dropping %s", event.RecipientID, event.Type)
		return false
	}
	return true
}

// deliverPush submits the event to the mobile push gateway for every
// active subscription of the recipient, under a bounded timeout that is
// independent of the triggering request's context.
func (g *Gateway) deliverPush(ctx context.Context, event Event) (bool, error) {
	if g.sender == nil {
		return false, nil
	}

	subs, err := g.subs.FindActiveByUserID(ctx, event.RecipientID)
	if err != nil {
		return false, err
	}
	if len(subs) == 0 {
		return false, nil
	}

	data := make(map[string]string, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	data["eventType"] = event.Type

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.sendTimeout)
	defer cancel()

	var lastErr error
	sent := false
	for _, sub := range subs {
		if err := g.sender.Send(sendCtx, sub.Token, event.Title, event.Body, data); err != nil {
			lastErr = err
			continue
		}
		sent = true
	}
	return sent, lastErr
}
