package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"safelink/internal/config"
	"safelink/internal/middleware"
	"safelink/internal/presence"
	"safelink/internal/storage"
)

// Handler upgrades authenticated HTTP requests to websocket connections
// and wires them into the presence registry.
type Handler struct {
	registry presence.Registry
	users    storage.UserRepository
	wsCfg    config.WebSocketConfig
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(registry presence.Registry, users storage.UserRepository, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{registry: registry, users: users, wsCfg: wsCfg}
}

// ServeWS handles GET /ws. Auth middleware has already resolved the
// user; a successful upgrade registers the connection, superseding any
// previous one for the same user.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed for user %d: %v", userID, err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
	client.onDisconnect = func(c *Client) {
		h.registry.Unregister(c.userID, c)
		h.touchLastSeen(c.userID)
	}

	h.registry.Register(userID, client)
	h.touchLastSeen(userID)

	go client.writePump(h.wsCfg)
	go client.readPump(h.wsCfg)

	log.Printf("realtime: user %d connected", userID)
}

// touchLastSeen stamps the user's last-seen time. Best-effort: a failed
// write only skews the derived isOnline flag.
func (h *Handler) touchLastSeen(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.users.TouchLastSeen(ctx, userID, time.Now()); err != nil {
		log.Printf("realtime: failed to update last_seen for user %d: %v", userID, err)
	}
}
