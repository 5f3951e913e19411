package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safelink/internal/config"
)

// Client wraps one websocket connection for one authenticated user and
// satisfies presence.Conn. The live channel is server-to-client only:
// inbound frames are read solely to service pings and detect closure.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID uint

	closeOnce sync.Once

	// onDisconnect runs exactly once when the connection dies, from
	// either pump. It evicts the presence entry and stamps last-seen.
	onDisconnect func(*Client)
}

// Send enqueues a payload without blocking. False means the buffer is
// full or the channel is closed; the caller treats the connection as
// dead and the durable push channel covers the event.
func (c *Client) Send(payload []byte) (ok bool) {
	defer func() {
		// Send on a closed channel panics; a racing Close is an
		// expected shutdown path, not an error.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once, and
// safe to call concurrently with Send.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() uint {
	return c.userID
}

// readPump drains inbound frames so pong handling works and closure is
// detected promptly.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.onDisconnect(c)
		c.Close()
	}()

	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error for user %d: %v", c.userID, err)
			}
			return
		}
	}
}

// writePump pushes queued events to the peer and keeps the connection
// alive with periodic pings.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
