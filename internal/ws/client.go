package ws

import (
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/varun72004/Twin-Talk/internal/room"
)

const (
	// Time allowed to write a message.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Max inbound frame size.
	maxMessageSize = 512 * 1024

	// Outbound buffer per connection.
	sendBufferSize = 256
)

// Client is one authenticated connection. Its identity is fixed at the
// handshake and never changes. The rooms map is the server-side
// membership set; it is owned by the hub loop and must only be touched
// there.
type Client struct {
	id       string
	userID   string
	username string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Joined rooms keyed by wire id, holding the parsed identity so it
	// is computed once at join time rather than re-parsed per event.
	rooms map[string]room.ID
}

func newClient(hub *Hub, conn *websocket.Conn, connID, userID, username string) *Client {
	return &Client{
		id:       connID,
		userID:   userID,
		username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[string]room.ID),
	}
}

// enqueue hands a frame to the write pump without blocking. A full
// buffer drops the frame; the slow connection will be cleaned up by
// the ping/pong deadlines if it never drains.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		slog.Warn("send buffer full, dropping frame", "user", c.userID, "conn", c.id)
		return false
	}
}

// readPump reads frames from the socket and forwards them to the hub
// loop. It runs in its own goroutine; exiting unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected close", "user", c.userID, "conn", c.id, "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("malformed frame", "user", c.userID, "conn", c.id, "error", err)
			continue
		}
		c.hub.inbound <- inboundEvent{client: c, envelope: env}
	}
}

// writePump writes queued frames and keepalive pings to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
				slog.Warn("write failed", "user", c.userID, "conn", c.id, "error", err)
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
