package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Hub tracks live connections per game session. Each (session, user) pair holds at
// most one connection; registering again replaces and closes the previous one.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Connection // session_id -> user_id -> connection
	logger   zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*Connection),
		logger:   logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds conn for userID in sessionID.
func (h *Hub) Register(sessionID, userID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.sessions[sessionID]
	if users == nil {
		users = make(map[string]*Connection)
		h.sessions[sessionID] = users
	}
	if old, exists := users[userID]; exists && old != conn {
		old.Close()
	}
	users[userID] = conn

	h.logger.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Int("connections", len(users)).
		Msg("connection registered")
}

// Unregister removes conn if it still owns the (session, user) slot. A connection
// that was already replaced by a reconnect leaves the slot alone.
func (h *Hub) Unregister(sessionID, userID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.sessions[sessionID]
	current, exists := users[userID]
	if !exists || current != conn {
		return
	}
	current.Close()
	delete(users, userID)
	if len(users) == 0 {
		delete(h.sessions, sessionID)
	}
	h.logger.Info().Str("session_id", sessionID).Str("user_id", userID).Msg("connection unregistered")
}

// BroadcastToSession sends msg to every connection of sessionID. Failed sends are
// logged and skipped; the number of successful deliveries is returned.
func (h *Hub) BroadcastToSession(sessionID string, msg Message) int {
	h.mu.RLock()
	targets := make(map[string]*Connection, len(h.sessions[sessionID]))
	for userID, conn := range h.sessions[sessionID] {
		targets[userID] = conn
	}
	h.mu.RUnlock()

	delivered := 0
	for userID, conn := range targets {
		if err := conn.Send(msg); err != nil {
			h.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("user_id", userID).
				Str("type", msg.Type).
				Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// SendToUser delivers msg to one user's connection in a session.
func (h *Hub) SendToUser(sessionID, userID string, msg Message) error {
	conn, exists := h.Connection(sessionID, userID)
	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// Connection retrieves the live connection of userID in sessionID.
func (h *Hub) Connection(sessionID, userID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.sessions[sessionID][userID]
	return conn, exists
}

// SessionSize returns how many users are connected to sessionID.
func (h *Hub) SessionSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, users := range h.sessions {
		for _, conn := range users {
			conn.Close()
		}
		delete(h.sessions, sessionID)
	}
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, sendBuffer),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump drains the send queue and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
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

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Str("type", msg.Type).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "User connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
