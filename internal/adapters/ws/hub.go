// Package ws pushes committed changes to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// AccessFunc reports whether userID may see the events of projectID.
type AccessFunc func(ctx context.Context, userID, projectID string) bool

// Hub keeps one connection per user id. A newer connection for the same
// user replaces the older one. Project events reach only users the access
// check admits; until SetAccess is called nobody is admitted.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*client
	access   AccessFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

var _ domain.Notifier = (*Hub)(nil)

type client struct {
	hub    *Hub
	ctx    context.Context
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	rooms map[string]bool
}

// clientMessage is what a browser may send.
type clientMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// roomReply acknowledges or refuses a room request.
type roomReply struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the request and runs the connection for userID until
// either side closes it. The caller has already authenticated userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "err", err)
		return
	}
	c := &client{
		hub:    h,
		ctx:    r.Context(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[string]bool),
	}
	h.register(c)
	go c.writeLoop()
	c.readLoop()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	h.clients[c.userID] = c
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
	h.logger.Debug("websocket connected", "user_id", c.userID)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.userID] == c {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	c.close()
}

// SetAccess installs the project access check.
func (h *Hub) SetAccess(fn AccessFunc) {
	h.mu.Lock()
	h.access = fn
	h.mu.Unlock()
}

func (h *Hub) canSee(ctx context.Context, userID, projectID string) bool {
	h.mu.Lock()
	access := h.access
	h.mu.Unlock()
	return access != nil && access(ctx, userID, projectID)
}

// Notify delivers a project event to readers of that project who either
// joined its room or joined no room at all. Events without a project go
// to event.UserID only. Slow clients drop messages.
func (h *Hub) Notify(ctx context.Context, event domain.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("encode websocket event", "channel", event.Channel, "err", err)
		return
	}
	ctx = context.WithoutCancel(ctx)
	projectID, scoped := domain.RoomProject(event.Room)

	h.mu.Lock()
	candidates := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		switch {
		case scoped && c.wants(event.Room):
			candidates = append(candidates, c)
		case !scoped && event.UserID != "" && c.userID == event.UserID:
			candidates = append(candidates, c)
		}
	}
	h.mu.Unlock()

	targets := candidates[:0]
	for _, c := range candidates {
		if !scoped || h.canSee(ctx, c.userID, projectID) {
			targets = append(targets, c)
		}
	}

	for _, c := range targets {
		select {
		case c.send <- raw:
		case <-c.done:
		default:
			h.logger.Warn("websocket client too slow, dropping event", "user_id", c.userID, "channel", event.Channel)
		}
	}
}

// Connected reports whether userID has a live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[userID]
	return ok
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (c *client) wants(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms) == 0 || c.rooms[room]
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readLoop() {
	defer c.hub.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", "user_id", c.userID, "err", err)
			}
			return
		}
		if msg.RoomID == "" {
			continue
		}
		switch msg.Type {
		case "join_room":
			projectID, ok := domain.RoomProject(msg.RoomID)
			if !ok || !c.hub.canSee(c.ctx, c.userID, projectID) {
				c.hub.logger.Debug("websocket room refused", "user_id", c.userID, "room", msg.RoomID)
				c.reply(roomReply{Type: "room_denied", RoomID: msg.RoomID})
				continue
			}
			c.mu.Lock()
			c.rooms[msg.RoomID] = true
			c.mu.Unlock()
			c.reply(roomReply{Type: "room_joined", RoomID: msg.RoomID})
		case "leave_room":
			c.mu.Lock()
			delete(c.rooms, msg.RoomID)
			c.mu.Unlock()
		}
	}
}

func (c *client) reply(msg roomReply) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	case <-c.done:
	default:
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case raw := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
