package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from a different origin in development
	},
}

// ActivityEvent is a live activity-feed update sent to dashboard clients.
type ActivityEvent struct {
	Type         string    `json:"type"` // "activity"
	ActivityID   string    `json:"activity_id"`
	Action       string    `json:"action"`
	Details      string    `json:"details"`
	ContractorID string    `json:"contractor_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	Tier         string    `json:"tier,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Hub manages dashboard WebSocket connections and fans activity events out to them.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	logger     *slog.Logger
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter Filter
}

// Filter narrows the feed a client receives. Empty fields match everything.
type Filter struct {
	ContractorID string
	Action       string
}

func (f Filter) matches(e ActivityEvent) bool {
	if f.ContractorID != "" && f.ContractorID != e.ContractorID {
		return false
	}
	if f.Action != "" && f.Action != e.Action {
		return false
	}
	return true
}

type outbound struct {
	event ActivityEvent
	data  []byte
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

// Run starts the hub's event loop. Should be called as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "total_clients", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "total_clients", len(h.clients))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.filter.matches(msg.event) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// Slow client: drop it rather than block the feed
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishActivity broadcasts a stored activity record.
func (h *Hub) PublishActivity(a domain.Activity, email, tier string) {
	event := ActivityEvent{
		Type:       "activity",
		ActivityID: a.ID,
		Action:     a.Action,
		Details:    a.Details,
		Email:      email,
		Tier:       tier,
		Timestamp:  a.CreatedAt,
	}
	if a.ContractorID != nil {
		event.ContractorID = *a.ContractorID
	}
	h.Broadcast(event)
}

// Broadcast sends an event to all connected WebSocket clients.
func (h *Hub) Broadcast(event ActivityEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "error", err)
		return
	}

	select {
	case h.broadcast <- outbound{event: event, data: data}:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping event")
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket and registers the
// client. The optional contractor_id and action query parameters filter the
// feed, e.g. for a contractor detail page.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		ContractorID: r.URL.Query().Get("contractor_id"),
		Action:       r.URL.Query().Get("action"),
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		filter: filter,
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection (handles pings/disconnects).
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
