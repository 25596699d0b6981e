package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicelink-backend/internal/presence"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/response"
	"voicelink-backend/pkg/sanitize"
)

// Client→server events
const (
	EventRegister   = "register"
	EventUnregister = "unregister"
)

// Server→client control events
const (
	EventConnected    = "connected"
	EventRegistered   = "registered"
	EventUnregistered = "unregistered"
	EventError        = "error"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Envelope is the frame exchanged in both directions
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type outgoing struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type userPayload struct {
	Status string `json:"status,omitempty"`
	UserID string `json:"user_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// HubConfig tunes the events hub
type HubConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
}

// EventsHub serves the realtime channel. Each connection may register as a
// user; registered connections receive pushed events.
type EventsHub struct {
	registry *presence.Registry
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// Concurrency limit
	maxConnections int
	semaphore      chan struct{}
	pingInterval   time.Duration

	mu    sync.Mutex
	conns int
}

// Client is one websocket connection. It implements presence.Conn.
type Client struct {
	hub       *EventsHub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventsHub creates a hub that binds connections in registry
func NewEventsHub(registry *presence.Registry, cfg HubConfig, m *metrics.Metrics) *EventsHub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1000
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	h := &EventsHub{
		registry:       registry,
		metrics:        m,
		maxConnections: cfg.MaxConnections,
		semaphore:      make(chan struct{}, cfg.MaxConnections),
		pingInterval:   cfg.PingInterval,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker allows requests without an Origin header (native clients)
// and browser origins on the allow list. An empty list or "*" allows all.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and starts the client pumps
// GET /ws
func (h *EventsHub) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		response.FromError(c, apperrors.ServiceUnavailableError("Server at capacity, please try again later"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.trackConnection(1)

	client.Send(EventConnected, gin.H{"status": "success"})

	go client.writePump()
	go client.readPump()
}

// Connections returns the number of open websocket connections
func (h *EventsHub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

func (h *EventsHub) trackConnection(delta int) {
	h.mu.Lock()
	h.conns += delta
	count := h.conns
	h.mu.Unlock()
	h.metrics.SetWebSocketConnections(count)
}

// Send queues an event without blocking. It returns false if the client is
// closed or its buffer is full.
func (c *Client) Send(event string, payload interface{}) bool {
	frame, err := json.Marshal(outgoing{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to marshal websocket event",
			zap.String("event", event),
			zap.Error(err))
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		c.hub.metrics.RecordWebSocketMessage(event, "out")
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads client events until the connection drops, then releases
// whatever user the connection was bound to
func (c *Client) readPump() {
	defer func() {
		if userID, ok := c.hub.registry.UnregisterHandle(c); ok {
			logger.Info("User disconnected without unregister",
				zap.String("user_id", userID))
		}
		c.close()
		c.hub.trackConnection(-1)
		<-c.hub.semaphore
	}()

	readWait := c.hub.pingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket connection closed", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("Invalid message format from WebSocket", zap.Error(err))
			c.Send(EventError, errorPayload{Message: "invalid message format"})
			continue
		}
		c.hub.metrics.RecordWebSocketMessage(env.Event, "in")
		c.handle(&env)
	}
}

func (c *Client) handle(env *Envelope) {
	var data userPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.Send(EventError, errorPayload{Message: "invalid event data"})
			return
		}
	}

	switch env.Event {
	case EventRegister:
		userID := sanitize.UserID(data.UserID)
		if userID == "" {
			c.Send(EventError, errorPayload{Message: "user_id is required"})
			return
		}
		c.hub.registry.Register(userID, c)
		c.Send(EventRegistered, userPayload{Status: "success", UserID: userID})

	case EventUnregister:
		userID := sanitize.UserID(data.UserID)
		if userID == "" {
			userID, _ = c.hub.registry.ResolveByHandle(c)
		}
		// Only the connection a user is bound to may release it
		c.hub.registry.UnregisterIf(userID, c)
		c.Send(EventUnregistered, userPayload{Status: "success", UserID: userID})

	default:
		c.Send(EventError, errorPayload{Message: "unknown event " + env.Event})
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
