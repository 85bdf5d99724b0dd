package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries events between instances so a client connected to
// one node sees events produced on another.
const ClusterChannel = "companion_events"

// Frame is what clients receive for every event.
type Frame struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: session id -> connections (a session may be open
	// in more than one tab).
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client
	origin string
	done   chan struct{}

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]struct{}),
		rdb:        rdb,
		origin:     uuid.NewString(),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.SessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.SessionID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.SessionID]; ok {
				if _, member := set[client]; member {
					delete(set, client)
					close(client.Send)
				}
				if len(set) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session has no connected clients", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

// Connected reports how many clients this node holds for a session.
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Emit delivers an event to the session's local clients and publishes it
// for the other instances.
func (h *Hub) Emit(event events.Event) {
	data, err := json.Marshal(Frame{
		Type:      event.EventType(),
		SessionID: event.Session(),
		Data:      event.Payload(),
		Timestamp: event.Timestamp(),
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
		return
	}

	h.deliver(event.Session(), data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:    h.origin,
			SessionID: event.Session(),
			Message:   data,
		})
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to publish event to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliver(sessionID string, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
		go h.drop(client)
	}
}

// drop asks Run to unregister the client unless the hub already stopped.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// attach registers the client; it reports false once the hub stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.origin {
				continue
			}
			h.deliver(payload.SessionID, payload.Message)
		}
	}
}
