package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"candidate-collab/internal/metrics"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// InboundFunc handles one client-sent event other than joinRoom/leaveRoom.
// A returned error is reported back to that client as an "error" event.
type InboundFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// RoomAuthorizer decides whether c may join room.
type RoomAuthorizer func(ctx context.Context, c *Client, room string) bool

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// Hub tracks connections and the rooms they joined. Events emitted to a room
// go to every local member and, when Redis is configured, to the other
// instances through the cluster_events channel.
type Hub struct {
	// Registered clients and their room memberships. Guarded by mu.
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb        *redis.Client
	instanceID string

	hmu       sync.RWMutex
	handlers  map[string]InboundFunc
	authorize RoomAuthorizer

	metrics *metrics.Hub
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, m *metrics.Hub, log logger.ILogger) *Hub {
	if m == nil {
		m = metrics.NewHub(nil)
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		handlers:   make(map[string]InboundFunc),
		authorize:  func(context.Context, *Client, string) bool { return true },
		metrics:    m,
		logger:     log,
	}
}

// Handle routes inbound events named event to fn.
func (h *Hub) Handle(event string, fn InboundFunc) {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	h.handlers[event] = fn
}

// AuthorizeRooms installs the joinRoom check. Every join is allowed until one is set.
func (h *Hub) AuthorizeRooms(fn RoomAuthorizer) {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	h.authorize = fn
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.Connections.Inc()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds c to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// removeLocked drops c from every room and closes its send channel. Clients
// already removed are left alone, so the channel is closed exactly once.
func (h *Hub) removeLocked(c *Client) {
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.removed = true
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.Connections.Dec()
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": c.UserID})
}

// Join adds c to room if the authorizer allows it.
func (h *Hub) Join(ctx context.Context, c *Client, room string) bool {
	if room == "" {
		return false
	}
	h.hmu.RLock()
	authorize := h.authorize
	h.hmu.RUnlock()
	if !authorize(ctx, c, room) {
		h.logger.Warn("Hub", "Room join refused", map[string]interface{}{"user_id": c.UserID, "room": room})
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c.removed {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Members counts the local connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends event to every member of room on every instance.
func (h *Hub) Emit(room, event string, payload interface{}) error {
	data, err := model.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	h.metrics.EventsEmitted.WithLabelValues(event).Inc()
	h.deliver(room, data)

	if h.rdb != nil {
		jsonPayload, _ := json.Marshal(clusterMessage{Origin: h.instanceID, Room: room, Message: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, jsonPayload).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"room": room, "error": err.Error()})
		}
	}
	return nil
}

// sendTo queues an event for a single connection.
func (h *Hub) sendTo(c *Client, event string, payload interface{}) {
	data, err := model.NewEnvelope(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	_, ok := h.clients[c]
	full := false
	if ok {
		select {
		case c.send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()
	if full {
		h.drop([]*Client{c})
	}
}

// deliver writes data to the local members of room. Members whose buffer is
// full are disconnected.
func (h *Hub) deliver(room string, data []byte) {
	var slow []*Client
	h.mu.RLock()
	for client := range h.rooms[room] {
		if _, ok := h.clients[client]; !ok {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.drop(slow)
	}
}

func (h *Hub) drop(clients []*Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range clients {
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": c.UserID})
		h.removeLocked(c)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
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
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			// Our own events were delivered locally on Emit.
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.Room, payload.Message)
		}
	}
}

func (h *Hub) inbound(event string) (InboundFunc, bool) {
	h.hmu.RLock()
	defer h.hmu.RUnlock()
	fn, ok := h.handlers[event]
	return fn, ok
}
