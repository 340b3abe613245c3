// Package realtime is the client side of the room-based event channel.
//
// A Channel keeps one websocket connection to the hub alive, remembers which
// rooms it joined and rejoins all of them after every reconnect before anything
// else is written or dispatched. Inbound events are dispatched one at a time on
// a single goroutine in arrival order.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"candidate-collab/internal/metrics"
	"candidate-collab/internal/model"
	"candidate-collab/internal/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	inboxSize      = 256
)

// TokenSource supplies the access token for the handshake and repairs it when
// the hub rejects it. *session.Coordinator satisfies it.
type TokenSource interface {
	AccessToken() string
	Await(ctx context.Context, sentWith string) (string, error)
}

// Handler receives the raw data of one event.
type Handler func(data json.RawMessage)

// Subscription identifies a registered handler for Off.
type Subscription struct {
	event string
	id    uint64
}

type handlerEntry struct {
	id uint64
	fn Handler
}

type Channel struct {
	dialer     Dialer
	tokens     TokenSource
	newBackoff func() backoff.BackOff
	metrics    *metrics.Realtime
	log        logger.ILogger

	mu        sync.Mutex
	conn      Conn
	rooms     map[string]struct{}
	roomOrder []string

	hmu      sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   uint64

	inbox chan model.Envelope
}

type Option func(*Channel)

// WithBackoff sets the reconnect policy. Each connection loop asks for a fresh BackOff.
func WithBackoff(fn func() backoff.BackOff) Option {
	return func(c *Channel) { c.newBackoff = fn }
}

func WithMetrics(m *metrics.Realtime) Option {
	return func(c *Channel) { c.metrics = m }
}

func WithLogger(log logger.ILogger) Option {
	return func(c *Channel) { c.log = log }
}

func NewChannel(dialer Dialer, tokens TokenSource, opts ...Option) *Channel {
	c := &Channel{
		dialer:   dialer,
		tokens:   tokens,
		metrics:  metrics.NewRealtime(nil),
		log:      logger.NewNopLogger(),
		rooms:    make(map[string]struct{}),
		handlers: make(map[string][]handlerEntry),
		inbox:    make(chan model.Envelope, inboxSize),
		newBackoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(500*time.Millisecond),
				backoff.WithMaxInterval(30*time.Second),
				backoff.WithMaxElapsedTime(0),
			)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JoinRoom records membership and, when connected, tells the hub right away.
// Joining a room twice is a no-op.
func (c *Channel) JoinRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rooms[roomID]; ok {
		return
	}
	c.rooms[roomID] = struct{}{}
	c.roomOrder = append(c.roomOrder, roomID)
	if c.conn != nil {
		c.writeLocked(model.EventJoinRoom, roomID)
	}
}

func (c *Channel) LeaveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rooms[roomID]; !ok {
		return
	}
	delete(c.rooms, roomID)
	for i, id := range c.roomOrder {
		if id == roomID {
			c.roomOrder = append(c.roomOrder[:i], c.roomOrder[i+1:]...)
			break
		}
	}
	if c.conn != nil {
		c.writeLocked(model.EventLeaveRoom, roomID)
	}
}

// Rooms returns the joined rooms in join order.
func (c *Channel) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.roomOrder...)
}

// Send writes one event. Without a live connection the event is dropped.
func (c *Channel) Send(event string, payload interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.metrics.DroppedSends.Inc()
		c.log.Warn("REALTIME", "Dropped outbound event, not connected", map[string]interface{}{"event": event})
		return false
	}
	return c.writeLocked(event, payload)
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// On registers fn for event. Handlers for the same event run in registration order.
func (c *Channel) On(event string, fn Handler) *Subscription {
	c.hmu.Lock()
	defer c.hmu.Unlock()

	c.nextID++
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: c.nextID, fn: fn})
	return &Subscription{event: event, id: c.nextID}
}

func (c *Channel) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()

	entries := c.handlers[sub.event]
	for i, e := range entries {
		if e.id == sub.id {
			c.handlers[sub.event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Subscribe registers a handler that receives the decoded payload.
// Payloads that do not decode into T are logged and skipped.
func Subscribe[T any](c *Channel, event string, fn func(T)) *Subscription {
	return c.On(event, func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			c.log.Warn("REALTIME", "Malformed event payload", map[string]interface{}{
				"event": event,
				"error": err.Error(),
			})
			return
		}
		fn(v)
	})
}

// Run keeps the connection alive until ctx is done. It returns early only
// when the session behind the token source can no longer be repaired.
func (c *Channel) Run(ctx context.Context) error {
	go c.dispatchLoop(ctx)

	bo := c.newBackoff()
	repaired := false
	connectedOnce := false

	for {
		token := c.tokens.AccessToken()
		conn, err := c.dialer.Dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrHandshakeUnauthorized) && !repaired {
				repaired = true
				c.log.Info("REALTIME", "Handshake rejected, repairing token", nil)
				if _, err := c.tokens.Await(ctx, token); err != nil {
					return err
				}
				continue
			}
			c.log.Warn("REALTIME", "Dial failed", map[string]interface{}{"error": err.Error()})
			if !sleep(ctx, bo.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}

		repaired = false
		bo.Reset()
		if connectedOnce {
			c.metrics.Reconnects.Inc()
		}
		connectedOnce = true

		if !c.attach(conn) {
			conn.Close()
			if !sleep(ctx, bo.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}

		c.readLoop(ctx, conn)
		c.detach(conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sleep(ctx, bo.NextBackOff()) {
			return ctx.Err()
		}
	}
}

// attach rejoins every recorded room and only then publishes the connection.
func (c *Channel) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	for _, room := range c.roomOrder {
		if !c.writeLocked(model.EventJoinRoom, room) {
			c.conn = nil
			return false
		}
	}
	c.log.Info("REALTIME", "Connected", map[string]interface{}{"rooms": len(c.roomOrder)})
	return true
}

func (c *Channel) detach(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

// writeLocked must be called with mu held.
func (c *Channel) writeLocked(event string, payload interface{}) bool {
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		c.log.Error("REALTIME", "Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return false
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Warn("REALTIME", "Write failed", map[string]interface{}{"event": event, "error": err.Error()})
		return false
	}
	return true
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("REALTIME", "Connection lost", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		envelopes, err := DecodeFrame(frame)
		if err != nil {
			c.log.Warn("REALTIME", "Malformed frame", map[string]interface{}{"error": err.Error()})
		}
		for _, env := range envelopes {
			select {
			case c.inbox <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Channel) dispatchLoop(ctx context.Context) {
	for {
		select {
		case env := <-c.inbox:
			c.dispatch(env)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Channel) dispatch(env model.Envelope) {
	c.metrics.EventsReceived.WithLabelValues(env.Event).Inc()

	c.hmu.RLock()
	entries := append([]handlerEntry(nil), c.handlers[env.Event]...)
	c.hmu.RUnlock()

	for _, e := range entries {
		e.fn(env.Data)
	}
}

// DecodeFrame splits one frame into its envelopes. Envelopes decoded before a
// malformed one are still returned.
func DecodeFrame(frame []byte) ([]model.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	var out []model.Envelope
	for {
		var env model.Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if env.Event != "" {
			out = append(out, env)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		d = 30 * time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
