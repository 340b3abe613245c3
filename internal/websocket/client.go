package websocket

import (
	"context"
	"encoding/json"
	"time"

	"candidate-collab/internal/model"
	"candidate-collab/internal/realtime"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	inboundTimeout = 10 * time.Second
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Authenticated user of this connection
	UserID   uuid.UUID
	Username string

	// Buffered channel of outbound messages.
	send chan []byte

	// Guarded by hub.mu.
	rooms   map[string]struct{}
	removed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		UserID:   userID,
		Username: username,
		send:     make(chan []byte, sendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

// Reply queues an event for this connection only.
func (c *Client) Reply(event string, payload interface{}) {
	c.hub.sendTo(c, event, payload)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
			}
			return
		}

		envelopes, err := realtime.DecodeFrame(frame)
		if err != nil {
			c.hub.logger.Warn("Client", "Malformed frame", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
		}
		for _, env := range envelopes {
			c.handle(env)
		}
	}
}

func (c *Client) handle(env model.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	switch env.Event {
	case model.EventJoinRoom:
		var room string
		if err := json.Unmarshal(env.Data, &room); err != nil {
			c.Reply(model.EventError, map[string]string{"message": "joinRoom expects a room id"})
			return
		}
		if !c.hub.Join(ctx, c, room) {
			c.Reply(model.EventError, map[string]string{"message": "not allowed to join room " + room})
		}

	case model.EventLeaveRoom:
		var room string
		if err := json.Unmarshal(env.Data, &room); err == nil {
			c.hub.Leave(c, room)
		}

	default:
		fn, ok := c.hub.inbound(env.Event)
		if !ok {
			c.hub.logger.Debug("Client", "Unhandled event", map[string]interface{}{"event": env.Event})
			return
		}
		if err := fn(ctx, c, env.Data); err != nil {
			c.Reply(model.EventError, map[string]string{"message": err.Error()})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current frame, one envelope per line.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
