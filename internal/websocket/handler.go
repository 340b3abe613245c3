package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one authenticated connection until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, username string) {
	client := newClient(hub, c, userID, username)
	if !hub.Register(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump() // readPump runs in the handler goroutine
}
