package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the session and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, onBinary func([]byte)) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256), OnBinary: onBinary}
	if !hub.attach(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
