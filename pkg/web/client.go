package web

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Large enough for an annotated JPEG frame.
	maxMessageSize = 512 * 1024
)

// client is one websocket subscriber. The write pump is the only
// goroutine that writes to the connection.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan message
}

func newClient(h *hub, conn *websocket.Conn) *client {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan message, 256),
	}
	h.register <- c
	return c
}

// serve pumps messages until the connection drops. Blocks; call it
// from the websocket handler.
func (c *client) serve() {
	go c.writePump()
	c.readPump()
}

// readPump drains the connection. Subscribers never send application
// data; reading only detects disconnects and pong frames.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			kind := websocket.TextMessage
			if msg.kind == binaryKind {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
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
