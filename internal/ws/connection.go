package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps one status-feed subscriber socket.
type Connection struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func newConnection(ws *websocket.Conn, writeTimeout time.Duration) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	return &Connection{ws: ws, writeTimeout: writeTimeout}
}

// SendJSON writes one event with a bounded deadline.
func (c *Connection) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

// Ping sends a control ping to keep the subscription alive.
func (c *Connection) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close tears down the socket.
func (c *Connection) Close() error {
	return c.ws.Close()
}
