package client

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/palaverhq/palaver/internal/wire"
)

// Conn is a client connection to a relay server.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// Dial connects to a relay websocket endpoint, e.g.
// ws://localhost:8000/connection/websocket.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// Send encodes and writes one message.
func (c *Conn) Send(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Read blocks until the next message arrives and decodes it.
func (c *Conn) Read() (wire.Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return wire.Decode(data)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
