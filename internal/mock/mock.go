// Package mock provides a scripted Connection for engine unit tests:
// outbound frames are recorded, inbound frames are injected by the test.
package mock

import (
	"context"
	"sync"

	"github.com/opencrm/collab.go/pkg/connection"
	"github.com/opencrm/collab.go/pkg/protocol"
)

type Connection struct {
	mu        sync.Mutex
	handler   connection.Handler
	connected bool
	connID    string
	sent      []*protocol.Message
}

var _ connection.Connection = (*Connection)(nil)

func New() *Connection {
	return &Connection{connID: "mock-connection"}
}

func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *Connection) Reconnect(ctx context.Context) error {
	return c.Connect(ctx)
}

func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		// Real connections drop frames while closed.
		return nil
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *Connection) SetHandler(h connection.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ""
	}
	return c.connID
}

// Inject delivers an inbound frame to the registered handler, as if it had
// arrived over the wire.
func (c *Connection) Inject(msg *protocol.Message) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		handler(msg)
	}
}

// Sent returns a copy of every frame recorded so far.
func (c *Connection) Sent() []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentOfType returns recorded frames with the given type tag.
func (c *Connection) SentOfType(t protocol.MessageType) []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*protocol.Message
	for _, m := range c.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears the recorded frames.
func (c *Connection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
