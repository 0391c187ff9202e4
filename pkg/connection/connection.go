// Package connection owns the persistent bidirectional connection the
// collaboration engine speaks over: dialing, keepalive, reconnection, and
// delivery of inbound frames to a single handler.
package connection

import (
	"context"
	"errors"

	"github.com/opencrm/collab.go/pkg/protocol"
)

var (
	ErrNoBaseURL     = errors.New("connection: no base URL configured")
	ErrNoUserID      = errors.New("connection: no user id configured")
	ErrNoMarshaler   = errors.New("connection: no marshaler configured")
	ErrNoUnmarshaler = errors.New("connection: no unmarshaler configured")
)

// Handler receives every inbound frame. The connection invokes it from a
// single goroutine, one frame at a time, so handlers need no locking among
// themselves.
type Handler func(msg *protocol.Message)

// Connection is one client's persistent link to the collaboration relay.
type Connection interface {
	// Connect opens the connection. Calling Connect on an already open
	// connection is a no-op.
	Connect(ctx context.Context) error

	// Reconnect force-closes the current connection, if any, and dials again.
	Reconnect(ctx context.Context) error

	// Close tears the connection down and stops all timers.
	Close(ctx context.Context) error

	// Send transmits one frame. Frames sent while the connection is not open
	// are dropped, not queued; Send returns nil in that case.
	Send(msg *protocol.Message) error

	// SetHandler registers the single inbound dispatch target. Must be called
	// before Connect.
	SetHandler(h Handler)

	IsConnected() bool

	// ConnectionID returns the id generated for the current connection,
	// or an empty string before the first successful Connect.
	ConnectionID() string
}
