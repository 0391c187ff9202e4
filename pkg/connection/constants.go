package connection

import "time"

const (
	// DefaultHeartbeatInterval is how often the keepalive frame is sent
	// while the connection is open.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultReconnectInterval is the fixed delay between reconnection
	// attempts after an unexpected close.
	DefaultReconnectInterval = 3 * time.Second

	// CloseMessageCode identifies a normal close on the wire.
	CloseMessageCode = 1000
)
