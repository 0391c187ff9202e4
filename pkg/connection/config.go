package connection

import (
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencrm/collab.go/internal/codec"
	"github.com/opencrm/collab.go/pkg/logger"
)

// Config carries everything needed to establish and maintain a connection.
type Config struct {
	// BaseURL is the relay endpoint, e.g. "ws://crm.example.com". The local
	// user id is appended as a query parameter when dialing.
	BaseURL string

	// UserID is the local user's id; it is stamped as the sender on every
	// outbound frame.
	UserID string

	// HeartbeatInterval defaults to DefaultHeartbeatInterval when zero.
	HeartbeatInterval time.Duration

	// ReconnectInterval defaults to DefaultReconnectInterval when zero.
	// It feeds the default constant-delay reconnect policy.
	ReconnectInterval time.Duration

	// ReconnectBackOff overrides the reconnect wait policy. The default is a
	// constant delay of ReconnectInterval between attempts. The constant
	// policy is a deliberate simplification suited to small deployments;
	// embedders wanting exponential backoff set this field.
	ReconnectBackOff backoff.BackOff

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	Logger logger.Logger
}

// NewConfig returns a Config for the given endpoint and user with all
// defaults filled in: JSON envelope codec, zerolog to stdout, 30s heartbeat,
// 3s constant-delay reconnect.
func NewConfig(baseURL, userID string) *Config {
	c := codec.NewJSON()
	return &Config{
		BaseURL:           baseURL,
		UserID:            userID,
		HeartbeatInterval: DefaultHeartbeatInterval,
		ReconnectInterval: DefaultReconnectInterval,
		Marshaler:         c,
		Unmarshaler:       c,
		Logger:            logger.New(os.Stdout),
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.UserID == "" {
		return ErrNoUserID
	}
	if c.Marshaler == nil {
		return ErrNoMarshaler
	}
	if c.Unmarshaler == nil {
		return ErrNoUnmarshaler
	}
	return nil
}
