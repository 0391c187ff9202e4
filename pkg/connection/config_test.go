package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig("ws://relay.test", "u1")

	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.NotNil(t, cfg.Marshaler)
	assert.NotNil(t, cfg.Unmarshaler)
	assert.NotNil(t, cfg.Logger)
	require.NoError(t, cfg.validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing base URL", func(c *Config) { c.BaseURL = "" }, ErrNoBaseURL},
		{"missing user id", func(c *Config) { c.UserID = "" }, ErrNoUserID},
		{"missing marshaler", func(c *Config) { c.Marshaler = nil }, ErrNoMarshaler},
		{"missing unmarshaler", func(c *Config) { c.Unmarshaler = nil }, ErrNoUnmarshaler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("ws://relay.test", "u1")
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.validate(), tt.want)
		})
	}
}

func TestNewWebSocketConnectionFillsDefaults(t *testing.T) {
	ws := NewWebSocketConnection(&Config{BaseURL: "ws://relay.test", UserID: "u1"})

	assert.Equal(t, DefaultHeartbeatInterval, ws.cfg.HeartbeatInterval)
	assert.Equal(t, DefaultReconnectInterval, ws.cfg.ReconnectInterval)
	assert.NotNil(t, ws.cfg.Marshaler)
	assert.NotNil(t, ws.cfg.Logger)
	assert.False(t, ws.IsConnected())
	assert.Empty(t, ws.ConnectionID())
}
