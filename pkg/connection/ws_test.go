package connection

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrm/collab.go/internal/fakerelay"
	"github.com/opencrm/collab.go/pkg/logger"
	"github.com/opencrm/collab.go/pkg/protocol"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func newRelayConn(t *testing.T, relay *fakerelay.Relay, userID string) *WebSocketConnection {
	t.Helper()

	srv := httptest.NewServer(relay.Handler())
	t.Cleanup(srv.Close)

	cfg := NewConfig("ws"+strings.TrimPrefix(srv.URL, "http"), userID)
	cfg.Logger = logger.New(io.Discard)

	return NewWebSocketConnection(cfg)
}

func TestWebSocketConnectLifecycle(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")

	require.NoError(t, ws.Connect(context.Background()))
	assert.True(t, ws.IsConnected())
	assert.NotEmpty(t, ws.ConnectionID())

	require.Eventually(t, func() bool {
		return relay.ClientCount() == 1
	}, waitFor, tick)

	// Connect on an open connection is a no-op, not a redial.
	id := ws.ConnectionID()
	require.NoError(t, ws.Connect(context.Background()))
	assert.Equal(t, id, ws.ConnectionID())

	require.NoError(t, ws.Close(context.Background()))
	assert.False(t, ws.IsConnected())
	assert.True(t, ws.IsDisconnected())

	require.Eventually(t, func() bool {
		return relay.ClientCount() == 0
	}, waitFor, tick)

	// A second close fails; the connection is already down.
	assert.Error(t, ws.Close(context.Background()))
}

func TestWebSocketSendWhileClosedDrops(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")

	msg, err := protocol.NewMessage(protocol.Heartbeat, "", &protocol.HeartbeatPayload{}, "u1")
	require.NoError(t, err)

	// Dropped, not an error: the caller observes connectivity through
	// IsConnected, not through Send.
	require.NoError(t, ws.Send(msg))
	assert.Zero(t, relay.HeartbeatCount("u1"))
}

func TestWebSocketSendAndReceive(t *testing.T) {
	relay := fakerelay.New()
	wsA := newRelayConn(t, relay, "u1")

	var (
		mu  sync.Mutex
		got []*protocol.Message
	)
	wsA.SetHandler(func(msg *protocol.Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	require.NoError(t, wsA.Connect(context.Background()))
	defer wsA.Close(context.Background())

	msg, err := protocol.NewMessage(protocol.Heartbeat, "", &protocol.HeartbeatPayload{
		ConnectionID: wsA.ConnectionID(),
	}, "u1")
	require.NoError(t, err)
	require.NoError(t, wsA.Send(msg))

	require.Eventually(t, func() bool {
		return relay.HeartbeatCount("u1") == 1
	}, waitFor, tick)

	// A peer's presence broadcast lands on the registered handler.
	wsB := newRelayConn(t, relay, "u2")
	require.NoError(t, wsB.Connect(context.Background()))
	defer wsB.Close(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range got {
			if m.Type == protocol.PresenceUpdate && m.SenderID == "u2" {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func TestHeartbeatTicker(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")
	ws.cfg.HeartbeatInterval = 20 * time.Millisecond

	require.NoError(t, ws.Connect(context.Background()))
	defer ws.Close(context.Background())

	require.Eventually(t, func() bool {
		return relay.HeartbeatCount("u1") >= 3
	}, waitFor, tick)
}

func TestWebSocketReconnectGetsFreshID(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")

	require.NoError(t, ws.Connect(context.Background()))
	first := ws.ConnectionID()

	require.NoError(t, ws.Reconnect(context.Background()))
	defer ws.Close(context.Background())

	assert.True(t, ws.IsConnected())
	assert.NotEqual(t, first, ws.ConnectionID())
}

func TestRepeatedReconnectsLeaveConnectionIntact(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")

	require.NoError(t, ws.Connect(context.Background()))
	defer ws.Close(context.Background())

	// Each redial leaves a prior generation's read loop draining its fatal
	// error; none of them may tear down the replacement socket.
	for i := 0; i < 25; i++ {
		require.NoError(t, ws.Reconnect(context.Background()))
		require.True(t, ws.IsConnected())
	}

	// Give the stale loops time to finish erroring out, then prove the
	// current generation's loops are still alive.
	time.Sleep(100 * time.Millisecond)
	require.True(t, ws.IsConnected())
	assert.Nil(t, ws.CloseReason())

	msg, err := protocol.NewMessage(protocol.Heartbeat, "", &protocol.HeartbeatPayload{
		ConnectionID: ws.ConnectionID(),
	}, "u1")
	require.NoError(t, err)
	require.NoError(t, ws.Send(msg))

	require.Eventually(t, func() bool {
		return relay.HeartbeatCount("u1") == 1
	}, waitFor, tick)
}

func TestCloseReasonTracksFailures(t *testing.T) {
	relay := fakerelay.New()
	ws := newRelayConn(t, relay, "u1")

	require.NoError(t, ws.Connect(context.Background()))
	assert.Nil(t, ws.CloseReason())

	relay.DropClient("u1")
	require.Eventually(t, ws.IsDisconnected, waitFor, tick)
	assert.Error(t, ws.CloseReason())

	// A successful redial clears the recorded failure, and a manual Close
	// does not record one.
	require.NoError(t, ws.Connect(context.Background()))
	assert.Nil(t, ws.CloseReason())

	require.NoError(t, ws.Close(context.Background()))
	assert.Nil(t, ws.CloseReason())
}
