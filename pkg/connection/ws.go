package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// DefaultDialer is the gorilla dialer used by WebSocketConnection.
// It is the stock dialer with compression enabled.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

const (
	// StateUnknown indicates the connection is in an unexpected state.
	//
	// This is intentionally the zero value of State, so that it doubles as an
	// indicator that a WebSocketConnection was initialized in an unexpected way.
	StateUnknown State = iota
	// StatePending is the initial state before the first Connect call.
	StatePending
	// StateConnecting indicates a dial is in progress. It transitions to
	// StateConnected on success, or StateDisconnected on failure.
	StateConnecting
	// StateConnected indicates the connection is established and usable.
	StateConnected
	// StateDisconnecting indicates a manual Close is in progress.
	StateDisconnecting
	// StateDisconnected indicates the connection is closed, either manually
	// or by an error. It can transition back to StateConnecting on a
	// reconnection attempt.
	StateDisconnected
)

// State represents the lifecycle state of the WebSocket connection.
//
// Assumed transitions:
//
//	StatePending       -> StateConnecting (initial connection attempt)
//	StateConnecting    -> StateConnected | StateDisconnected
//	StateConnected     -> StateDisconnecting | StateDisconnected
//	StateDisconnecting -> StateDisconnected
//	StateDisconnected  -> StateConnecting (reconnection attempt)
type State int

// WebSocketConnection is the gorilla-backed Connection. One instance owns at
// most one live socket; it reads frames on a single goroutine and hands each
// one to the registered handler before reading the next, which is what keeps
// optimistic applies and reconciliation from ever interleaving.
type WebSocketConnection struct {
	cfg *Config

	Conn *gorilla.Conn
	// connLock guards Conn for reads and writes. It is not held across the
	// whole connect/close sequence, only around the actual socket use, so a
	// failed connection does not block concurrent Send calls for long.
	connLock sync.Mutex

	// stateLock guards state and connID. Separate from connLock so that
	// callers probing IsConnected are never blocked behind a socket write.
	stateLock sync.RWMutex
	state     State
	connID    string

	handlerLock sync.RWMutex
	handler     Handler

	// connCloseCh/closeOnce signal the read and heartbeat loops that the
	// current socket generation is done. Replaced on every Connect; guarded
	// by stateLock together with closeError, so a stale read loop can never
	// observe (or close) its successor's channel.
	connCloseCh chan struct{}
	closeOnce   *sync.Once

	closeError error
}

var _ Connection = (*WebSocketConnection)(nil)

// NewWebSocketConnection returns an unconnected WebSocketConnection.
// Missing config fields are filled with defaults from NewConfig.
func NewWebSocketConnection(cfg *Config) *WebSocketConnection {
	defaults := NewConfig(cfg.BaseURL, cfg.UserID)
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaults.ReconnectInterval
	}
	if cfg.Marshaler == nil {
		cfg.Marshaler = defaults.Marshaler
	}
	if cfg.Unmarshaler == nil {
		cfg.Unmarshaler = defaults.Unmarshaler
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	return &WebSocketConnection{
		cfg:   cfg,
		state: StatePending,
	}
}

func (ws *WebSocketConnection) SetHandler(h Handler) {
	ws.handlerLock.Lock()
	defer ws.handlerLock.Unlock()
	ws.handler = h
}

func (ws *WebSocketConnection) IsConnected() bool {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()
	return ws.state == StateConnected
}

// IsDisconnected reports whether the connection dropped, which is what the
// reconnecting wrapper polls to decide whether to redial.
func (ws *WebSocketConnection) IsDisconnected() bool {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()
	return ws.state == StateDisconnected
}

func (ws *WebSocketConnection) ConnectionID() string {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()
	return ws.connID
}

// CloseReason returns the read error that tore down the last connection.
// It is nil after a manual Close and cleared on every successful Connect, so
// a non-nil value means the connection was lost, not released.
func (ws *WebSocketConnection) CloseReason() error {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()
	return ws.closeError
}

func (ws *WebSocketConnection) transitionToConnecting() (alreadyOpen bool, err error) {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()

	switch ws.state {
	case StateConnected:
		// Connect is idempotent on an open connection.
		return true, nil
	case StateConnecting:
		return false, errors.New("connection: already connecting")
	case StateDisconnecting:
		return false, errors.New("connection: close in progress")
	case StatePending, StateDisconnected:
	default:
		ws.cfg.Logger.Warn("BUG: connection in unknown state, connecting anyway", "state", ws.state)
	}

	ws.state = StateConnecting
	return false, nil
}

// Connect dials the relay, generates a fresh connection id, announces the
// local user online, and starts the read and heartbeat loops. It is a no-op
// when the connection is already open.
func (ws *WebSocketConnection) Connect(ctx context.Context) error {
	if err := ws.cfg.validate(); err != nil {
		return err
	}

	alreadyOpen, err := ws.transitionToConnecting()
	if err != nil || alreadyOpen {
		return err
	}

	if err := ws.connect(ctx); err != nil {
		ws.setState(StateDisconnected)
		ws.cfg.Logger.Error("failed to connect", "error", err)
		return err
	}

	ws.setState(StateConnected)
	ws.cfg.Logger.Debug("connected", "connection_id", ws.ConnectionID())

	// Announce presence so peers see the user come online the moment the
	// socket opens, before any session is joined.
	if err := ws.announcePresence(); err != nil {
		ws.cfg.Logger.Error("failed to announce presence", "error", err)
	}

	return nil
}

func (ws *WebSocketConnection) connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/realtime?userId=%s", ws.cfg.BaseURL, url.QueryEscape(ws.cfg.UserID))

	conn, res, err := DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	ws.connLock.Lock()
	ws.Conn = conn
	ws.connLock.Unlock()

	closeCh := make(chan struct{})
	once := &sync.Once{}

	ws.stateLock.Lock()
	ws.connID = uuid.NewString()
	ws.connCloseCh = closeCh
	ws.closeOnce = once
	ws.closeError = nil
	ws.stateLock.Unlock()

	// The channel and once are handed to the loops directly: they belong to
	// this socket generation alone, so a loop left over from a previous
	// generation can never signal or observe them.
	go ws.readLoop(conn, closeCh, once)
	go ws.heartbeatLoop(closeCh)

	return nil
}

func (ws *WebSocketConnection) announcePresence() error {
	msg, err := protocol.NewMessage(protocol.PresenceUpdate, "", &protocol.PresencePayload{
		Status: models.StatusOnline,
	}, ws.cfg.UserID)
	if err != nil {
		return err
	}
	return ws.write(msg)
}

// Reconnect force-closes the current connection, if any, and dials again.
func (ws *WebSocketConnection) Reconnect(ctx context.Context) error {
	if ws.IsConnected() {
		if err := ws.Close(ctx); err != nil {
			ws.cfg.Logger.Warn("close before reconnect failed", "error", err)
		}
	}
	return ws.Connect(ctx)
}

func (ws *WebSocketConnection) transitionToDisconnecting() error {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()

	switch ws.state {
	case StateConnected:
	case StateConnecting:
		return errors.New("connection: cannot close while connecting")
	case StateDisconnected, StateDisconnecting:
		return errors.New("connection: already closed")
	case StatePending:
		return errors.New("connection: never connected")
	default:
		return fmt.Errorf("connection: unknown state %v", ws.state)
	}

	ws.state = StateDisconnecting
	return nil
}

// Close stops the read and heartbeat loops, sends a close frame, and closes
// the socket. The context bounds the close-frame write; the socket is closed
// regardless of whether that write succeeds.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	if err := ws.transitionToDisconnecting(); err != nil {
		return err
	}
	defer ws.setState(StateDisconnected)

	ws.signalClosed()

	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	conn := ws.Conn
	ws.Conn = nil
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	// Best effort: tell the peer we are leaving. The socket gets closed
	// either way so local resources are reclaimed.
	err := conn.WriteControl(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(CloseMessageCode, ""), deadline)
	if err != nil {
		ws.cfg.Logger.Error("failed to write close message", "error", err)
	}

	return conn.Close()
}

// Send transmits one frame. Frames sent while the connection is not open are
// dropped, not queued: an intent issued while disconnected simply never
// reconciles, which callers observe through IsConnected.
func (ws *WebSocketConnection) Send(msg *protocol.Message) error {
	if !ws.IsConnected() {
		ws.cfg.Logger.Debug("dropping frame, connection not open", "type", msg.Type)
		return nil
	}
	return ws.write(msg)
}

func (ws *WebSocketConnection) write(msg *protocol.Message) error {
	data, err := ws.cfg.Marshaler.Marshal(msg)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	if ws.Conn == nil {
		ws.cfg.Logger.Debug("dropping frame, socket gone", "type", msg.Type)
		return nil
	}

	return ws.Conn.WriteMessage(gorilla.BinaryMessage, data)
}

func (ws *WebSocketConnection) setState(s State) {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()
	ws.state = s
}

// signalClosed closes the current generation's close channel exactly once.
func (ws *WebSocketConnection) signalClosed() {
	ws.stateLock.Lock()
	ch, once := ws.connCloseCh, ws.closeOnce
	ws.stateLock.Unlock()

	if once == nil {
		return
	}
	once.Do(func() { close(ch) })
}

// readLoop drains one socket. conn, closeCh and once are this generation's
// own; the loop never touches the shared fields they were copied from.
func (ws *WebSocketConnection) readLoop(conn *gorilla.Conn, closeCh chan struct{}, once *sync.Once) {
	for {
		select {
		case <-closeCh:
			return
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ws.handleReadError(err) {
					once.Do(func() { close(closeCh) })
					ws.dropConnection(conn, err)
					return
				}
				continue
			}

			ws.handleFrame(data)
		}
	}
}

// dropConnection flips the connection to disconnected after a fatal read
// error, but only when the erroring socket is still the current one: after a
// Reconnect, a stale generation's failure must not take down its replacement.
func (ws *WebSocketConnection) dropConnection(conn *gorilla.Conn, err error) {
	ws.connLock.Lock()
	current := ws.Conn == conn
	if current {
		ws.Conn = nil
	}
	ws.connLock.Unlock()

	if !current {
		return
	}
	conn.Close()

	ws.stateLock.Lock()
	ws.state = StateDisconnected
	ws.closeError = err
	ws.stateLock.Unlock()

	ws.cfg.Logger.Error("read loop: connection closed", "error", err)
}

// handleReadError reports whether the error is fatal for this socket.
func (ws *WebSocketConnection) handleReadError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) ||
		gorilla.IsUnexpectedCloseError(err) {
		return true
	}

	ws.cfg.Logger.Error(err.Error())
	return false
}

// handleFrame parses one inbound frame and hands it to the handler.
// Malformed frames are logged and dropped; there is no retry.
func (ws *WebSocketConnection) handleFrame(data []byte) {
	var msg protocol.Message
	if err := ws.cfg.Unmarshaler.Unmarshal(data, &msg); err != nil {
		ws.cfg.Logger.Error("dropping malformed frame", "error", err)
		return
	}

	ws.handlerLock.RLock()
	handler := ws.handler
	ws.handlerLock.RUnlock()

	if handler != nil {
		handler(&msg)
	}
}

func (ws *WebSocketConnection) heartbeatLoop(closeCh <-chan struct{}) {
	ticker := time.NewTicker(ws.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closeCh:
			return
		case <-ticker.C:
			// Send already no-ops when the socket is not open.
			msg, err := protocol.NewMessage(protocol.Heartbeat, "", &protocol.HeartbeatPayload{
				ConnectionID: ws.ConnectionID(),
			}, ws.cfg.UserID)
			if err != nil {
				ws.cfg.Logger.Error("failed to build heartbeat", "error", err)
				continue
			}
			if err := ws.Send(msg); err != nil {
				ws.cfg.Logger.Error("failed to send heartbeat", "error", err)
			}
		}
	}
}
