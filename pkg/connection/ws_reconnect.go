package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type ReconnectState int

const (
	ReconnectStateUnknown ReconnectState = iota
	ReconnectStateConnecting
	ReconnectStateConnected
	ReconnectStateDisconnecting
	ReconnectStateDisconnected
)

// TransitionTo validates a state transition of the reconnecting wrapper and
// returns the new state, or an error when the transition is invalid.
func (s ReconnectState) TransitionTo(newState ReconnectState) (ReconnectState, error) {
	switch s {
	case ReconnectStateConnecting:
		switch newState {
		case ReconnectStateConnected, ReconnectStateDisconnected:
			return newState, nil
		}
	case ReconnectStateConnected:
		switch newState {
		case ReconnectStateDisconnecting, ReconnectStateDisconnected:
			return newState, nil
		}
	case ReconnectStateDisconnecting:
		if newState == ReconnectStateDisconnected {
			return newState, nil
		}
	case ReconnectStateDisconnected:
		switch newState {
		case ReconnectStateConnecting, ReconnectStateDisconnected:
			return newState, nil
		}
	}

	return ReconnectStateUnknown, fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

// ReconnectingWebSocketConnection wraps a WebSocketConnection and redials it
// whenever the underlying socket drops. The wait between attempts comes from
// a backoff.BackOff; the default is a constant delay of the configured
// ReconnectInterval, which matches the reference behavior of a fixed-delay
// retry rather than exponential backoff.
type ReconnectingWebSocketConnection struct {
	*WebSocketConnection

	// BackOff yields the wait before each reconnection check. It is Reset
	// after every successful attempt, so an exponential policy only grows
	// across consecutive failures.
	BackOff backoff.BackOff

	// OnReconnect, when set, runs after every successful automatic
	// reconnection. The engine uses it to re-announce presence and
	// re-subscribe the active session channel.
	OnReconnect func()

	connCloseCh       chan struct{}
	reconnLoopCloseCh chan struct{}

	state ReconnectState
	mu    sync.Mutex
}

var _ Connection = (*ReconnectingWebSocketConnection)(nil)

// NewReconnectingWebSocketConnection wraps c with automatic redialing.
// A nil policy selects a constant delay of the configured ReconnectInterval.
func NewReconnectingWebSocketConnection(c *WebSocketConnection, policy backoff.BackOff) *ReconnectingWebSocketConnection {
	if policy == nil {
		policy = backoff.NewConstantBackOff(c.cfg.ReconnectInterval)
	}
	return &ReconnectingWebSocketConnection{
		WebSocketConnection: c,
		BackOff:             policy,
		state:               ReconnectStateDisconnected,
	}
}

func (arws *ReconnectingWebSocketConnection) transitionTo(newState ReconnectState) error {
	arws.mu.Lock()
	defer arws.mu.Unlock()

	newState, err := arws.state.TransitionTo(newState)
	if err != nil {
		return err
	}

	arws.state = newState
	arws.cfg.Logger.Debug("reconnecting connection state transitioned", "new_state", newState)

	return nil
}

func (arws *ReconnectingWebSocketConnection) mustTransitionTo(newState ReconnectState) {
	if err := arws.transitionTo(newState); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
}

// Connect establishes the connection and starts the reconnection loop.
// Unlike the plain WebSocketConnection, a lost connection is redialed
// automatically after the backoff wait.
//
// The loop starts only after the initial connection succeeds; if the first
// dial fails the caller decides what to do, so that applications running
// under a process manager can simply error-exit.
func (arws *ReconnectingWebSocketConnection) Connect(ctx context.Context) error {
	if err := arws.transitionTo(ReconnectStateConnecting); err != nil {
		return err
	}

	if err := arws.WebSocketConnection.Connect(ctx); err != nil {
		arws.mustTransitionTo(ReconnectStateDisconnected)
		return err
	}

	arws.connCloseCh = make(chan struct{})
	arws.reconnLoopCloseCh = make(chan struct{})

	go arws.reconnectionLoop()

	arws.mustTransitionTo(ReconnectStateConnected)

	return nil
}

// Reconnect force-closes and immediately redials, then runs the OnReconnect
// hook so session state is re-established.
func (arws *ReconnectingWebSocketConnection) Reconnect(ctx context.Context) error {
	if err := arws.WebSocketConnection.Reconnect(ctx); err != nil {
		return err
	}

	arws.BackOff.Reset()

	if arws.OnReconnect != nil {
		arws.OnReconnect()
	}

	return nil
}

// Close stops the reconnection loop first, so it cannot redial a connection
// the caller just tore down, then closes the underlying connection.
func (arws *ReconnectingWebSocketConnection) Close(ctx context.Context) error {
	if err := arws.transitionTo(ReconnectStateDisconnecting); err != nil {
		return fmt.Errorf("connection is already closing or closed: %w", err)
	}

	defer func() {
		arws.mustTransitionTo(ReconnectStateDisconnected)
	}()

	close(arws.connCloseCh)
	<-arws.reconnLoopCloseCh

	// The socket may already have dropped before Close was called; with the
	// redial loop stopped, nothing is left to tear down and the shutdown is
	// clean.
	if arws.WebSocketConnection.IsDisconnected() {
		return nil
	}

	return arws.WebSocketConnection.Close(ctx)
}

func (arws *ReconnectingWebSocketConnection) reconnectionLoop() {
	defer close(arws.reconnLoopCloseCh)

	for {
		wait := arws.BackOff.NextBackOff()
		if wait == backoff.Stop {
			arws.cfg.Logger.Warn("reconnect policy exhausted, giving up")
			return
		}

		select {
		case <-arws.connCloseCh:
			return
		case <-time.After(wait):
		}

		if !arws.WebSocketConnection.IsDisconnected() {
			arws.BackOff.Reset()
			continue
		}

		arws.cfg.Logger.Info("attempting to reconnect")
		if err := arws.WebSocketConnection.Connect(context.Background()); err != nil {
			arws.cfg.Logger.Error("failed to reconnect", "error", err)
			continue
		}

		arws.BackOff.Reset()
		arws.cfg.Logger.Info("reconnected")

		if arws.OnReconnect != nil {
			arws.OnReconnect()
		}
	}
}
