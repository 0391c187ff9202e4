package collab

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencrm/collab.go/internal/codec"
	"github.com/opencrm/collab.go/pkg/connection"
	"github.com/opencrm/collab.go/pkg/logger"
	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// Config is the embedder-facing configuration surface of the engine.
type Config struct {
	// BaseURL is the relay endpoint, e.g. "ws://crm.example.com".
	BaseURL string

	// LocalUser is the user this client acts as. Required.
	LocalUser models.User

	// HeartbeatInterval defaults to 30s when zero.
	HeartbeatInterval time.Duration

	// ReconnectInterval defaults to 3s when zero.
	ReconnectInterval time.Duration

	// ReconnectBackOff overrides the reconnect wait policy; nil selects a
	// constant delay of ReconnectInterval.
	ReconnectBackOff backoff.BackOff

	// LockTTL bounds every lock this client acquires. Defaults to 30m.
	LockTTL time.Duration

	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler

	Logger logger.Logger
}

// NewConfig returns a Config with defaults filled in.
func NewConfig(baseURL string, localUser models.User) *Config {
	c := codec.NewJSON()
	return &Config{
		BaseURL:           baseURL,
		LocalUser:         localUser,
		HeartbeatInterval: connection.DefaultHeartbeatInterval,
		ReconnectInterval: connection.DefaultReconnectInterval,
		LockTTL:           DefaultLockTTL,
		Marshaler:         c,
		Unmarshaler:       c,
		Logger:            logger.New(os.Stdout),
	}
}

// Engine coordinates one client's participation in realtime collaboration.
// All shared state (presence map, participant roster, lock set, conflict
// set, comment tree) is mutated either from the inbound dispatch path or
// from the synchronous optimistic-apply paths, both serialized by one mutex,
// so apply and reconcile can never interleave.
type Engine struct {
	conn      connection.Connection
	localUser models.User
	lockTTL   time.Duration
	logger    logger.Logger

	mu        sync.RWMutex
	session   *models.Session
	presence  map[string]*models.PresenceData
	typing    map[string]*models.TypingState
	pending   []models.Change
	conflicts map[string]*models.Conflict
	locks     map[string]*models.Lock
	comments  []*models.Comment
	version   int64

	subsMu sync.RWMutex
	subs   map[protocol.MessageType]map[string]Handler
}

// New builds an Engine over an auto-reconnecting WebSocket connection.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("collab: nil config")
	}
	if cfg.LocalUser.ID == "" {
		return nil, errors.New("collab: local user id is required")
	}

	connCfg := &connection.Config{
		BaseURL:           cfg.BaseURL,
		UserID:            cfg.LocalUser.ID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectInterval: cfg.ReconnectInterval,
		ReconnectBackOff:  cfg.ReconnectBackOff,
		Marshaler:         cfg.Marshaler,
		Unmarshaler:       cfg.Unmarshaler,
		Logger:            cfg.Logger,
	}

	ws := connection.NewWebSocketConnection(connCfg)
	rews := connection.NewReconnectingWebSocketConnection(ws, cfg.ReconnectBackOff)

	e := newEngine(rews, cfg)
	rews.OnReconnect = e.handleReconnected

	return e, nil
}

// FromConnection builds an Engine over an existing Connection. Used by tests
// and by embedders bringing their own transport.
func FromConnection(conn connection.Connection, cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("collab: nil config")
	}
	if cfg.LocalUser.ID == "" {
		return nil, errors.New("collab: local user id is required")
	}
	return newEngine(conn, cfg), nil
}

func newEngine(conn connection.Connection, cfg *Config) *Engine {
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New(os.Stdout)
	}

	e := &Engine{
		conn:      conn,
		localUser: cfg.LocalUser,
		lockTTL:   lockTTL,
		logger:    log,
		presence:  make(map[string]*models.PresenceData),
		typing:    make(map[string]*models.TypingState),
		conflicts: make(map[string]*models.Conflict),
		locks:     make(map[string]*models.Lock),
		subs:      make(map[protocol.MessageType]map[string]Handler),
	}

	conn.SetHandler(e.dispatch)

	return e
}

// Connect opens the underlying connection. Idempotent if already open.
func (e *Engine) Connect(ctx context.Context) error {
	return e.conn.Connect(ctx)
}

// Reconnect force-closes and redials the connection.
func (e *Engine) Reconnect(ctx context.Context) error {
	return e.conn.Reconnect(ctx)
}

// Close tears down the connection. Engine state is kept so queries still
// answer from the last known view.
func (e *Engine) Close(ctx context.Context) error {
	return e.conn.Close(ctx)
}

func (e *Engine) IsConnected() bool { return e.conn.IsConnected() }

func (e *Engine) ConnectionID() string { return e.conn.ConnectionID() }

// LocalUser returns the user this client acts as.
func (e *Engine) LocalUser() models.User { return e.localUser }

// handleReconnected re-establishes session visibility after an automatic
// reconnect: without it a reconnected client would be deaf to its own
// session channel and invisible to its peers.
func (e *Engine) handleReconnected() {
	e.mu.RLock()
	session := e.session
	var channel string
	var entityType, entityID string
	if session != nil {
		channel = session.Channel()
		entityType = session.EntityType
		entityID = session.EntityID
	}
	e.mu.RUnlock()

	if session == nil {
		return
	}

	if err := e.send(protocol.Subscribe, "", &protocol.ChannelPayload{Channel: channel}); err != nil {
		e.logger.Error("failed to resubscribe session channel", "error", err)
	}
	if err := e.send(protocol.SessionJoin, channel, &protocol.JoinPayload{
		EntityType: entityType,
		EntityID:   entityID,
		User:       e.localUser,
		Role:       models.RoleOwner,
	}); err != nil {
		e.logger.Error("failed to rejoin session", "error", err)
	}
}

// send builds an envelope stamped with the local user and transmits it.
// Frames sent while disconnected are dropped by the connection.
func (e *Engine) send(t protocol.MessageType, channel string, payload any) error {
	msg, err := protocol.NewMessage(t, channel, payload, e.localUser.ID)
	if err != nil {
		return err
	}
	return e.conn.Send(msg)
}
