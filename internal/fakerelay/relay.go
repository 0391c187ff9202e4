// Package fakerelay provides an in-process collaboration relay for tests.
// It upgrades WebSocket clients, tracks channel subscriptions, and converts
// client intents into the broadcast events a production relay would emit:
// session:join becomes session:participant_joined, change:apply becomes
// change:applied with an assigned version, and so on. State is in-memory
// and per-instance.
package fakerelay

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

type client struct {
	userID   string
	user     models.User
	conn     *websocket.Conn
	writeMu  sync.Mutex
	channels map[string]bool
}

func (c *client) write(msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

type Relay struct {
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[string]*client
	versions   map[string]int64
	heartbeats map[string]int
}

func New() *Relay {
	return &Relay{
		upgrader:   websocket.Upgrader{EnableCompression: true},
		clients:    make(map[string]*client),
		versions:   make(map[string]int64),
		heartbeats: make(map[string]int),
	}
}

// Handler returns the HTTP handler serving the relay endpoint, for use with
// httptest.NewServer.
func (r *Relay) Handler() http.Handler {
	m := mux.NewRouter()
	m.HandleFunc("/realtime", r.serveWS)
	return m
}

// ClientCount returns how many clients are currently connected.
func (r *Relay) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// HeartbeatCount returns how many heartbeat frames a user has sent.
func (r *Relay) HeartbeatCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeats[userID]
}

// DropClient severs a client's socket server-side without a close handshake,
// simulating a network failure. Subscriptions are lost with the socket; a
// reconnecting client has to subscribe again.
func (r *Relay) DropClient(userID string) {
	r.mu.Lock()
	c := r.clients[userID]
	r.mu.Unlock()

	if c != nil {
		c.conn.Close()
	}
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	c := &client{
		userID:   userID,
		user:     models.User{ID: userID},
		conn:     conn,
		channels: make(map[string]bool),
	}

	r.mu.Lock()
	r.clients[userID] = c
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		// A reconnecting client may have re-registered under the same user id
		// before this socket's teardown runs; only remove our own entry.
		if r.clients[userID] == c {
			delete(r.clients, userID)
		}
		r.mu.Unlock()
		conn.Close()

		left, _ := protocol.NewMessage(protocol.PresenceLeft, "", nil, userID)
		r.broadcast(left, "", userID, false)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		r.route(c, &msg)
	}
}

func (r *Relay) route(c *client, msg *protocol.Message) {
	payload, err := protocol.DecodePayload(msg)
	if err != nil {
		return
	}

	switch msg.Type {
	case protocol.Subscribe:
		r.mu.Lock()
		c.channels[payload.(*protocol.ChannelPayload).Channel] = true
		r.mu.Unlock()

	case protocol.Unsubscribe:
		r.mu.Lock()
		delete(c.channels, payload.(*protocol.ChannelPayload).Channel)
		r.mu.Unlock()

	case protocol.Heartbeat:
		r.mu.Lock()
		r.heartbeats[c.userID]++
		r.mu.Unlock()

	case protocol.PresenceJoined, protocol.PresenceUpdate, protocol.PresenceLocation,
		protocol.PresenceLeft, protocol.PresenceTypingStart, protocol.PresenceTypingStop:
		r.broadcast(msg, "", c.userID, false)

	case protocol.SessionJoin:
		join := payload.(*protocol.JoinPayload)
		r.mu.Lock()
		c.user = join.User
		members := r.channelMembersLocked(msg.Channel, c.userID)
		r.mu.Unlock()

		// Existing members learn about the joiner; the joiner learns about
		// each existing member.
		joined, _ := protocol.NewMessage(protocol.SessionParticipantJoined, msg.Channel,
			&protocol.ParticipantJoinedPayload{User: join.User, Role: join.Role}, c.userID)
		r.broadcast(joined, msg.Channel, c.userID, false)

		for _, m := range members {
			existing, _ := protocol.NewMessage(protocol.SessionParticipantJoined, msg.Channel,
				&protocol.ParticipantJoinedPayload{User: m.user, Role: models.RoleEditor}, m.userID)
			c.write(existing)
		}

	case protocol.SessionLeave:
		left, _ := protocol.NewMessage(protocol.SessionParticipantLeft, msg.Channel,
			&protocol.ParticipantLeftPayload{UserID: c.userID}, c.userID)
		r.broadcast(left, msg.Channel, c.userID, false)

	case protocol.CursorMove:
		moved, _ := protocol.NewMessage(protocol.SessionCursorMoved, msg.Channel,
			payload.(*protocol.CursorPayload), c.userID)
		r.broadcast(moved, msg.Channel, c.userID, false)

	case protocol.SelectionChange:
		changed, _ := protocol.NewMessage(protocol.SessionSelectionChanged, msg.Channel,
			payload.(*protocol.SelectionPayload), c.userID)
		r.broadcast(changed, msg.Channel, c.userID, false)

	case protocol.ChangeApply:
		change := payload.(*protocol.ChangePayload).Change
		r.mu.Lock()
		r.versions[msg.Channel]++
		change.Version = r.versions[msg.Channel]
		r.mu.Unlock()
		if change.ID == "" {
			change.ID = uuid.NewString()
		}
		applied, _ := protocol.NewMessage(protocol.ChangeApplied, msg.Channel,
			&protocol.ChangePayload{Change: change}, c.userID)
		r.broadcast(applied, msg.Channel, c.userID, true)

	case protocol.CommentAdd:
		comment := payload.(*protocol.CommentPayload).Comment
		if comment.ID == "" {
			comment.ID = uuid.NewString()
		}
		added, _ := protocol.NewMessage(protocol.CommentAdded, msg.Channel,
			&protocol.CommentPayload{Comment: comment}, c.userID)
		r.broadcast(added, msg.Channel, c.userID, true)

	case protocol.CommentResolve:
		resolved, _ := protocol.NewMessage(protocol.CommentResolved, msg.Channel,
			payload.(*protocol.CommentResolvePayload), c.userID)
		r.broadcast(resolved, msg.Channel, c.userID, true)

	case protocol.LockAcquire:
		acquired, _ := protocol.NewMessage(protocol.LockAcquired, msg.Channel,
			payload.(*protocol.LockPayload), c.userID)
		r.broadcast(acquired, msg.Channel, c.userID, false)

	case protocol.LockRelease:
		released, _ := protocol.NewMessage(protocol.LockReleased, msg.Channel,
			payload.(*protocol.LockReleasePayload), c.userID)
		r.broadcast(released, msg.Channel, c.userID, false)

	case protocol.ConflictResolve:
		// A production relay would arbitrate; the fixture just forwards the
		// resolution to the other members.
		r.broadcast(msg, msg.Channel, c.userID, false)
	}
}

// channelMembersLocked returns the clients subscribed to channel, excluding
// the given user. Callers hold r.mu.
func (r *Relay) channelMembersLocked(channel, excludeUserID string) []*client {
	var out []*client
	for _, c := range r.clients {
		if c.userID == excludeUserID {
			continue
		}
		if c.channels[channel] {
			out = append(out, c)
		}
	}
	return out
}

// broadcast delivers msg to connected clients. With a channel set, only
// subscribers receive it; includeSender controls whether the sender gets its
// own echo (version-bearing events do, peer-state events do not).
func (r *Relay) broadcast(msg *protocol.Message, channel, senderID string, includeSender bool) {
	r.mu.Lock()
	var targets []*client
	for _, c := range r.clients {
		if c.userID == senderID && !includeSender {
			continue
		}
		if channel != "" && !c.channels[channel] {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.write(msg)
	}
}
