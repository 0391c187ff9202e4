// Package protocol defines the wire envelope and the closed set of verbs the
// collaboration engine speaks. Every frame that crosses the connection is a
// Message; every Message carries one of the MessageType tags below and a
// payload whose shape is fixed per verb family.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags a frame with its protocol verb.
type MessageType string

const (
	// Presence verbs. Keyed by the sender's user id; independent of sessions.
	PresenceJoined      MessageType = "presence:joined"
	PresenceUpdate      MessageType = "presence:update"
	PresenceLocation    MessageType = "presence:location"
	PresenceLeft        MessageType = "presence:left"
	PresenceTypingStart MessageType = "presence:typing_start"
	PresenceTypingStop  MessageType = "presence:typing_stop"

	// Session intents sent by clients.
	SessionJoin  MessageType = "session:join"
	SessionLeave MessageType = "session:leave"

	// Session events broadcast to the session channel.
	SessionParticipantJoined MessageType = "session:participant_joined"
	SessionParticipantLeft   MessageType = "session:participant_left"
	SessionCursorMoved       MessageType = "session:cursor_moved"
	SessionSelectionChanged  MessageType = "session:selection_changed"

	// Cursor/selection intents sent by clients.
	CursorMove      MessageType = "cursor:move"
	SelectionChange MessageType = "selection:change"

	// Change verbs. Apply is the client intent; applied is the broadcast
	// event carrying the authoritative version.
	ChangeApply            MessageType = "change:apply"
	ChangeApplied          MessageType = "change:applied"
	ChangeConflictResolved MessageType = "change:conflict_resolved"
	ConflictResolve        MessageType = "conflict:resolve"

	// Comment verbs.
	CommentAdd      MessageType = "comment:add"
	CommentAdded    MessageType = "comment:added"
	CommentResolve  MessageType = "comment:resolve"
	CommentResolved MessageType = "comment:resolved"

	// Lock verbs.
	LockAcquire  MessageType = "lock:acquire"
	LockRelease  MessageType = "lock:release"
	LockAcquired MessageType = "lock:acquired"
	LockReleased MessageType = "lock:released"

	// Channel management and keepalive.
	Subscribe   MessageType = "subscribe"
	Unsubscribe MessageType = "unsubscribe"
	Heartbeat   MessageType = "heartbeat"
)

// Message is the wire envelope. It is the only unit ever sent or received
// over the connection. Payload stays opaque at this layer; DecodePayload
// turns it into the typed struct for the message's verb.
type Message struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SenderID  string          `json:"senderId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds an envelope for the given verb, encoding the payload.
// A nil payload produces an empty-payload frame, which is valid for verbs
// like heartbeat.
func NewMessage(t MessageType, channel string, payload any, senderID string) (*Message, error) {
	msg := &Message{
		Type:      t,
		Channel:   channel,
		SenderID:  senderID,
		Timestamp: time.Now().UTC(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encoding %s payload: %w", t, err)
		}
		msg.Payload = data
	}

	return msg, nil
}
