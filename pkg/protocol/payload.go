package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencrm/collab.go/pkg/models"
)

// ErrUnknownType is returned by DecodePayload for a type tag outside the
// engine's protocol. Such frames are ignored by the internal dispatch switch
// but still reach external subscribers.
var ErrUnknownType = errors.New("protocol: unknown message type")

// PresencePayload travels on presence:joined, presence:update and
// presence:location frames.
type PresencePayload struct {
	Status        models.PresenceStatus `json:"status,omitempty"`
	StatusMessage string                `json:"statusMessage,omitempty"`
	Location      string                `json:"location,omitempty"`
}

// TypingPayload travels on presence:typing_start and presence:typing_stop.
type TypingPayload struct {
	FieldPath string `json:"fieldPath"`
}

// JoinPayload is the session:join intent.
type JoinPayload struct {
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	User       models.User            `json:"user"`
	Role       models.ParticipantRole `json:"role"`
}

// LeavePayload is the session:leave intent.
type LeavePayload struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

// ParticipantJoinedPayload is the session:participant_joined event.
type ParticipantJoinedPayload struct {
	User models.User            `json:"user"`
	Role models.ParticipantRole `json:"role"`
}

// ParticipantLeftPayload is the session:participant_left event.
type ParticipantLeftPayload struct {
	UserID string `json:"userId"`
}

// CursorPayload travels on cursor:move and session:cursor_moved.
type CursorPayload struct {
	Cursor models.CursorPosition `json:"cursor"`
}

// SelectionPayload travels on selection:change and session:selection_changed.
// A nil Selection clears the sender's selection.
type SelectionPayload struct {
	Selection *models.SelectionRange `json:"selection"`
}

// ChangePayload travels on change:apply (version unset, assigned by the
// server) and change:applied (authoritative version set).
type ChangePayload struct {
	Change models.Change `json:"change"`
}

// ConflictPayload is the change:conflict_resolved event. It carries the two
// colliding changes plus the server's resolution metadata, if any.
type ConflictPayload struct {
	ConflictID    string        `json:"conflictId"`
	LocalChange   models.Change `json:"localChange"`
	RemoteChange  models.Change `json:"remoteChange"`
	Resolution    string        `json:"resolution,omitempty"`
	ResolvedValue any           `json:"resolvedValue,omitempty"`
}

// ConflictResolvePayload is the conflict:resolve intent.
type ConflictResolvePayload struct {
	ConflictID    string `json:"conflictId"`
	ResolvedValue any    `json:"resolvedValue,omitempty"`
}

// CommentPayload travels on comment:add and comment:added.
type CommentPayload struct {
	Comment models.Comment `json:"comment"`
}

// CommentResolvePayload travels on comment:resolve and comment:resolved.
type CommentResolvePayload struct {
	CommentID string `json:"commentId"`
}

// LockPayload travels on lock:acquire and lock:acquired.
type LockPayload struct {
	Lock models.Lock `json:"lock"`
}

// LockReleasePayload travels on lock:release and lock:released.
type LockReleasePayload struct {
	LockID    string `json:"lockId"`
	FieldPath string `json:"fieldPath,omitempty"`
}

// ChannelPayload travels on subscribe and unsubscribe.
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// HeartbeatPayload is the keepalive frame body.
type HeartbeatPayload struct {
	ConnectionID string `json:"connectionId,omitempty"`
}

// DecodePayload maps a message to the typed payload for its verb. The switch
// is the closed union over the protocol: adding a verb without a case here
// fails the exhaustiveness test in payload_test.go.
func DecodePayload(msg *Message) (any, error) {
	var (
		dest any
		err  error
	)

	decode := func(v any) (any, error) {
		if len(msg.Payload) == 0 {
			return v, nil
		}
		if uerr := json.Unmarshal(msg.Payload, v); uerr != nil {
			return nil, fmt.Errorf("protocol: decoding %s payload: %w", msg.Type, uerr)
		}
		return v, nil
	}

	switch msg.Type {
	case PresenceJoined, PresenceUpdate, PresenceLocation, PresenceLeft:
		dest, err = decode(&PresencePayload{})
	case PresenceTypingStart, PresenceTypingStop:
		dest, err = decode(&TypingPayload{})
	case SessionJoin:
		dest, err = decode(&JoinPayload{})
	case SessionLeave:
		dest, err = decode(&LeavePayload{})
	case SessionParticipantJoined:
		dest, err = decode(&ParticipantJoinedPayload{})
	case SessionParticipantLeft:
		dest, err = decode(&ParticipantLeftPayload{})
	case CursorMove, SessionCursorMoved:
		dest, err = decode(&CursorPayload{})
	case SelectionChange, SessionSelectionChanged:
		dest, err = decode(&SelectionPayload{})
	case ChangeApply, ChangeApplied:
		dest, err = decode(&ChangePayload{})
	case ChangeConflictResolved:
		dest, err = decode(&ConflictPayload{})
	case ConflictResolve:
		dest, err = decode(&ConflictResolvePayload{})
	case CommentAdd, CommentAdded:
		dest, err = decode(&CommentPayload{})
	case CommentResolve, CommentResolved:
		dest, err = decode(&CommentResolvePayload{})
	case LockAcquire, LockAcquired:
		dest, err = decode(&LockPayload{})
	case LockRelease, LockReleased:
		dest, err = decode(&LockReleasePayload{})
	case Subscribe, Unsubscribe:
		dest, err = decode(&ChannelPayload{})
	case Heartbeat:
		dest, err = decode(&HeartbeatPayload{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return dest, err
}
