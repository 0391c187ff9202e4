package collab

import (
	"errors"

	"github.com/opencrm/collab.go/pkg/protocol"
)

// dispatch is the single inbound path: every frame first updates the
// component matching its verb, then fans out to external subscribers for the
// exact type tag. Subscriber callbacks therefore observe post-update engine
// state. Unknown verbs skip the internal switch but still reach subscribers.
func (e *Engine) dispatch(msg *protocol.Message) {
	payload, err := protocol.DecodePayload(msg)
	switch {
	case err == nil:
		e.apply(msg, payload)
	case errors.Is(err, protocol.ErrUnknownType):
		// Not one of ours; external subscribers may still want it.
	default:
		e.logger.Error("dropping frame with malformed payload", "type", msg.Type, "error", err)
		return
	}

	e.emit(msg)
}

func (e *Engine) apply(msg *protocol.Message, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Type {
	case protocol.PresenceJoined, protocol.PresenceUpdate, protocol.PresenceLocation:
		e.applyPresenceUpsert(msg, payload.(*protocol.PresencePayload))
	case protocol.PresenceLeft:
		e.applyPresenceLeft(msg)
	case protocol.PresenceTypingStart:
		e.applyTypingStart(msg, payload.(*protocol.TypingPayload))
	case protocol.PresenceTypingStop:
		e.applyTypingStop(msg)
	case protocol.SessionParticipantJoined:
		e.applyParticipantJoined(msg, payload.(*protocol.ParticipantJoinedPayload))
	case protocol.SessionParticipantLeft:
		e.applyParticipantLeft(msg, payload.(*protocol.ParticipantLeftPayload))
	case protocol.SessionCursorMoved:
		e.applyCursorMoved(msg, payload.(*protocol.CursorPayload))
	case protocol.SessionSelectionChanged:
		e.applySelectionChanged(msg, payload.(*protocol.SelectionPayload))
	case protocol.ChangeApplied:
		e.applyChangeApplied(msg, payload.(*protocol.ChangePayload))
	case protocol.ChangeConflictResolved:
		e.applyConflictResolved(msg, payload.(*protocol.ConflictPayload))
	case protocol.CommentAdded:
		e.applyCommentAdded(msg, payload.(*protocol.CommentPayload))
	case protocol.CommentResolved:
		e.applyCommentResolved(msg, payload.(*protocol.CommentResolvePayload))
	case protocol.LockAcquired:
		e.applyLockAcquired(msg, payload.(*protocol.LockPayload))
	case protocol.LockReleased:
		e.applyLockReleased(payload.(*protocol.LockReleasePayload))
	default:
		// Intents (session:join, change:apply, ...) and heartbeats are
		// client-to-server verbs; an inbound copy carries no state for us.
	}
}
