package collab

import (
	"time"

	"github.com/google/uuid"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// ChangeRequest describes one local edit to apply.
type ChangeRequest struct {
	FieldPath string
	Type      models.ChangeType
	OldValue  any
	NewValue  any
	Position  *int
	Length    *int
}

// ApplyChange applies a local edit optimistically: it transmits the
// change:apply intent, then synchronously returns a full Change stamped with
// a fresh id, the next session version, the local user, and the current
// time, incrementing the local version counter. It does not wait for server
// acknowledgment; the authoritative version arrives later on a
// change:applied frame.
func (e *Engine) ApplyChange(req ChangeRequest) (*models.Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrNoSession
	}

	outbound := models.Change{
		FieldPath: req.FieldPath,
		Type:      req.Type,
		OldValue:  req.OldValue,
		NewValue:  req.NewValue,
		Position:  req.Position,
		Length:    req.Length,
		UserID:    e.localUser.ID,
		Timestamp: time.Now().UTC(),
	}

	if err := e.send(protocol.ChangeApply, e.session.Channel(), &protocol.ChangePayload{
		Change: outbound,
	}); err != nil {
		return nil, err
	}

	full := outbound
	full.ID = uuid.NewString()
	full.Version = e.version + 1
	e.version++

	return &full, nil
}

// ResolveConflict asserts a resolution for an active conflict: it sends the
// resolution intent and removes the conflict from the local set. Resolution
// is optimistic, not negotiated.
func (e *Engine) ResolveConflict(conflictID string, resolvedValue any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.conflicts[conflictID]; !ok {
		return ErrUnknownConflict
	}

	var channel string
	if e.session != nil {
		channel = e.session.Channel()
	}

	if err := e.send(protocol.ConflictResolve, channel, &protocol.ConflictResolvePayload{
		ConflictID:    conflictID,
		ResolvedValue: resolvedValue,
	}); err != nil {
		return err
	}

	delete(e.conflicts, conflictID)
	return nil
}

// Version returns the current session version counter.
func (e *Engine) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// PendingChanges returns a copy of the queued remote changes. The engine
// holds no document model; folding these into document state is the
// consumer's job.
func (e *Engine) PendingChanges() []models.Change {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Change, len(e.pending))
	copy(out, e.pending)
	return out
}

// DrainPendingChanges returns the queued remote changes and clears the
// queue, so consumers can fold and acknowledge in one step.
func (e *Engine) DrainPendingChanges() []models.Change {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.pending
	e.pending = nil
	return out
}

// Conflicts returns a copy of the active conflict set.
func (e *Engine) Conflicts() []models.Conflict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Conflict, 0, len(e.conflicts))
	for _, c := range e.conflicts {
		out = append(out, *c)
	}
	return out
}

func (e *Engine) applyChangeApplied(msg *protocol.Message, payload *protocol.ChangePayload) {
	// Version and pending queue are session state; a change frame arriving
	// with no session (or for another session's channel) has nowhere to land.
	if !e.forSession(msg) {
		return
	}

	if payload.Change.Version > 0 {
		e.version = payload.Change.Version
	}

	if msg.SenderID != e.localUser.ID {
		e.pending = append(e.pending, payload.Change)
	}
}

func (e *Engine) applyConflictResolved(msg *protocol.Message, payload *protocol.ConflictPayload) {
	if payload.ConflictID == "" {
		return
	}

	raisedAt := msg.Timestamp
	if raisedAt.IsZero() {
		raisedAt = time.Now().UTC()
	}

	e.conflicts[payload.ConflictID] = &models.Conflict{
		ID:            payload.ConflictID,
		LocalChange:   payload.LocalChange,
		RemoteChange:  payload.RemoteChange,
		Resolution:    payload.Resolution,
		ResolvedValue: payload.ResolvedValue,
		RaisedAt:      raisedAt,
	}
}
