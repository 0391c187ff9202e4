package collab

import (
	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// SetStatus announces the local user's availability, with an optional status
// message. The connection already announces "online" on open; this is for
// the busy/away/dnd transitions afterwards.
func (e *Engine) SetStatus(status models.PresenceStatus, message string) error {
	return e.send(protocol.PresenceUpdate, "", &protocol.PresencePayload{
		Status:        status,
		StatusMessage: message,
	})
}

// UpdateLocation announces the page or record the local user is viewing.
func (e *Engine) UpdateLocation(location string) error {
	return e.send(protocol.PresenceLocation, "", &protocol.PresencePayload{
		Location: location,
	})
}

// StartTyping announces that the local user started typing into a field.
func (e *Engine) StartTyping(fieldPath string) error {
	return e.send(protocol.PresenceTypingStart, "", &protocol.TypingPayload{FieldPath: fieldPath})
}

// StopTyping announces that the local user stopped typing.
func (e *Engine) StopTyping(fieldPath string) error {
	return e.send(protocol.PresenceTypingStop, "", &protocol.TypingPayload{FieldPath: fieldPath})
}

// Presence returns a copy of the presence map, keyed by user id.
func (e *Engine) Presence() map[string]models.PresenceData {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]models.PresenceData, len(e.presence))
	for id, p := range e.presence {
		out[id] = *p
	}
	return out
}

// PresenceOf returns one user's presence, if known.
func (e *Engine) PresenceOf(userID string) (models.PresenceData, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.presence[userID]
	if !ok {
		return models.PresenceData{}, false
	}
	return *p, true
}

// TypingIn returns who is currently typing into the given field.
func (e *Engine) TypingIn(fieldPath string) []models.TypingState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []models.TypingState
	for _, t := range e.typing {
		if t.FieldPath == fieldPath {
			out = append(out, *t)
		}
	}
	return out
}

// The presence tracker strictly mirrors what frames declare: entries are
// upserted on joined/update/location, removed on left, and never aged out
// or inferred offline locally.

func (e *Engine) applyPresenceUpsert(msg *protocol.Message, payload *protocol.PresencePayload) {
	if msg.SenderID == "" {
		return
	}

	p, ok := e.presence[msg.SenderID]
	if !ok {
		p = &models.PresenceData{
			UserID: msg.SenderID,
			Status: models.StatusOnline,
		}
		e.presence[msg.SenderID] = p
	}

	if msg.Type == protocol.PresenceLocation {
		p.Location = payload.Location
	} else {
		if payload.Status != "" {
			p.Status = payload.Status
		}
		p.StatusMessage = payload.StatusMessage
		if payload.Location != "" {
			p.Location = payload.Location
		}
	}
	p.LastSeen = msg.Timestamp
}

func (e *Engine) applyPresenceLeft(msg *protocol.Message) {
	delete(e.presence, msg.SenderID)
	delete(e.typing, msg.SenderID)
}

func (e *Engine) applyTypingStart(msg *protocol.Message, payload *protocol.TypingPayload) {
	if msg.SenderID == "" {
		return
	}
	e.typing[msg.SenderID] = &models.TypingState{
		UserID:    msg.SenderID,
		FieldPath: payload.FieldPath,
	}
}

func (e *Engine) applyTypingStop(msg *protocol.Message) {
	delete(e.typing, msg.SenderID)
}
