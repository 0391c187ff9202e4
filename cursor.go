package collab

import (
	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// UpdateCursor broadcasts the local user's caret position to the session.
// It mutates no local state: the local cursor is owned by the UI layer, and
// remote peers observe it through their own session coordinators.
func (e *Engine) UpdateCursor(cursor models.CursorPosition) error {
	e.mu.RLock()
	session := e.session
	e.mu.RUnlock()

	if session == nil {
		return ErrNoSession
	}

	return e.send(protocol.CursorMove, session.Channel(), &protocol.CursorPayload{Cursor: cursor})
}

// UpdateSelection broadcasts the local user's selection. A nil selection
// clears it for remote peers.
func (e *Engine) UpdateSelection(selection *models.SelectionRange) error {
	e.mu.RLock()
	session := e.session
	e.mu.RUnlock()

	if session == nil {
		return ErrNoSession
	}

	return e.send(protocol.SelectionChange, session.Channel(), &protocol.SelectionPayload{Selection: selection})
}
