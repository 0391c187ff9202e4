package collab

import (
	"errors"
	"time"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// JoinSession enters the collaboration session for one entity. It subscribes
// to the session's channel, sends the join intent, and optimistically seeds
// a local session containing exactly the local user as the first, owner
// participant with the first palette color. The roster is reconciled as
// participant_joined frames arrive for other peers.
//
// Joining while another session is active leaves that session first.
func (e *Engine) JoinSession(entityType, entityID string) (*models.Session, error) {
	if entityType == "" || entityID == "" {
		return nil, errors.New("collab: entity type and id are required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.leaveLocked(); err != nil {
			return nil, err
		}
	}

	session := &models.Session{
		EntityType: entityType,
		EntityID:   entityID,
		Active:     true,
		Participants: []*models.Participant{{
			User:     e.localUser,
			Role:     models.RoleOwner,
			Status:   models.ParticipantActive,
			Color:    models.ColorForIndex(0),
			JoinedAt: time.Now().UTC(),
		}},
	}
	channel := session.Channel()

	if err := e.send(protocol.Subscribe, "", &protocol.ChannelPayload{Channel: channel}); err != nil {
		return nil, err
	}
	if err := e.send(protocol.SessionJoin, channel, &protocol.JoinPayload{
		EntityType: entityType,
		EntityID:   entityID,
		User:       e.localUser,
		Role:       models.RoleOwner,
	}); err != nil {
		return nil, err
	}

	e.session = session

	return e.sessionCopyLocked(), nil
}

// LeaveSession sends the leave intent, unsubscribes from the session
// channel, and clears the session roster along with the pending-changes
// queue, which belongs to the session being left. Presence is untouched.
func (e *Engine) LeaveSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return ErrNoSession
	}
	return e.leaveLocked()
}

func (e *Engine) leaveLocked() error {
	channel := e.session.Channel()

	if err := e.send(protocol.SessionLeave, channel, &protocol.LeavePayload{
		EntityType: e.session.EntityType,
		EntityID:   e.session.EntityID,
	}); err != nil {
		return err
	}
	if err := e.send(protocol.Unsubscribe, "", &protocol.ChannelPayload{Channel: channel}); err != nil {
		return err
	}

	e.session = nil
	e.pending = nil
	// The version counter is scoped to the session being left; the next
	// session starts counting from zero again.
	e.version = 0

	return nil
}

// Session returns a copy of the current session, or nil when not in one.
func (e *Engine) Session() *models.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil
	}
	return e.sessionCopyLocked()
}

// Participants returns a copy of the current roster, in join order.
func (e *Engine) Participants() []models.Participant {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil
	}

	out := make([]models.Participant, 0, len(e.session.Participants))
	for _, p := range e.session.Participants {
		out = append(out, copyParticipant(p))
	}
	return out
}

func (e *Engine) sessionCopyLocked() *models.Session {
	cp := &models.Session{
		EntityType: e.session.EntityType,
		EntityID:   e.session.EntityID,
		Active:     e.session.Active,
	}
	for _, p := range e.session.Participants {
		pc := copyParticipant(p)
		cp.Participants = append(cp.Participants, &pc)
	}
	return cp
}

func copyParticipant(p *models.Participant) models.Participant {
	cp := *p
	if p.Cursor != nil {
		c := *p.Cursor
		cp.Cursor = &c
	}
	if p.Selection != nil {
		s := *p.Selection
		cp.Selection = &s
	}
	return cp
}

// forSession filters frames to the active session's channel. Frames with an
// empty channel are accepted for compatibility with relays that only route
// by subscription.
func (e *Engine) forSession(msg *protocol.Message) bool {
	if e.session == nil {
		return false
	}
	return msg.Channel == "" || msg.Channel == e.session.Channel()
}

func (e *Engine) applyParticipantJoined(msg *protocol.Message, payload *protocol.ParticipantJoinedPayload) {
	if !e.forSession(msg) || payload.User.ID == "" {
		return
	}
	if e.session.Participant(payload.User.ID) != nil {
		return
	}

	role := payload.Role
	if role == "" {
		role = models.RoleEditor
	}
	joinedAt := msg.Timestamp
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	// Color by roster size at insertion time keeps assignment deterministic
	// given join order.
	e.session.Participants = append(e.session.Participants, &models.Participant{
		User:     payload.User,
		Role:     role,
		Status:   models.ParticipantActive,
		Color:    models.ColorForIndex(len(e.session.Participants)),
		JoinedAt: joinedAt,
	})
}

func (e *Engine) applyParticipantLeft(msg *protocol.Message, payload *protocol.ParticipantLeftPayload) {
	if !e.forSession(msg) {
		return
	}

	userID := payload.UserID
	if userID == "" {
		userID = msg.SenderID
	}

	for i, p := range e.session.Participants {
		if p.User.ID == userID {
			e.session.Participants = append(e.session.Participants[:i], e.session.Participants[i+1:]...)
			return
		}
	}
}

func (e *Engine) applyCursorMoved(msg *protocol.Message, payload *protocol.CursorPayload) {
	// The local cursor is owned by the UI layer; applying our own echo
	// would fight it.
	if msg.SenderID == e.localUser.ID || !e.forSession(msg) {
		return
	}

	if p := e.session.Participant(msg.SenderID); p != nil {
		cursor := payload.Cursor
		p.Cursor = &cursor
	}
}

func (e *Engine) applySelectionChanged(msg *protocol.Message, payload *protocol.SelectionPayload) {
	if msg.SenderID == e.localUser.ID || !e.forSession(msg) {
		return
	}

	if p := e.session.Participant(msg.SenderID); p != nil {
		p.Selection = payload.Selection
	}
}
