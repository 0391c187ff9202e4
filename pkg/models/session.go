package models

import "fmt"

// Session is one collaborative editing scope, bound to a single entity such
// as an opportunity or a document. Exactly one session is current per client
// at a time; it is created on join and torn down on leave.
type Session struct {
	EntityType   string         `json:"entityType"`
	EntityID     string         `json:"entityId"`
	Participants []*Participant `json:"participants"`
	Active       bool           `json:"active"`
}

// Channel returns the broadcast channel name the session's frames travel on.
func (s *Session) Channel() string {
	return fmt.Sprintf("session:%s:%s", s.EntityType, s.EntityID)
}

// Participant returns the roster entry for the given user id, or nil.
func (s *Session) Participant(userID string) *Participant {
	for _, p := range s.Participants {
		if p.User.ID == userID {
			return p
		}
	}
	return nil
}
