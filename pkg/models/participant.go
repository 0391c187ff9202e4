package models

import "time"

// ParticipantRole is what a participant is allowed to do within a session.
type ParticipantRole string

const (
	RoleOwner     ParticipantRole = "owner"
	RoleEditor    ParticipantRole = "editor"
	RoleCommenter ParticipantRole = "commenter"
	RoleViewer    ParticipantRole = "viewer"
)

// ParticipantStatus is the liveness of a participant's connection,
// as declared by inbound frames.
type ParticipantStatus string

const (
	ParticipantActive       ParticipantStatus = "active"
	ParticipantIdle         ParticipantStatus = "idle"
	ParticipantAway         ParticipantStatus = "away"
	ParticipantDisconnected ParticipantStatus = "disconnected"
)

// CursorPosition is a caret location within a field of the edited entity.
type CursorPosition struct {
	FieldPath string `json:"fieldPath"`
	Offset    int    `json:"offset"`
}

// SelectionRange is a text selection within a field of the edited entity.
type SelectionRange struct {
	FieldPath string `json:"fieldPath"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Participant is a user's membership in one collaboration session,
// including the live cursor/selection that remote peers see.
type Participant struct {
	User      User              `json:"user"`
	Role      ParticipantRole   `json:"role"`
	Status    ParticipantStatus `json:"status"`
	Cursor    *CursorPosition   `json:"cursor,omitempty"`
	Selection *SelectionRange   `json:"selection,omitempty"`
	Color     string            `json:"color"`
	JoinedAt  time.Time         `json:"joinedAt"`
}
