package models

import "time"

// PresenceStatus is the availability a user declares for themselves.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusBusy    PresenceStatus = "busy"
	StatusAway    PresenceStatus = "away"
	StatusDND     PresenceStatus = "dnd"
	StatusOffline PresenceStatus = "offline"
)

// PresenceData is one user's live status, independent of any session.
// It is overwritten wholesale on every presence frame and removed when the
// user announces they left.
type PresenceData struct {
	UserID        string         `json:"userId"`
	Status        PresenceStatus `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Location      string         `json:"location,omitempty"`
	LastSeen      time.Time      `json:"lastSeen"`
}

// TypingState records that a user is typing into a specific field.
// Typing is tracked separately from PresenceData so it can be queried
// per field without touching the main presence map.
type TypingState struct {
	UserID    string `json:"userId"`
	FieldPath string `json:"fieldPath"`
}
