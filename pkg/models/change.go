package models

import "time"

// ChangeType is the kind of edit a Change describes.
type ChangeType string

const (
	ChangeInsert  ChangeType = "insert"
	ChangeDelete  ChangeType = "delete"
	ChangeReplace ChangeType = "replace"
	ChangeMove    ChangeType = "move"
	ChangeFormat  ChangeType = "format"
)

// Change is a versioned, field-scoped edit record. Local changes are applied
// optimistically and stamped with the next session version; remote changes
// arrive through the wire and are queued for the consumer to fold into its
// own document state. The engine holds no document model itself.
type Change struct {
	ID        string     `json:"id,omitempty"`
	FieldPath string     `json:"fieldPath"`
	Type      ChangeType `json:"changeType"`
	OldValue  any        `json:"oldValue,omitempty"`
	NewValue  any        `json:"newValue,omitempty"`
	Position  *int       `json:"position,omitempty"`
	Length    *int       `json:"length,omitempty"`
	Version   int64      `json:"version,omitempty"`
	UserID    string     `json:"userId"`
	Timestamp time.Time  `json:"timestamp"`
}

// Conflict pairs a local change with a colliding remote change. A conflict
// stays in the active set until it is explicitly resolved.
type Conflict struct {
	ID            string    `json:"id"`
	LocalChange   Change    `json:"localChange"`
	RemoteChange  Change    `json:"remoteChange"`
	Resolution    string    `json:"resolution,omitempty"`
	ResolvedValue any       `json:"resolvedValue,omitempty"`
	RaisedAt      time.Time `json:"raisedAt"`
}
