package models

import "time"

// LockType is the sharing mode of a field lock. The engine itself only ever
// acquires exclusive locks; shared and intent locks exist so that server-side
// policies can be mirrored faithfully.
type LockType string

const (
	LockExclusive LockType = "exclusive"
	LockShared    LockType = "shared"
	LockIntent    LockType = "intent"
)

// Lock is an advisory, TTL-bounded claim on a field that serializes
// concurrent edits. A lock with an empty FieldPath covers the whole entity.
// At most one exclusive lock may be held per field path at a time; TTL expiry
// is the sole liveness guarantee against an abandoned lock.
type Lock struct {
	ID         string    `json:"id"`
	FieldPath  string    `json:"fieldPath"`
	UserID     string    `json:"userId"`
	Type       LockType  `json:"lockType"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Covers reports whether the lock applies to the given field path,
// either by exact match or because it is a whole-entity lock.
func (l *Lock) Covers(fieldPath string) bool {
	return l.FieldPath == "" || l.FieldPath == fieldPath
}

// Expired reports whether the lock's TTL has elapsed at the given instant.
// Expired locks are treated as absent by every engine query.
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && !now.Before(l.ExpiresAt)
}
