package collab

import "errors"

var (
	// ErrNoSession is returned by every session-scoped operation invoked
	// without an active session. This is the single signaling convention for
	// the condition; no operation reports it through a nil result instead.
	ErrNoSession = errors.New("collab: no active session")

	// ErrFieldLocked is returned by AcquireLock when another user already
	// holds a live exclusive lock covering the field.
	ErrFieldLocked = errors.New("collab: field is locked by another user")

	// ErrUnknownConflict is returned by ResolveConflict for an id that is not
	// in the active conflict set.
	ErrUnknownConflict = errors.New("collab: unknown conflict")

	// ErrUnknownLock is returned by ReleaseLock for an id that is not held.
	ErrUnknownLock = errors.New("collab: unknown lock")

	// ErrUnknownComment is returned by ResolveComment for an id that does not
	// match any comment or reply.
	ErrUnknownComment = errors.New("collab: unknown comment")
)
