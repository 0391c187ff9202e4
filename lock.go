package collab

import (
	"time"

	"github.com/google/uuid"

	"github.com/opencrm/collab.go/pkg/models"
	"github.com/opencrm/collab.go/pkg/protocol"
)

// DefaultLockTTL bounds a lock's lifetime. TTL expiry is the sole liveness
// guarantee against a lock abandoned by a crashed or departed client.
const DefaultLockTTL = 30 * time.Minute

// AcquireLock claims an exclusive, TTL-bounded lock on a field and announces
// it. An empty fieldPath locks the whole entity. The lock is recorded
// locally without waiting for server confirmation.
//
// At most one live exclusive lock may exist per field: acquiring a field
// already locked by another user fails with ErrFieldLocked; re-acquiring a
// field the local user already holds returns the existing lock.
func (e *Engine) AcquireLock(fieldPath string) (*models.Lock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrNoSession
	}

	now := time.Now().UTC()
	for _, l := range e.locks {
		if l.Expired(now) {
			continue
		}
		// A whole-entity acquire collides with any live lock; a field acquire
		// collides with locks covering that field.
		if !l.Covers(fieldPath) && fieldPath != "" {
			continue
		}
		if l.UserID != e.localUser.ID {
			return nil, ErrFieldLocked
		}
		if l.FieldPath == fieldPath {
			held := *l
			return &held, nil
		}
	}

	lock := models.Lock{
		ID:         uuid.NewString(),
		FieldPath:  fieldPath,
		UserID:     e.localUser.ID,
		Type:       models.LockExclusive,
		AcquiredAt: now,
		ExpiresAt:  now.Add(e.lockTTL),
	}

	if err := e.send(protocol.LockAcquire, e.session.Channel(), &protocol.LockPayload{
		Lock: lock,
	}); err != nil {
		return nil, err
	}

	stored := lock
	e.locks[lock.ID] = &stored

	out := lock
	return &out, nil
}

// ReleaseLock drops a held lock locally and announces the release.
func (e *Engine) ReleaseLock(lockID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[lockID]
	if !ok {
		return ErrUnknownLock
	}

	var channel string
	if e.session != nil {
		channel = e.session.Channel()
	}

	if err := e.send(protocol.LockRelease, channel, &protocol.LockReleasePayload{
		LockID:    lockID,
		FieldPath: lock.FieldPath,
	}); err != nil {
		return err
	}

	delete(e.locks, lockID)
	return nil
}

// IsFieldLocked reports whether the field is locked by a user other than the
// local one. Whole-entity locks cover every field. Expired locks are treated
// as absent.
func (e *Engine) IsFieldLocked(fieldPath string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.foreignLockLocked(fieldPath) != nil
}

// FieldLockHolder returns the user holding a foreign lock covering the
// field, or nil when the field is unlocked (or locked only by the local
// user). The holder's profile is resolved from the session roster when
// present; otherwise only the id is known.
func (e *Engine) FieldLockHolder(fieldPath string) *models.User {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lock := e.foreignLockLocked(fieldPath)
	if lock == nil {
		return nil
	}

	if e.session != nil {
		if p := e.session.Participant(lock.UserID); p != nil {
			holder := p.User
			return &holder
		}
	}
	return &models.User{ID: lock.UserID}
}

// Locks returns a copy of the live lock set; expired entries are filtered.
func (e *Engine) Locks() []models.Lock {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := time.Now().UTC()
	out := make([]models.Lock, 0, len(e.locks))
	for _, l := range e.locks {
		if l.Expired(now) {
			continue
		}
		out = append(out, *l)
	}
	return out
}

func (e *Engine) foreignLockLocked(fieldPath string) *models.Lock {
	now := time.Now().UTC()
	for _, l := range e.locks {
		if l.Covers(fieldPath) && !l.Expired(now) && l.UserID != e.localUser.ID {
			return l
		}
	}
	return nil
}

func (e *Engine) applyLockAcquired(msg *protocol.Message, payload *protocol.LockPayload) {
	lock := payload.Lock
	if lock.ID == "" {
		return
	}
	if lock.UserID == "" {
		lock.UserID = msg.SenderID
	}

	e.locks[lock.ID] = &lock
}

func (e *Engine) applyLockReleased(payload *protocol.LockReleasePayload) {
	delete(e.locks, payload.LockID)
}
