package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// SessionStore defines the interface for session persistence.
// Implementations return copies; callers never share memory with the store.
type SessionStore interface {
	// Create inserts a new session and sets its Version.
	Create(ctx context.Context, session *Session) error

	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// CompareAndSwap replaces the stored session if its version still equals
	// expectedVersion, then bumps session.Version. It returns
	// apperrors.ErrVersionConflict when another writer got there first.
	CompareAndSwap(ctx context.Context, session *Session, expectedVersion int64) error

	// ListExpired returns up to limit initialized sessions whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Session, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int64, error)
}

const maxUpdateAttempts = 16

// Update applies mutate to the latest stored copy of the session and writes it
// back with a compare-and-swap, re-reading on version conflicts. mutate is
// re-run against each fresh copy and aborts the update by returning an error.
func Update(ctx context.Context, store SessionStore, id uuid.UUID, mutate func(*Session) error) (*Session, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := current.Version
		if err := mutate(current); err != nil {
			return nil, err
		}
		err = store.CompareAndSwap(ctx, current, expected)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update session %s: %w", id, apperrors.ErrVersionConflict)
}
