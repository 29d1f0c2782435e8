// Package memory provides in-process stores. Every read and write copies the
// record, so callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/checkout"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// SessionStore is a mutex-protected map of sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*checkout.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*checkout.Session)}
}

var _ checkout.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(_ context.Context, session *checkout.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Get(_ context.Context, id uuid.UUID) (*checkout.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) CompareAndSwap(_ context.Context, session *checkout.Session, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return checkout.ErrSessionNotFound
	}
	if current.Version != expectedVersion {
		return apperrors.ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*checkout.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*checkout.Session
	for _, session := range s.sessions {
		if session.Status == checkout.StatusInitialized && session.IsPastExpiry(now) {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SessionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sessions)), nil
}
