package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"gorm.io/gorm"
)

// SessionStore implements checkout.SessionStore.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a new session store.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

var _ checkout.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, session *checkout.Session) error {
	ent, err := FromDomainSession(session)
	if err != nil {
		return err
	}
	ent.Version = 1
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Version = 1
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	var ent SessionEntity
	err := s.db.WithContext(ctx).First(&ent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return ent.ToDomain()
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, session *checkout.Session, expectedVersion int64) error {
	ent, err := FromDomainSession(session)
	if err != nil {
		return err
	}
	ent.Version = expectedVersion + 1
	if err := versionedUpdate(ctx, s.db, &SessionEntity{}, ent, session.ID, expectedVersion, checkout.ErrSessionNotFound); err != nil {
		return err
	}
	session.Version = ent.Version
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*checkout.Session, error) {
	query := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", checkout.StatusInitialized.String(), now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entities []*SessionEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}

	sessions := make([]*checkout.Session, 0, len(entities))
	for _, ent := range entities {
		session, err := ent.ToDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *SessionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&SessionEntity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
