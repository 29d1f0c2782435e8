package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uniedit/checkout/internal/domain/checkout"
)

// SessionStore keeps sessions in Redis. Initialized sessions are also indexed
// in a sorted set scored by expiry time so the sweeper can find them.
type SessionStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewSessionStore creates a session store. An empty prefix uses DefaultPrefix.
func NewSessionStore(client goredis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

var _ checkout.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) key(id uuid.UUID) string {
	return s.prefix + ":session:" + id.String()
}

func (s *SessionStore) expiryKey() string {
	return s.prefix + ":sessions:expiry"
}

func (s *SessionStore) countKey() string {
	return s.prefix + ":sessions:count"
}

// index keeps the expiry set in step with the session's status.
func (s *SessionStore) index(ctx context.Context, session *checkout.Session) func(goredis.Pipeliner) {
	return func(pipe goredis.Pipeliner) {
		if session.Status == checkout.StatusInitialized {
			pipe.ZAdd(ctx, s.expiryKey(), goredis.Z{
				Score:  float64(session.ExpiresAt.UnixMilli()),
				Member: session.ID.String(),
			})
			return
		}
		pipe.ZRem(ctx, s.expiryKey(), session.ID.String())
	}
}

func (s *SessionStore) Create(ctx context.Context, session *checkout.Session) error {
	index := s.index(ctx, session)
	err := create(ctx, s.client, s.key(session.ID), session, func(pipe goredis.Pipeliner) {
		index(pipe)
		pipe.Incr(ctx, s.countKey())
	})
	if err != nil {
		return err
	}
	session.Version = 1
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	env, err := load[*checkout.Session](ctx, s.client, s.key(id), checkout.ErrSessionNotFound)
	if err != nil {
		return nil, err
	}
	env.Record.Version = env.Version
	return env.Record, nil
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, session *checkout.Session, expectedVersion int64) error {
	err := compareAndSwap(ctx, s.client, s.key(session.ID), session, expectedVersion,
		checkout.ErrSessionNotFound, s.index(ctx, session))
	if err != nil {
		return err
	}
	session.Version = expectedVersion + 1
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*checkout.Session, error) {
	rangeBy := &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("range expiry index: %w", err)
	}

	out := make([]*checkout.Session, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		session, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if session.Status == checkout.StatusInitialized && session.IsPastExpiry(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *SessionStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.countKey()).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return n, err
}
