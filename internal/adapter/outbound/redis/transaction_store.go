package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uniedit/checkout/internal/domain/payment"
)

// TransactionStore keeps transactions and refunds in Redis. Records awaiting
// settlement are tracked in sets for recovery after a restart.
type TransactionStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewTransactionStore creates a transaction store. An empty prefix uses DefaultPrefix.
func NewTransactionStore(client goredis.UniversalClient, prefix string) *TransactionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &TransactionStore{client: client, prefix: prefix}
}

var _ payment.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) txKey(id uuid.UUID) string {
	return s.prefix + ":transaction:" + id.String()
}

func (s *TransactionStore) refundKey(id uuid.UUID) string {
	return s.prefix + ":refund:" + id.String()
}

func (s *TransactionStore) txProcessingKey() string {
	return s.prefix + ":transactions:processing"
}

func (s *TransactionStore) refundProcessingKey() string {
	return s.prefix + ":refunds:processing"
}

func (s *TransactionStore) txCountKey() string {
	return s.prefix + ":transactions:count"
}

func (s *TransactionStore) trackTransaction(ctx context.Context, tx *payment.Transaction) func(goredis.Pipeliner) {
	return func(pipe goredis.Pipeliner) {
		if tx.Status == payment.StatusProcessing {
			pipe.SAdd(ctx, s.txProcessingKey(), tx.ID.String())
			return
		}
		pipe.SRem(ctx, s.txProcessingKey(), tx.ID.String())
	}
}

func (s *TransactionStore) trackRefund(ctx context.Context, refund *payment.Refund) func(goredis.Pipeliner) {
	return func(pipe goredis.Pipeliner) {
		if refund.Status == payment.RefundStatusProcessing {
			pipe.SAdd(ctx, s.refundProcessingKey(), refund.ID.String())
			return
		}
		pipe.SRem(ctx, s.refundProcessingKey(), refund.ID.String())
	}
}

func (s *TransactionStore) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	track := s.trackTransaction(ctx, tx)
	err := create(ctx, s.client, s.txKey(tx.ID), tx, func(pipe goredis.Pipeliner) {
		track(pipe)
		pipe.Incr(ctx, s.txCountKey())
	})
	if err != nil {
		return err
	}
	tx.Version = 1
	return nil
}

func (s *TransactionStore) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	env, err := load[*payment.Transaction](ctx, s.client, s.txKey(id), payment.ErrTransactionNotFound)
	if err != nil {
		return nil, err
	}
	env.Record.Version = env.Version
	return env.Record, nil
}

func (s *TransactionStore) CompareAndSwapTransaction(ctx context.Context, tx *payment.Transaction, expectedVersion int64) error {
	err := compareAndSwap(ctx, s.client, s.txKey(tx.ID), tx, expectedVersion,
		payment.ErrTransactionNotFound, s.trackTransaction(ctx, tx))
	if err != nil {
		return err
	}
	tx.Version = expectedVersion + 1
	return nil
}

func (s *TransactionStore) CountTransactions(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.txCountKey()).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *TransactionStore) ListProcessingTransactions(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	ids, err := s.members(ctx, s.txProcessingKey(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]*payment.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.GetTransaction(ctx, id)
		if err != nil {
			continue
		}
		if tx.Status == payment.StatusProcessing {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *TransactionStore) CreateRefund(ctx context.Context, refund *payment.Refund) error {
	if err := create(ctx, s.client, s.refundKey(refund.ID), refund, s.trackRefund(ctx, refund)); err != nil {
		return err
	}
	refund.Version = 1
	return nil
}

func (s *TransactionStore) GetRefund(ctx context.Context, id uuid.UUID) (*payment.Refund, error) {
	env, err := load[*payment.Refund](ctx, s.client, s.refundKey(id), payment.ErrRefundNotFound)
	if err != nil {
		return nil, err
	}
	env.Record.Version = env.Version
	return env.Record, nil
}

func (s *TransactionStore) CompareAndSwapRefund(ctx context.Context, refund *payment.Refund, expectedVersion int64) error {
	err := compareAndSwap(ctx, s.client, s.refundKey(refund.ID), refund, expectedVersion,
		payment.ErrRefundNotFound, s.trackRefund(ctx, refund))
	if err != nil {
		return err
	}
	refund.Version = expectedVersion + 1
	return nil
}

func (s *TransactionStore) ListProcessingRefunds(ctx context.Context, limit int) ([]*payment.Refund, error) {
	ids, err := s.members(ctx, s.refundProcessingKey(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]*payment.Refund, 0, len(ids))
	for _, id := range ids {
		refund, err := s.GetRefund(ctx, id)
		if err != nil {
			continue
		}
		if refund.Status == payment.RefundStatusProcessing {
			out = append(out, refund)
		}
	}
	return out, nil
}

func (s *TransactionStore) members(ctx context.Context, key string, limit int) ([]uuid.UUID, error) {
	raw, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", key, err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}
