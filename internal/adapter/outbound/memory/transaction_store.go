package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/payment"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// TransactionStore keeps transactions and refunds in mutex-protected maps.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*payment.Transaction
	refunds      map[uuid.UUID]*payment.Refund
}

// NewTransactionStore creates an empty transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		transactions: make(map[uuid.UUID]*payment.Transaction),
		refunds:      make(map[uuid.UUID]*payment.Refund),
	}
}

var _ payment.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) CreateTransaction(_ context.Context, tx *payment.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	tx.Version = 1
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (s *TransactionStore) GetTransaction(_ context.Context, id uuid.UUID) (*payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, payment.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (s *TransactionStore) CompareAndSwapTransaction(_ context.Context, tx *payment.Transaction, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transactions[tx.ID]
	if !ok {
		return payment.ErrTransactionNotFound
	}
	if current.Version != expectedVersion {
		return apperrors.ErrVersionConflict
	}
	tx.Version = expectedVersion + 1
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (s *TransactionStore) CountTransactions(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.transactions)), nil
}

func (s *TransactionStore) ListProcessingTransactions(_ context.Context, limit int) ([]*payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*payment.Transaction
	for _, tx := range s.transactions {
		if tx.Status == payment.StatusProcessing {
			out = append(out, tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TransactionStore) CreateRefund(_ context.Context, refund *payment.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refunds[refund.ID]; ok {
		return fmt.Errorf("refund %s already exists", refund.ID)
	}
	refund.Version = 1
	s.refunds[refund.ID] = refund.Clone()
	return nil
}

func (s *TransactionStore) GetRefund(_ context.Context, id uuid.UUID) (*payment.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refund, ok := s.refunds[id]
	if !ok {
		return nil, payment.ErrRefundNotFound
	}
	return refund.Clone(), nil
}

func (s *TransactionStore) CompareAndSwapRefund(_ context.Context, refund *payment.Refund, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refunds[refund.ID]
	if !ok {
		return payment.ErrRefundNotFound
	}
	if current.Version != expectedVersion {
		return apperrors.ErrVersionConflict
	}
	refund.Version = expectedVersion + 1
	s.refunds[refund.ID] = refund.Clone()
	return nil
}

func (s *TransactionStore) ListProcessingRefunds(_ context.Context, limit int) ([]*payment.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*payment.Refund
	for _, refund := range s.refunds {
		if refund.Status == payment.RefundStatusProcessing {
			out = append(out, refund.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
