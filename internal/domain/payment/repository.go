package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// TransactionStore defines the interface for transaction and refund persistence.
// Implementations return copies and bump Version on every successful write.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	// GetTransaction returns the transaction or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// CompareAndSwapTransaction returns apperrors.ErrVersionConflict when the
	// stored version differs from expectedVersion.
	CompareAndSwapTransaction(ctx context.Context, tx *Transaction, expectedVersion int64) error
	CountTransactions(ctx context.Context) (int64, error)
	// ListProcessingTransactions returns up to limit transactions awaiting settlement.
	ListProcessingTransactions(ctx context.Context, limit int) ([]*Transaction, error)

	CreateRefund(ctx context.Context, refund *Refund) error
	// GetRefund returns the refund or ErrRefundNotFound.
	GetRefund(ctx context.Context, id uuid.UUID) (*Refund, error)
	CompareAndSwapRefund(ctx context.Context, refund *Refund, expectedVersion int64) error
	// ListProcessingRefunds returns up to limit refunds awaiting settlement.
	ListProcessingRefunds(ctx context.Context, limit int) ([]*Refund, error)
}

const recoveryBatchSize = 1000

const maxUpdateAttempts = 16

// UpdateTransaction applies mutate to the latest stored copy and writes it back
// with a compare-and-swap, re-reading on version conflicts.
func UpdateTransaction(ctx context.Context, store TransactionStore, id uuid.UUID, mutate func(*Transaction) error) (*Transaction, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := store.GetTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := current.Version
		if err := mutate(current); err != nil {
			return nil, err
		}
		err = store.CompareAndSwapTransaction(ctx, current, expected)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update transaction %s: %w", id, apperrors.ErrVersionConflict)
}

// UpdateRefund is UpdateTransaction for refunds.
func UpdateRefund(ctx context.Context, store TransactionStore, id uuid.UUID, mutate func(*Refund) error) (*Refund, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := store.GetRefund(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := current.Version
		if err := mutate(current); err != nil {
			return nil, err
		}
		err = store.CompareAndSwapRefund(ctx, current, expected)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update refund %s: %w", id, apperrors.ErrVersionConflict)
}
