package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/payment"
	"gorm.io/gorm"
)

// TransactionStore implements payment.TransactionStore.
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore creates a new transaction store.
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

var _ payment.TransactionStore = (*TransactionStore)(nil)

// --- Transaction Operations ---

func (s *TransactionStore) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	ent, err := FromDomainTransaction(tx)
	if err != nil {
		return err
	}
	ent.Version = 1
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	tx.Version = 1
	return nil
}

func (s *TransactionStore) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	var ent TransactionEntity
	err := s.db.WithContext(ctx).First(&ent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return ent.ToDomain()
}

func (s *TransactionStore) CompareAndSwapTransaction(ctx context.Context, tx *payment.Transaction, expectedVersion int64) error {
	ent, err := FromDomainTransaction(tx)
	if err != nil {
		return err
	}
	ent.Version = expectedVersion + 1
	if err := versionedUpdate(ctx, s.db, &TransactionEntity{}, ent, tx.ID, expectedVersion, payment.ErrTransactionNotFound); err != nil {
		return err
	}
	tx.Version = ent.Version
	return nil
}

func (s *TransactionStore) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&TransactionEntity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *TransactionStore) ListProcessingTransactions(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	var entities []*TransactionEntity
	err := s.db.WithContext(ctx).
		Where("status = ?", payment.StatusProcessing.String()).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list processing transactions: %w", err)
	}

	txs := make([]*payment.Transaction, 0, len(entities))
	for _, ent := range entities {
		tx, err := ent.ToDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// --- Refund Operations ---

func (s *TransactionStore) CreateRefund(ctx context.Context, refund *payment.Refund) error {
	ent := FromDomainRefund(refund)
	ent.Version = 1
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	refund.Version = 1
	return nil
}

func (s *TransactionStore) GetRefund(ctx context.Context, id uuid.UUID) (*payment.Refund, error) {
	var ent RefundEntity
	err := s.db.WithContext(ctx).First(&ent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrRefundNotFound
		}
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return ent.ToDomain(), nil
}

func (s *TransactionStore) CompareAndSwapRefund(ctx context.Context, refund *payment.Refund, expectedVersion int64) error {
	ent := FromDomainRefund(refund)
	ent.Version = expectedVersion + 1
	if err := versionedUpdate(ctx, s.db, &RefundEntity{}, ent, refund.ID, expectedVersion, payment.ErrRefundNotFound); err != nil {
		return err
	}
	refund.Version = ent.Version
	return nil
}

func (s *TransactionStore) ListProcessingRefunds(ctx context.Context, limit int) ([]*payment.Refund, error) {
	var entities []*RefundEntity
	err := s.db.WithContext(ctx).
		Where("status = ?", payment.RefundStatusProcessing.String()).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("list processing refunds: %w", err)
	}

	refunds := make([]*payment.Refund, len(entities))
	for i, ent := range entities {
		refunds[i] = ent.ToDomain()
	}
	return refunds, nil
}
