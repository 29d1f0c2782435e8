package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"github.com/uniedit/checkout/internal/infra/events"
	"go.uber.org/zap"
)

// DefaultRefundReason is used when the caller gives none.
const DefaultRefundReason = "Customer request"

// RefundInput is the input for RequestRefund. A nil Amount refunds the full
// transaction amount.
type RefundInput struct {
	TransactionID uuid.UUID
	Amount        *decimal.Decimal
	Reason        string
}

// RefundResult is returned once a refund has been accepted.
type RefundResult struct {
	Refund      *Refund
	Transaction *Transaction
}

// RefundProcessor issues and settles refunds of completed transactions.
type RefundProcessor struct {
	txs       TransactionStore
	scheduler Scheduler
	config    Config
	options
	logger *zap.Logger
}

// NewRefundProcessor creates a new refund processor.
func NewRefundProcessor(txs TransactionStore, scheduler Scheduler, config Config, logger *zap.Logger, opts ...Option) *RefundProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RefundProcessor{
		txs:       txs,
		scheduler: scheduler,
		config:    config,
		options:   o,
		logger:    logger.Named("refund"),
	}
}

// RequestRefund claims a completed transaction for a refund and schedules the
// refund's settlement. The transaction reads as refunded as soon as this
// returns; the refund itself completes later. A transaction is refunded at
// most once.
func (r *RefundProcessor) RequestRefund(ctx context.Context, in RefundInput) (*RefundResult, error) {
	tx, err := r.txs.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusCompleted {
		return nil, ErrTransactionNotRefundable
	}

	amount := tx.Amount
	if in.Amount != nil {
		amount = *in.Amount
	}
	if err := validateRefundAmount(amount, tx); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultRefundReason
	}

	writeCtx := context.WithoutCancel(ctx)

	refundID := uuid.New()
	var before *Transaction
	claimed, err := UpdateTransaction(writeCtx, r.txs, tx.ID, func(t *Transaction) error {
		before = t.Clone()
		return t.MarkRefunded(refundID, amount, r.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	refund := &Refund{
		ID:            refundID,
		TransactionID: tx.ID,
		Amount:        amount,
		Currency:      tx.Currency,
		Reason:        reason,
		Status:        RefundStatusProcessing,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.txs.CreateRefund(writeCtx, refund); err != nil {
		r.releaseClaim(writeCtx, before, refundID)
		return nil, fmt.Errorf("create refund: %w", err)
	}

	if err := r.scheduler.Schedule(JobSettleRefund, refundID, r.config.RefundDelay); err != nil {
		r.logger.Error("failed to schedule refund settlement",
			zap.String("refund_id", refundID.String()),
			zap.Error(err))
	}

	r.metrics.RefundRequested()
	r.publisher.Publish(RefundIssued{
		BaseEvent:     events.NewBaseEvent(EventRefundIssued, refundID, aggregateRefund),
		RefundID:      refundID,
		TransactionID: tx.ID,
		Amount:        amount,
		Currency:      tx.Currency,
		Reason:        reason,
	})
	r.logger.Info("refund issued",
		zap.String("refund_id", refundID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("amount", amount.String()))

	return &RefundResult{Refund: refund.Clone(), Transaction: claimed.Clone()}, nil
}

func validateRefundAmount(amount decimal.Decimal, tx *Transaction) error {
	switch {
	case !amount.IsPositive():
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidRefundAmount)
	case amount.GreaterThan(tx.Amount):
		return fmt.Errorf("%w: refund amount cannot exceed transaction amount", ErrInvalidRefundAmount)
	case !pricing.IsRepresentable(amount, tx.Currency):
		return fmt.Errorf("%w: %s has more precision than %s allows", ErrInvalidRefundAmount, amount, tx.Currency)
	}
	return nil
}

func (r *RefundProcessor) releaseClaim(ctx context.Context, before *Transaction, refundID uuid.UUID) {
	_, err := UpdateTransaction(ctx, r.txs, before.ID, func(t *Transaction) error {
		if t.RefundID == nil || *t.RefundID != refundID {
			return ErrInvalidTransition
		}
		version := t.Version
		*t = *before.Clone()
		t.Version = version
		return nil
	})
	if err != nil {
		r.logger.Error("failed to release refund claim",
			zap.String("transaction_id", before.ID.String()),
			zap.String("refund_id", refundID.String()),
			zap.Error(err))
	}
}

var errRefundSettled = errors.New("refund already settled")

// SettleRefund completes a processing refund. Completed refunds are left
// untouched.
func (r *RefundProcessor) SettleRefund(ctx context.Context, refundID uuid.UUID) error {
	refund, err := UpdateRefund(ctx, r.txs, refundID, func(ref *Refund) error {
		if !ref.MarkCompleted(r.now().UTC()) {
			return errRefundSettled
		}
		return nil
	})
	if errors.Is(err, errRefundSettled) {
		return nil
	}
	if err != nil {
		return err
	}

	r.metrics.RefundCompleted()
	r.publisher.Publish(RefundCompleted{
		BaseEvent:     events.NewBaseEvent(EventRefundCompleted, refund.ID, aggregateRefund),
		RefundID:      refund.ID,
		TransactionID: refund.TransactionID,
		Amount:        refund.Amount,
		Currency:      refund.Currency,
	})
	r.logger.Info("refund completed",
		zap.String("refund_id", refund.ID.String()),
		zap.String("transaction_id", refund.TransactionID.String()))

	return nil
}

// RecoverPending reschedules settlement of every refund left processing.
func (r *RefundProcessor) RecoverPending(ctx context.Context) (int, error) {
	refunds, err := r.txs.ListProcessingRefunds(ctx, recoveryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list processing refunds: %w", err)
	}
	for _, refund := range refunds {
		if err := r.scheduler.Schedule(JobSettleRefund, refund.ID, r.config.RefundDelay); err != nil {
			return 0, fmt.Errorf("schedule refund settlement of %s: %w", refund.ID, err)
		}
	}
	if len(refunds) > 0 {
		r.logger.Info("recovered pending refunds", zap.Int("count", len(refunds)))
	}
	return len(refunds), nil
}

// GetRefund returns a refund by ID.
func (r *RefundProcessor) GetRefund(ctx context.Context, refundID uuid.UUID) (*Refund, error) {
	return r.txs.GetRefund(ctx, refundID)
}
