package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"go.uber.org/zap"
)

// Config contains settlement timing.
type Config struct {
	PaymentDelay time.Duration
	RefundDelay  time.Duration
}

// DefaultConfig returns the default settlement delays.
func DefaultConfig() Config {
	return Config{
		PaymentDelay: 2 * time.Second,
		RefundDelay:  time.Second,
	}
}

// Settlement outcomes reported to metrics.
const (
	OutcomeApproved = "approved"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
)

// DefaultDeclineReason is recorded when a gateway declines without a reason.
const DefaultDeclineReason = "Payment declined by issuer"

// SubmitPaymentInput is the input for SubmitPayment.
type SubmitPaymentInput struct {
	SessionID      uuid.UUID
	Method         string
	Details        *PaymentDetails
	BillingAddress checkout.Address
}

// SubmitPaymentResult is returned once the payment is accepted for settlement.
type SubmitPaymentResult struct {
	TransactionID uuid.UUID
	Status        TransactionStatus
	Session       *checkout.Session
}

// Processor accepts payments against checkout sessions and settles them.
type Processor struct {
	sessions  checkout.SessionStore
	txs       TransactionStore
	gateway   SettlementGateway
	scheduler Scheduler
	config    Config
	options
	logger *zap.Logger

	// settling holds the IDs of transactions whose gateway call is in flight.
	settling sync.Map
}

// NewProcessor creates a new payment processor.
func NewProcessor(
	sessions checkout.SessionStore,
	txs TransactionStore,
	gateway SettlementGateway,
	scheduler Scheduler,
	config Config,
	logger *zap.Logger,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Processor{
		sessions:  sessions,
		txs:       txs,
		gateway:   gateway,
		scheduler: scheduler,
		config:    config,
		options:   o,
		logger:    logger.Named("payment"),
	}
}

// SubmitPayment claims an initialized session, records a processing
// transaction and schedules its settlement. At most one submission per session
// succeeds; every other concurrent caller gets ErrSessionNotPayable.
func (p *Processor) SubmitPayment(ctx context.Context, in SubmitPaymentInput) (*SubmitPaymentResult, error) {
	if in.SessionID == uuid.Nil || in.Method == "" {
		return nil, ErrMissingPaymentFields
	}

	session, err := p.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session.IsPastExpiry(p.now()) {
		return nil, checkout.ErrSessionExpired
	}
	if session.Status != checkout.StatusInitialized {
		return nil, checkout.ErrSessionNotPayable
	}
	method, ok := LookupMethod(in.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, in.Method)
	}

	// Once the claim is written it must be followed by the transaction or by
	// its release, whatever happens to the caller.
	writeCtx := context.WithoutCancel(ctx)

	txID := uuid.New()
	var before *checkout.Session
	claimed, err := checkout.Update(writeCtx, p.sessions, in.SessionID, func(s *checkout.Session) error {
		now := p.now()
		if s.IsPastExpiry(now) {
			return checkout.ErrSessionExpired
		}
		if s.Status != checkout.StatusInitialized {
			return checkout.ErrSessionNotPayable
		}
		before = s.Clone()
		return s.MarkProcessing(method.Type, txID, in.BillingAddress, now.UTC())
	})
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	amount := claimed.Pricing.Total
	tx := &Transaction{
		ID:             txID,
		SessionID:      claimed.ID,
		UserID:         claimed.UserID,
		Amount:         amount,
		Currency:       claimed.Pricing.Currency,
		Method:         method.Type,
		Details:        Redact(method.Type, in.Details),
		ProcessingFee:  pricing.Round(method.Fees.Fee(amount), claimed.Pricing.Currency),
		BillingAddress: claimed.BillingAddress.Clone(),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.TransitionTo(StatusProcessing, now); err != nil {
		return nil, err
	}

	if err := p.txs.CreateTransaction(writeCtx, tx); err != nil {
		p.releaseClaim(writeCtx, before, txID)
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if err := p.scheduler.Schedule(JobSettlePayment, txID, p.config.PaymentDelay); err != nil {
		// The transaction stays processing and can still be settled through Settle.
		p.logger.Error("failed to schedule settlement",
			zap.String("transaction_id", txID.String()),
			zap.Error(err))
	}

	p.metrics.PaymentSubmitted(method.Type)
	p.logger.Info("payment submitted",
		zap.String("transaction_id", txID.String()),
		zap.String("session_id", claimed.ID.String()),
		zap.String("method", method.Type),
		zap.String("amount", amount.String()))

	return &SubmitPaymentResult{
		TransactionID: txID,
		Status:        tx.Status,
		Session:       claimed.Clone(),
	}, nil
}

// releaseClaim restores the session to its pre-claim state after the
// transaction could not be recorded.
func (p *Processor) releaseClaim(ctx context.Context, before *checkout.Session, txID uuid.UUID) {
	_, err := checkout.Update(ctx, p.sessions, before.ID, func(s *checkout.Session) error {
		if s.TransactionID == nil || *s.TransactionID != txID || s.Status != checkout.StatusProcessing {
			return checkout.ErrInvalidTransition
		}
		version := s.Version
		*s = *before.Clone()
		s.Version = version
		return nil
	})
	if err != nil {
		p.logger.Error("failed to release session claim",
			zap.String("session_id", before.ID.String()),
			zap.String("transaction_id", txID.String()),
			zap.Error(err))
	}
}

var errAlreadySettled = errors.New("already settled")

// Settle obtains the gateway decision for a processing transaction and records
// it on the transaction and its session. Transactions that are already settled
// are left untouched, so Settle is safe to call more than once. A call that
// finds the same transaction mid-settlement in this process returns without
// contacting the gateway; across processes the gateway must treat the
// transaction ID as its idempotency key.
func (p *Processor) Settle(ctx context.Context, txID uuid.UUID) error {
	if _, busy := p.settling.LoadOrStore(txID, struct{}{}); busy {
		return nil
	}
	defer p.settling.Delete(txID)

	tx, err := p.txs.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if tx.Status != StatusProcessing {
		return nil
	}

	outcome := OutcomeApproved
	var authCode, reason string
	auth, err := p.gateway.Authorize(ctx, AuthorizationRequest{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Method:        tx.Method,
		Details:       tx.Details,
	})
	switch {
	case err != nil:
		outcome, reason = OutcomeError, err.Error()
	case auth.Approved:
		authCode = auth.Code
	default:
		outcome, reason = OutcomeDeclined, auth.DeclineReason
		if reason == "" {
			reason = DefaultDeclineReason
		}
	}

	// The decision is recorded even if the job deadline passed during the call.
	writeCtx := context.WithoutCancel(ctx)
	settled, err := UpdateTransaction(writeCtx, p.txs, txID, func(t *Transaction) error {
		if t.Status != StatusProcessing {
			return errAlreadySettled
		}
		now := p.now().UTC()
		if outcome == OutcomeApproved {
			return t.MarkCompleted(authCode, now)
		}
		return t.MarkFailed(reason, now)
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}

	p.mirrorOntoSession(writeCtx, settled)

	p.metrics.PaymentSettled(outcome)
	p.publisher.Publish(newSettlementEvent(settled))
	p.logger.Info("payment settled",
		zap.String("transaction_id", txID.String()),
		zap.String("status", settled.Status.String()),
		zap.String("gateway", p.gateway.Name()),
		zap.String("outcome", outcome))

	return nil
}

// mirrorOntoSession copies the settlement outcome onto a processing session.
// It still applies when the session's time window has passed meanwhile.
func (p *Processor) mirrorOntoSession(ctx context.Context, tx *Transaction) {
	target := checkout.StatusCompleted
	if tx.Status == StatusFailed {
		target = checkout.StatusFailed
	}
	_, err := checkout.Update(ctx, p.sessions, tx.SessionID, func(s *checkout.Session) error {
		if s.TransactionID == nil || *s.TransactionID != tx.ID {
			return checkout.ErrInvalidTransition
		}
		return s.TransitionTo(target, p.now().UTC())
	})
	if err != nil && !errors.Is(err, checkout.ErrInvalidTransition) {
		p.logger.Error("failed to update session after settlement",
			zap.String("session_id", tx.SessionID.String()),
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err))
	}
}

// RecoverPending reschedules settlement of every transaction left processing,
// for instance by a restart that dropped the scheduler's timers.
func (p *Processor) RecoverPending(ctx context.Context) (int, error) {
	txs, err := p.txs.ListProcessingTransactions(ctx, recoveryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list processing transactions: %w", err)
	}
	for _, tx := range txs {
		if err := p.scheduler.Schedule(JobSettlePayment, tx.ID, p.config.PaymentDelay); err != nil {
			return 0, fmt.Errorf("schedule settlement of %s: %w", tx.ID, err)
		}
	}
	if len(txs) > 0 {
		p.logger.Info("recovered pending settlements", zap.Int("count", len(txs)))
	}
	return len(txs), nil
}

// GetTransaction returns the full transaction record.
func (p *Processor) GetTransaction(ctx context.Context, txID uuid.UUID) (*Transaction, error) {
	return p.txs.GetTransaction(ctx, txID)
}

// GetTransactionStatus returns the status view of a transaction.
func (p *Processor) GetTransactionStatus(ctx context.Context, txID uuid.UUID) (*StatusSummary, error) {
	tx, err := p.txs.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	summary := tx.Summary()
	return &summary, nil
}

// CountTransactions returns the number of stored transactions.
func (p *Processor) CountTransactions(ctx context.Context) (int64, error) {
	return p.txs.CountTransactions(ctx)
}
