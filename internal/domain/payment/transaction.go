package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/domain/checkout"
)

// Transaction is the record of one payment attempt against a session.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	SessionID         uuid.UUID         `json:"sessionId"`
	UserID            string            `json:"userId"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Method            string            `json:"paymentMethod"`
	Details           RedactedDetails   `json:"paymentDetails"`
	ProcessingFee     decimal.Decimal   `json:"processingFee"`
	BillingAddress    checkout.Address  `json:"billingAddress"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	AuthorizationCode *string           `json:"authorizationCode,omitempty"`
	FailureReason     *string           `json:"failureReason,omitempty"`
	RefundID          *uuid.UUID        `json:"refundId,omitempty"`
	RefundAmount      *decimal.Decimal  `json:"refundAmount,omitempty"`

	Version int64 `json:"-"`
}

// TransitionTo moves the transaction to target if the state machine allows it.
func (t *Transaction) TransitionTo(target TransactionStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	t.Status = target
	t.UpdatedAt = now
	return nil
}

// MarkCompleted records a successful authorization.
func (t *Transaction) MarkCompleted(authCode string, now time.Time) error {
	if err := t.TransitionTo(StatusCompleted, now); err != nil {
		return err
	}
	t.CompletedAt = &now
	t.AuthorizationCode = &authCode
	return nil
}

// MarkFailed records a declined or errored authorization.
func (t *Transaction) MarkFailed(reason string, now time.Time) error {
	if err := t.TransitionTo(StatusFailed, now); err != nil {
		return err
	}
	t.FailureReason = &reason
	return nil
}

// MarkRefunded claims the transaction for a refund.
func (t *Transaction) MarkRefunded(refundID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if t.Status != StatusCompleted {
		return ErrTransactionNotRefundable
	}
	if err := t.TransitionTo(StatusRefunded, now); err != nil {
		return err
	}
	t.RefundID = &refundID
	t.RefundAmount = &amount
	return nil
}

// Clone returns a deep copy that shares no mutable state with t.
func (t *Transaction) Clone() *Transaction {
	out := *t
	out.BillingAddress = t.BillingAddress.Clone()
	if t.Details.Last4 != nil {
		v := *t.Details.Last4
		out.Details.Last4 = &v
	}
	if t.Details.Brand != nil {
		v := *t.Details.Brand
		out.Details.Brand = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	if t.AuthorizationCode != nil {
		v := *t.AuthorizationCode
		out.AuthorizationCode = &v
	}
	if t.FailureReason != nil {
		v := *t.FailureReason
		out.FailureReason = &v
	}
	if t.RefundID != nil {
		v := *t.RefundID
		out.RefundID = &v
	}
	if t.RefundAmount != nil {
		v := *t.RefundAmount
		out.RefundAmount = &v
	}
	return &out
}

// StatusSummary is the read-only status view of a transaction.
type StatusSummary struct {
	TransactionID     uuid.UUID         `json:"transactionId"`
	Status            TransactionStatus `json:"status"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	PaymentMethod     string            `json:"paymentMethod"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CompletedAt       *time.Time        `json:"completedAt"`
	AuthorizationCode *string           `json:"authorizationCode"`
	FailureReason     *string           `json:"failureReason"`
	RefundID          *uuid.UUID        `json:"refundId,omitempty"`
	RefundAmount      *decimal.Decimal  `json:"refundAmount,omitempty"`
}

// Summary returns the status view of the transaction.
func (t *Transaction) Summary() StatusSummary {
	c := t.Clone()
	return StatusSummary{
		TransactionID:     c.ID,
		Status:            c.Status,
		Amount:            c.Amount,
		Currency:          c.Currency,
		PaymentMethod:     c.Method,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		CompletedAt:       c.CompletedAt,
		AuthorizationCode: c.AuthorizationCode,
		FailureReason:     c.FailureReason,
		RefundID:          c.RefundID,
		RefundAmount:      c.RefundAmount,
	}
}

// Refund is a request to return all or part of a completed transaction.
type Refund struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
	Status        RefundStatus    `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`

	Version int64 `json:"-"`
}

// MarkCompleted finishes the refund. It reports false if already completed.
func (r *Refund) MarkCompleted(now time.Time) bool {
	if r.Status != RefundStatusProcessing {
		return false
	}
	r.Status = RefundStatusCompleted
	r.CompletedAt = &now
	return true
}

// Clone returns a deep copy of the refund.
func (r *Refund) Clone() *Refund {
	out := *r
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		out.CompletedAt = &v
	}
	return &out
}
