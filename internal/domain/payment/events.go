package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/infra/events"
)

// Event types published by the payment domain.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventRefundIssued     = "refund.issued"
	EventRefundCompleted  = "refund.completed"

	aggregateTransaction = "Transaction"
	aggregateRefund      = "Refund"
)

// PaymentCompleted is published when a transaction is authorized.
type PaymentCompleted struct {
	events.BaseEvent
	TransactionID     uuid.UUID       `json:"transactionId"`
	SessionID         uuid.UUID       `json:"sessionId"`
	UserID            string          `json:"userId"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"paymentMethod"`
	AuthorizationCode string          `json:"authorizationCode"`
}

// PaymentFailed is published when a transaction is declined.
type PaymentFailed struct {
	events.BaseEvent
	TransactionID uuid.UUID       `json:"transactionId"`
	SessionID     uuid.UUID       `json:"sessionId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// RefundIssued is published when a refund is accepted.
type RefundIssued struct {
	events.BaseEvent
	RefundID      uuid.UUID       `json:"refundId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// RefundCompleted is published when a refund settles.
type RefundCompleted struct {
	events.BaseEvent
	RefundID      uuid.UUID       `json:"refundId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

func newSettlementEvent(tx *Transaction) events.Event {
	if tx.Status == StatusCompleted {
		code := ""
		if tx.AuthorizationCode != nil {
			code = *tx.AuthorizationCode
		}
		return PaymentCompleted{
			BaseEvent:         events.NewBaseEvent(EventPaymentCompleted, tx.ID, aggregateTransaction),
			TransactionID:     tx.ID,
			SessionID:         tx.SessionID,
			UserID:            tx.UserID,
			Amount:            tx.Amount,
			Currency:          tx.Currency,
			PaymentMethod:     tx.Method,
			AuthorizationCode: code,
		}
	}
	reason := ""
	if tx.FailureReason != nil {
		reason = *tx.FailureReason
	}
	return PaymentFailed{
		BaseEvent:     events.NewBaseEvent(EventPaymentFailed, tx.ID, aggregateTransaction),
		TransactionID: tx.ID,
		SessionID:     tx.SessionID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Reason:        reason,
	}
}
