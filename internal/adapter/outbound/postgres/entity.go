package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/domain/pricing"
)

// SessionEntity is the GORM model for checkout_sessions table.
type SessionEntity struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID          string          `gorm:"not null;index"`
	Items           []byte          `gorm:"type:jsonb;not null"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Tax             decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Shipping        decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Total           decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency        string          `gorm:"type:char(3);not null"`
	ShippingAddress []byte          `gorm:"type:jsonb"`
	BillingAddress  []byte          `gorm:"type:jsonb"`
	Status          string          `gorm:"not null;index:idx_sessions_status_expiry,priority:1"`
	ExpiresAt       time.Time       `gorm:"not null;index:idx_sessions_status_expiry,priority:2"`
	PaymentMethod   *string
	TransactionID   *uuid.UUID `gorm:"type:uuid"`
	Version         int64      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

// TableName returns the database table name.
func (SessionEntity) TableName() string {
	return "checkout_sessions"
}

// FromDomainSession converts a domain session to an entity.
func FromDomainSession(s *checkout.Session) (*SessionEntity, error) {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	shipping, err := marshalNullable(s.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	billing, err := marshalNullable(s.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode billing address: %w", err)
	}
	return &SessionEntity{
		ID:              s.ID,
		UserID:          s.UserID,
		Items:           items,
		Subtotal:        s.Pricing.Subtotal,
		Tax:             s.Pricing.Tax,
		Shipping:        s.Pricing.Shipping,
		Total:           s.Pricing.Total,
		Currency:        s.Pricing.Currency,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Status:          s.Status.String(),
		ExpiresAt:       s.ExpiresAt,
		PaymentMethod:   s.PaymentMethod,
		TransactionID:   s.TransactionID,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

// ToDomain converts the entity to a domain Session.
func (e *SessionEntity) ToDomain() (*checkout.Session, error) {
	s := &checkout.Session{
		ID:     e.ID,
		UserID: e.UserID,
		Pricing: pricing.Breakdown{
			Subtotal: e.Subtotal,
			Tax:      e.Tax,
			Shipping: e.Shipping,
			Total:    e.Total,
			Currency: e.Currency,
		},
		Status:        checkout.Status(e.Status),
		CreatedAt:     e.CreatedAt,
		ExpiresAt:     e.ExpiresAt,
		UpdatedAt:     e.UpdatedAt,
		PaymentMethod: e.PaymentMethod,
		TransactionID: e.TransactionID,
		Version:       e.Version,
	}
	if err := json.Unmarshal(e.Items, &s.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := unmarshalNullable(e.ShippingAddress, &s.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if err := unmarshalNullable(e.BillingAddress, &s.BillingAddress); err != nil {
		return nil, fmt.Errorf("decode billing address: %w", err)
	}
	return s, nil
}

// TransactionEntity is the GORM model for payment_transactions table.
type TransactionEntity struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SessionID         uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null"`
	UserID            string           `gorm:"not null;index"`
	Amount            decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	Currency          string           `gorm:"type:char(3);not null"`
	Method            string           `gorm:"not null"`
	Details           []byte           `gorm:"type:jsonb;not null"`
	ProcessingFee     decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	BillingAddress    []byte           `gorm:"type:jsonb"`
	Status            string           `gorm:"not null;index"`
	CompletedAt       *time.Time
	AuthorizationCode *string
	FailureReason     *string
	RefundID          *uuid.UUID       `gorm:"type:uuid"`
	RefundAmount      *decimal.Decimal `gorm:"type:numeric(20,4)"`
	Version           int64            `gorm:"not null"`
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

// TableName returns the database table name.
func (TransactionEntity) TableName() string {
	return "payment_transactions"
}

// FromDomainTransaction converts a domain transaction to an entity.
func FromDomainTransaction(t *payment.Transaction) (*TransactionEntity, error) {
	details, err := json.Marshal(t.Details)
	if err != nil {
		return nil, fmt.Errorf("encode payment details: %w", err)
	}
	billing, err := marshalNullable(t.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode billing address: %w", err)
	}
	return &TransactionEntity{
		ID:                t.ID,
		SessionID:         t.SessionID,
		UserID:            t.UserID,
		Amount:            t.Amount,
		Currency:          t.Currency,
		Method:            t.Method,
		Details:           details,
		ProcessingFee:     t.ProcessingFee,
		BillingAddress:    billing,
		Status:            t.Status.String(),
		CompletedAt:       t.CompletedAt,
		AuthorizationCode: t.AuthorizationCode,
		FailureReason:     t.FailureReason,
		RefundID:          t.RefundID,
		RefundAmount:      t.RefundAmount,
		Version:           t.Version,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}, nil
}

// ToDomain converts the entity to a domain Transaction.
func (e *TransactionEntity) ToDomain() (*payment.Transaction, error) {
	t := &payment.Transaction{
		ID:                e.ID,
		SessionID:         e.SessionID,
		UserID:            e.UserID,
		Amount:            e.Amount,
		Currency:          e.Currency,
		Method:            e.Method,
		ProcessingFee:     e.ProcessingFee,
		Status:            payment.TransactionStatus(e.Status),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		CompletedAt:       e.CompletedAt,
		AuthorizationCode: e.AuthorizationCode,
		FailureReason:     e.FailureReason,
		RefundID:          e.RefundID,
		RefundAmount:      e.RefundAmount,
		Version:           e.Version,
	}
	if err := json.Unmarshal(e.Details, &t.Details); err != nil {
		return nil, fmt.Errorf("decode payment details: %w", err)
	}
	if err := unmarshalNullable(e.BillingAddress, &t.BillingAddress); err != nil {
		return nil, fmt.Errorf("decode billing address: %w", err)
	}
	return t, nil
}

// RefundEntity is the GORM model for payment_refunds table.
type RefundEntity struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency      string          `gorm:"type:char(3);not null"`
	Reason        string          `gorm:"not null"`
	Status        string          `gorm:"not null;index"`
	CompletedAt   *time.Time
	Version       int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
}

// TableName returns the database table name.
func (RefundEntity) TableName() string {
	return "payment_refunds"
}

// FromDomainRefund converts a domain refund to an entity.
func FromDomainRefund(r *payment.Refund) *RefundEntity {
	return &RefundEntity{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Reason:        r.Reason,
		Status:        string(r.Status),
		CompletedAt:   r.CompletedAt,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
	}
}

// ToDomain converts the entity to a domain Refund.
func (e *RefundEntity) ToDomain() *payment.Refund {
	return &payment.Refund{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Reason:        e.Reason,
		Status:        payment.RefundStatus(e.Status),
		CreatedAt:     e.CreatedAt,
		CompletedAt:   e.CompletedAt,
		Version:       e.Version,
	}
}

func marshalNullable(a checkout.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func unmarshalNullable(data []byte, a *checkout.Address) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, a)
}
