package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/domain/pricing"
)

// Address is an opaque postal address. It is stored and echoed, never validated.
type Address map[string]any

// Clone returns a shallow copy of the address.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	out := make(Address, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// LineItem is a priced cart line captured when the session is created.
type LineItem struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	LineSubtotal decimal.Decimal `json:"subtotal"`
}

// Session is a priced, time-bounded checkout attempt for one user.
type Session struct {
	ID              uuid.UUID         `json:"id"`
	UserID          string            `json:"userId"`
	Items           []LineItem        `json:"items"`
	Pricing         pricing.Breakdown `json:"pricing"`
	ShippingAddress Address           `json:"shippingAddress"`
	BillingAddress  Address           `json:"billingAddress"`
	Status          Status            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	ExpiresAt       time.Time         `json:"expiresAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	PaymentMethod   *string           `json:"paymentMethod"`
	TransactionID   *uuid.UUID        `json:"transactionId"`

	// Version is the optimistic concurrency token maintained by the store.
	Version int64 `json:"-"`
}

// IsPastExpiry reports whether the session's time window has elapsed at now.
func (s *Session) IsPastExpiry(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsPayable reports whether a payment may be submitted against the session at now.
func (s *Session) IsPayable(now time.Time) bool {
	return s.Status == StatusInitialized && !s.IsPastExpiry(now)
}

// TransitionTo moves the session to target if the state machine allows it.
func (s *Session) TransitionTo(target Status, now time.Time) error {
	if !s.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	s.Status = target
	s.UpdatedAt = now
	return nil
}

// MarkProcessing claims the session for a payment.
func (s *Session) MarkProcessing(method string, transactionID uuid.UUID, billing Address, now time.Time) error {
	if err := s.TransitionTo(StatusProcessing, now); err != nil {
		return err
	}
	s.PaymentMethod = &method
	s.TransactionID = &transactionID
	if billing != nil {
		s.BillingAddress = billing.Clone()
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	out := *s
	out.Items = append([]LineItem(nil), s.Items...)
	out.ShippingAddress = s.ShippingAddress.Clone()
	out.BillingAddress = s.BillingAddress.Clone()
	if s.PaymentMethod != nil {
		m := *s.PaymentMethod
		out.PaymentMethod = &m
	}
	if s.TransactionID != nil {
		id := *s.TransactionID
		out.TransactionID = &id
	}
	return &out
}

// View returns the session as reported to callers at now. A session whose time
// window has elapsed is reported as expired whatever its stored status.
func (s *Session) View(now time.Time) *Session {
	out := s.Clone()
	if out.IsPastExpiry(now) {
		out.Status = StatusExpired
	}
	return out
}
