package model

import (
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/domain/pricing"
)

// CartItem is a line of a cart as posted by clients.
type CartItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// ToPricingItems converts posted cart lines into pricing items.
func ToPricingItems(items []CartItem) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, item := range items {
		out[i] = pricing.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		}
	}
	return out
}

// CreateSessionRequest is the body of POST /checkout/session.
type CreateSessionRequest struct {
	UserID          string           `json:"userId"`
	Items           []CartItem       `json:"items"`
	Currency        string           `json:"currency"`
	ShippingAddress checkout.Address `json:"shippingAddress"`
	BillingAddress  checkout.Address `json:"billingAddress"`
}

// CreateSessionResponse is returned by POST /checkout/session.
type CreateSessionResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Session *checkout.Session `json:"session"`
}

// SubmitPaymentRequest is the body of POST /checkout/payment.
type SubmitPaymentRequest struct {
	SessionID      string                  `json:"sessionId"`
	PaymentMethod  string                  `json:"paymentMethod"`
	PaymentDetails *payment.PaymentDetails `json:"paymentDetails"`
	BillingAddress checkout.Address        `json:"billingAddress"`
}

// SubmitPaymentResponse is returned by POST /checkout/payment.
type SubmitPaymentResponse struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	TransactionID string                    `json:"transactionId"`
	Status        payment.TransactionStatus `json:"status"`
	Session       *checkout.Session         `json:"session"`
}

// RefundRequest is the body of POST /checkout/payment/:transactionId/refund.
// A missing amount refunds the whole transaction.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// RefundResponse is returned by POST /checkout/payment/:transactionId/refund.
type RefundResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Refund      *payment.Refund      `json:"refund"`
	Transaction *payment.Transaction `json:"transaction"`
}

// ShippingRequest is the body of POST /checkout/shipping.
type ShippingRequest struct {
	Items           []CartItem       `json:"items"`
	Currency        string           `json:"currency"`
	ShippingAddress checkout.Address `json:"shippingAddress"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status                string `json:"status"`
	Service               string `json:"service"`
	ActivePaymentSessions int64  `json:"activePaymentSessions"`
	TotalTransactions     int64  `json:"totalTransactions"`
}
