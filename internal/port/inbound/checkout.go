package inbound

import "github.com/gin-gonic/gin"

// CheckoutHttpPort defines HTTP handler interface for checkout sessions.
type CheckoutHttpPort interface {
	// CreateSession handles POST /checkout/session
	// Prices the cart and opens a checkout session.
	CreateSession(c *gin.Context)

	// GetSession handles GET /checkout/session/:sessionId
	GetSession(c *gin.Context)

	// QuoteShipping handles POST /checkout/shipping
	// Returns the shipping options for a cart.
	QuoteShipping(c *gin.Context)
}

// PaymentHttpPort defines HTTP handler interface for payment operations.
type PaymentHttpPort interface {
	// SubmitPayment handles POST /checkout/payment
	// Accepts a payment for a session; settlement completes asynchronously.
	SubmitPayment(c *gin.Context)

	// GetTransactionStatus handles GET /checkout/payment/:transactionId/status
	GetTransactionStatus(c *gin.Context)

	// ListPaymentMethods handles GET /checkout/payment-methods
	ListPaymentMethods(c *gin.Context)
}

// RefundHttpPort defines HTTP handler interface for refund operations.
type RefundHttpPort interface {
	// RequestRefund handles POST /checkout/payment/:transactionId/refund
	// Refunds a completed transaction, fully or partially.
	RequestRefund(c *gin.Context)

	// GetRefund handles GET /checkout/refund/:refundId
	GetRefund(c *gin.Context)
}

// HealthHttpPort defines HTTP handler interface for service health.
type HealthHttpPort interface {
	// Health handles GET /health
	Health(c *gin.Context)
}
