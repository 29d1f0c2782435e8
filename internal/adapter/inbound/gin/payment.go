package gin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/model"
	"github.com/uniedit/checkout/internal/port/inbound"
)

// PaymentService is the payment API used by the handlers.
type PaymentService interface {
	SubmitPayment(ctx context.Context, in payment.SubmitPaymentInput) (*payment.SubmitPaymentResult, error)
	GetTransactionStatus(ctx context.Context, txID uuid.UUID) (*payment.StatusSummary, error)
}

// RefundService is the refund API used by the handlers.
type RefundService interface {
	RequestRefund(ctx context.Context, in payment.RefundInput) (*payment.RefundResult, error)
	GetRefund(ctx context.Context, refundID uuid.UUID) (*payment.Refund, error)
}

// paymentAdapter implements inbound.PaymentHttpPort.
type paymentAdapter struct {
	payments PaymentService
}

// NewPaymentAdapter creates a new payment HTTP adapter.
func NewPaymentAdapter(payments PaymentService) inbound.PaymentHttpPort {
	return &paymentAdapter{payments: payments}
}

// refundAdapter implements inbound.RefundHttpPort.
type refundAdapter struct {
	refunds RefundService
}

// NewRefundAdapter creates a new refund HTTP adapter.
func NewRefundAdapter(refunds RefundService) inbound.RefundHttpPort {
	return &refundAdapter{refunds: refunds}
}

// RegisterPaymentRoutes registers payment and refund routes.
func RegisterPaymentRoutes(r *gin.RouterGroup, payments inbound.PaymentHttpPort, refunds inbound.RefundHttpPort) {
	r.POST("/payment", payments.SubmitPayment)
	r.GET("/payment/:transactionId/status", payments.GetTransactionStatus)
	r.GET("/payment-methods", payments.ListPaymentMethods)

	r.POST("/payment/:transactionId/refund", refunds.RequestRefund)
	r.GET("/refund/:refundId", refunds.GetRefund)
}

func (a *paymentAdapter) SubmitPayment(c *gin.Context) {
	var req model.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	in := payment.SubmitPaymentInput{
		Method:         strings.TrimSpace(req.PaymentMethod),
		Details:        req.PaymentDetails,
		BillingAddress: req.BillingAddress,
	}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			handleError(c, checkout.ErrSessionNotFound)
			return
		}
		in.SessionID = id
	}

	result, err := a.payments.SubmitPayment(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SubmitPaymentResponse{
		Success:       true,
		Message:       "Payment processing initiated",
		TransactionID: result.TransactionID.String(),
		Status:        result.Status,
		Session:       result.Session,
	})
}

func (a *paymentAdapter) GetTransactionStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		handleError(c, payment.ErrTransactionNotFound)
		return
	}

	summary, err := a.payments.GetTransactionStatus(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (a *paymentAdapter) ListPaymentMethods(c *gin.Context) {
	c.JSON(http.StatusOK, payment.ListPaymentMethods())
}

func (a *refundAdapter) RequestRefund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		handleError(c, payment.ErrTransactionNotFound)
		return
	}

	var req model.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := a.refunds.RequestRefund(c.Request.Context(), payment.RefundInput{
		TransactionID: id,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RefundResponse{
		Success:     true,
		Message:     "Refund initiated",
		Refund:      result.Refund,
		Transaction: result.Transaction,
	})
}

func (a *refundAdapter) GetRefund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("refundId"))
	if err != nil {
		handleError(c, payment.ErrRefundNotFound)
		return
	}

	refund, err := a.refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, refund)
}
