package gin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"github.com/uniedit/checkout/internal/model"
	"github.com/uniedit/checkout/internal/port/inbound"
)

// SessionService is the checkout session API used by the handlers.
type SessionService interface {
	CreateSession(ctx context.Context, in checkout.CreateSessionInput) (*checkout.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*checkout.Session, error)
	Rules() pricing.Rules
}

// checkoutAdapter implements inbound.CheckoutHttpPort.
type checkoutAdapter struct {
	sessions        SessionService
	defaultCurrency string
}

// NewCheckoutAdapter creates a new checkout HTTP adapter.
func NewCheckoutAdapter(sessions SessionService, defaultCurrency string) inbound.CheckoutHttpPort {
	return &checkoutAdapter{sessions: sessions, defaultCurrency: defaultCurrency}
}

// RegisterCheckoutRoutes registers checkout session routes.
func RegisterCheckoutRoutes(r *gin.RouterGroup, adapter inbound.CheckoutHttpPort) {
	r.POST("/session", adapter.CreateSession)
	r.GET("/session/:sessionId", adapter.GetSession)
	r.POST("/shipping", adapter.QuoteShipping)
}

func (a *checkoutAdapter) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	session, err := a.sessions.CreateSession(c.Request.Context(), checkout.CreateSessionInput{
		UserID:          req.UserID,
		Items:           model.ToPricingItems(req.Items),
		Currency:        req.Currency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.CreateSessionResponse{
		Success: true,
		Message: "Checkout session created",
		Session: session,
	})
}

func (a *checkoutAdapter) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		badRequest(c, "invalid session id")
		return
	}

	session, err := a.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (a *checkoutAdapter) QuoteShipping(c *gin.Context) {
	var req model.ShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = a.defaultCurrency
	}
	quote, err := pricing.QuoteShipping(model.ToPricingItems(req.Items), currency, a.sessions.Rules())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}
