package gin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/model"
	"github.com/uniedit/checkout/internal/port/inbound"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "checkout-service"

// StatsSource reports store counts for the health endpoint.
type StatsSource interface {
	Stats(ctx context.Context) (checkout.Stats, error)
}

// TransactionCounter counts stored transactions.
type TransactionCounter interface {
	CountTransactions(ctx context.Context) (int64, error)
}

type healthAdapter struct {
	sessions     StatsSource
	transactions TransactionCounter
}

// NewHealthAdapter creates a new health HTTP adapter.
func NewHealthAdapter(sessions StatsSource, transactions TransactionCounter) inbound.HealthHttpPort {
	return &healthAdapter{sessions: sessions, transactions: transactions}
}

// RegisterHealthRoutes registers the health route.
func RegisterHealthRoutes(r gin.IRouter, adapter inbound.HealthHttpPort) {
	r.GET("/health", adapter.Health)
}

// Health reports healthy while the stores answer.
func (a *healthAdapter) Health(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := a.sessions.Stats(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	txCount, err := a.transactions.CountTransactions(ctx)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.HealthResponse{
		Status:                "healthy",
		Service:               ServiceName,
		ActivePaymentSessions: stats.Sessions,
		TotalTransactions:     txCount,
	})
}
