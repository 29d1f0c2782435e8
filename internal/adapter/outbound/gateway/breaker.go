package gateway

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/checkout/internal/domain/payment"
	"go.uber.org/zap"
)

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	FailureThreshold    uint32
	MaxHalfOpenRequests uint32
	Interval            time.Duration
	Timeout             time.Duration
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    5,
		MaxHalfOpenRequests: 1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
	}
}

// Breaker stops calling an unhealthy gateway until it recovers. While open,
// Authorize fails immediately and the payment is recorded as failed.
type Breaker struct {
	next    payment.SettlementGateway
	breaker *gobreaker.CircuitBreaker[*payment.Authorization]
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next payment.SettlementGateway, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("settlement gateway breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*payment.Authorization](settings),
	}
}

// Name returns the wrapped gateway's name.
func (b *Breaker) Name() string {
	return b.next.Name()
}

// Authorize calls the wrapped gateway through the breaker. Declines count as
// successful calls; only errors trip it.
func (b *Breaker) Authorize(ctx context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	return b.breaker.Execute(func() (*payment.Authorization, error) {
		return b.next.Authorize(ctx, req)
	})
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}
