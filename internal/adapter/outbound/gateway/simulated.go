package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/uniedit/checkout/internal/domain/payment"
)

// DefaultSuccessRate is the share of authorizations the simulated gateway approves.
const DefaultSuccessRate = 0.9

// Simulated approves a fixed share of payments at random.
type Simulated struct {
	SuccessRate float64

	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// NewSimulated creates a simulated gateway. A nil src seeds from the clock.
func NewSimulated(successRate float64, src rand.Source) *Simulated {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulated{
		SuccessRate: successRate,
		rand:        rand.New(src),
		now:         time.Now,
	}
}

// Name returns the gateway name.
func (g *Simulated) Name() string {
	return "simulated"
}

// Authorize approves with probability SuccessRate.
func (g *Simulated) Authorize(ctx context.Context, _ payment.AuthorizationRequest) (*payment.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	roll := g.rand.Float64()
	g.mu.Unlock()

	if roll >= g.SuccessRate {
		return &payment.Authorization{DeclineReason: payment.DefaultDeclineReason}, nil
	}
	return &payment.Authorization{
		Approved: true,
		Code:     fmt.Sprintf("AUTH%d", g.now().UnixMilli()),
	}, nil
}

// Fixed always returns the same decision. Useful for tests and demos.
type Fixed struct {
	Approve bool
	Code    string
	Reason  string
}

// Name returns the gateway name.
func (g Fixed) Name() string {
	return "fixed"
}

// Authorize returns the configured decision.
func (g Fixed) Authorize(context.Context, payment.AuthorizationRequest) (*payment.Authorization, error) {
	if g.Approve {
		return &payment.Authorization{Approved: true, Code: g.Code}, nil
	}
	return &payment.Authorization{DeclineReason: g.Reason}, nil
}
