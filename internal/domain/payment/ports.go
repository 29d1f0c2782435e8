package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/infra/events"
)

// AuthorizationRequest asks a gateway to authorize a transaction.
type AuthorizationRequest struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        string          `json:"paymentMethod"`
	Details       RedactedDetails `json:"paymentDetails"`
}

// Authorization is a gateway decision.
type Authorization struct {
	Approved      bool   `json:"approved"`
	Code          string `json:"authorizationCode,omitempty"`
	DeclineReason string `json:"declineReason,omitempty"`
}

// SettlementGateway decides the outcome of a payment.
type SettlementGateway interface {
	Name() string
	// Authorize returns the decision. An error means no decision could be
	// obtained; the transaction is then failed with the error as reason.
	// Repeated calls for one TransactionID must not authorize twice, as
	// settlement may run concurrently from separate processes.
	Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}

// Deferred job kinds.
const (
	JobSettlePayment = "payment.settle"
	JobSettleRefund  = "refund.settle"
)

// Scheduler runs a job for id once delay has elapsed.
type Scheduler interface {
	Schedule(kind string, id uuid.UUID, delay time.Duration) error
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(event events.Event)
}

// Metrics receives payment lifecycle observations.
type Metrics interface {
	PaymentSubmitted(method string)
	PaymentSettled(outcome string)
	RefundRequested()
	RefundCompleted()
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

type nopMetrics struct{}

func (nopMetrics) PaymentSubmitted(string) {}
func (nopMetrics) PaymentSettled(string)   {}
func (nopMetrics) RefundRequested()        {}
func (nopMetrics) RefundCompleted()        {}

type options struct {
	now       func() time.Time
	publisher Publisher
	metrics   Metrics
}

func defaultOptions() options {
	return options{now: time.Now, publisher: nopPublisher{}, metrics: nopMetrics{}}
}

// Option configures a Processor or RefundProcessor.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}
