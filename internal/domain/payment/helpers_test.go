package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/adapter/outbound/memory"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"github.com/uniedit/checkout/internal/infra/events"
	"go.uber.org/zap"
)

// --- Test doubles ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Authorize(ctx context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Authorization), args.Error(1)
}

type scheduledJob struct {
	kind  string
	id    uuid.UUID
	delay time.Duration
}

// recordingScheduler records jobs; tests fire them through the force-settle hooks.
type recordingScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
	err  error
}

func (s *recordingScheduler) Schedule(kind string, id uuid.UUID, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, scheduledJob{kind: kind, id: id, delay: delay})
	return nil
}

func (s *recordingScheduler) Jobs() []scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduledJob(nil), s.jobs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type failingTransactionStore struct {
	*memory.TransactionStore
	failCreate       bool
	failCreateRefund bool
}

func (s *failingTransactionStore) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	if s.failCreate {
		return errors.New("disk full")
	}
	return s.TransactionStore.CreateTransaction(ctx, tx)
}

func (s *failingTransactionStore) CreateRefund(ctx context.Context, r *payment.Refund) error {
	if s.failCreateRefund {
		return errors.New("disk full")
	}
	return s.TransactionStore.CreateRefund(ctx, r)
}

// --- Fixture ---

type fixture struct {
	clock     *fakeClock
	sessions  *memory.SessionStore
	txs       *failingTransactionStore
	gateway   *MockGateway
	scheduler *recordingScheduler
	publisher *recordingPublisher
	manager   *checkout.Manager
	processor *payment.Processor
	refunds   *payment.RefundProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:     &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		sessions:  memory.NewSessionStore(),
		txs:       &failingTransactionStore{TransactionStore: memory.NewTransactionStore()},
		gateway:   &MockGateway{},
		scheduler: &recordingScheduler{},
		publisher: &recordingPublisher{},
	}
	opts := []payment.Option{payment.WithClock(f.clock.Now), payment.WithPublisher(f.publisher)}
	f.manager = checkout.NewManager(f.sessions, checkout.DefaultConfig(), zap.NewNop(), checkout.WithClock(f.clock.Now))
	f.processor = payment.NewProcessor(f.sessions, f.txs, f.gateway, f.scheduler, payment.DefaultConfig(), zap.NewNop(), opts...)
	f.refunds = payment.NewRefundProcessor(f.txs, f.scheduler, payment.DefaultConfig(), zap.NewNop(), opts...)
	return f
}

func (f *fixture) createSession(t *testing.T) *checkout.Session {
	t.Helper()
	s, err := f.manager.CreateSession(context.Background(), checkout.CreateSessionInput{
		UserID:         "user-1",
		Items:          []pricing.Item{{ProductID: "p1", Name: "Headphones", UnitPrice: decimal.RequireFromString("89.99"), Quantity: 1}},
		BillingAddress: checkout.Address{"city": "Springfield"},
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) submit(t *testing.T, sessionID uuid.UUID) *payment.SubmitPaymentResult {
	t.Helper()
	res, err := f.processor.SubmitPayment(context.Background(), payment.SubmitPaymentInput{
		SessionID: sessionID,
		Method:    payment.MethodCreditCard,
		Details:   &payment.PaymentDetails{CardNumber: "4242 4242 4242 4242", Brand: "visa"},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) approveNext() {
	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&payment.Authorization{Approved: true, Code: "AUTH123"}, nil).Once()
}

func (f *fixture) declineNext() {
	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&payment.Authorization{Approved: false}, nil).Once()
}

// completedTransaction returns the ID of a settled, approved transaction.
func (f *fixture) completedTransaction(t *testing.T) uuid.UUID {
	t.Helper()
	res := f.submit(t, f.createSession(t).ID)
	f.approveNext()
	require.NoError(t, f.processor.Settle(context.Background(), res.TransactionID))
	return res.TransactionID
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
