package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"go.uber.org/zap"
)

// Config contains session manager configuration.
type Config struct {
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
	DefaultCurrency string
	Rules           pricing.Rules
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		SessionTTL:      30 * time.Minute,
		SweepInterval:   time.Minute,
		SweepBatchSize:  500,
		DefaultCurrency: pricing.DefaultCurrency,
		Rules:           pricing.DefaultRules(),
	}
}

// Metrics receives session lifecycle observations.
type Metrics interface {
	SessionCreated(currency string)
	SessionsExpired(n int)
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated(string) {}
func (nopMetrics) SessionsExpired(int)   {}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// CreateSessionInput is the input for CreateSession.
type CreateSessionInput struct {
	UserID          string
	Items           []pricing.Item
	Currency        string
	ShippingAddress Address
	BillingAddress  Address
}

// Stats summarizes stored sessions.
type Stats struct {
	Sessions int64
}

// Manager creates, reads and expires checkout sessions.
type Manager struct {
	store   SessionStore
	config  Config
	now     func() time.Time
	metrics Metrics
	logger  *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a new session manager.
func NewManager(store SessionStore, config Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultConfig().SessionTTL
	}
	if config.SweepBatchSize <= 0 {
		config.SweepBatchSize = DefaultConfig().SweepBatchSize
	}
	m := &Manager{
		store:   store,
		config:  config,
		now:     time.Now,
		metrics: nopMetrics{},
		logger:  logger.Named("checkout"),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying session store.
func (m *Manager) Store() SessionStore {
	return m.store
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Rules returns the pricing rules applied to new sessions.
func (m *Manager) Rules() pricing.Rules {
	return m.config.Rules
}

// CreateSession prices the cart and persists a new initialized session.
func (m *Manager) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	currency := in.Currency
	if currency == "" {
		currency = m.config.DefaultCurrency
	}
	breakdown, err := pricing.Compute(in.Items, currency, m.config.Rules)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, len(in.Items))
	for i, item := range in.Items {
		items[i] = LineItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			LineSubtotal: item.LineSubtotal(),
		}
	}

	now := m.now().UTC()
	session := &Session{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           items,
		Pricing:         breakdown,
		ShippingAddress: in.ShippingAddress.Clone(),
		BillingAddress:  in.BillingAddress.Clone(),
		Status:          StatusInitialized,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.config.SessionTTL),
		UpdatedAt:       now,
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.metrics.SessionCreated(breakdown.Currency)
	m.logger.Info("checkout session created",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID),
		zap.String("total", breakdown.Total.String()),
		zap.String("currency", breakdown.Currency))

	return session.Clone(), nil
}

// GetSession returns the session as seen at the current time. An initialized
// session past its expiry is persisted as expired before it is returned.
func (m *Manager) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if session.Status == StatusInitialized && session.IsPastExpiry(now) {
		expired, err := m.expire(ctx, id)
		switch {
		case err == nil:
			session = expired
		case errors.Is(err, ErrInvalidTransition):
			// Claimed by a payment between the read and the write.
			if session, err = m.store.Get(ctx, id); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	return session.View(now), nil
}

// SweepExpired persists the expired status of every initialized session whose
// expiry has passed and returns how many were transitioned.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := m.now()
	expired := 0
	for {
		batch, err := m.store.ListExpired(ctx, now, m.config.SweepBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list expired sessions: %w", err)
		}
		swept := 0
		for _, session := range batch {
			if _, err := m.expire(ctx, session.ID); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					continue
				}
				return expired, err
			}
			swept++
		}
		expired += swept
		if len(batch) < m.config.SweepBatchSize || swept == 0 {
			break
		}
	}

	if expired > 0 {
		m.metrics.SessionsExpired(expired)
		m.logger.Info("expired checkout sessions", zap.Int("count", expired))
	}
	return expired, nil
}

func (m *Manager) expire(ctx context.Context, id uuid.UUID) (*Session, error) {
	return Update(ctx, m.store, id, func(s *Session) error {
		now := m.now()
		if s.Status != StatusInitialized || !s.IsPastExpiry(now) {
			return ErrInvalidTransition
		}
		return s.TransitionTo(StatusExpired, now.UTC())
	})
}

// Stats returns counts for health reporting.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count sessions: %w", err)
	}
	return Stats{Sessions: n}, nil
}

// Start launches the periodic expiry sweep when a sweep interval is configured.
func (m *Manager) Start(ctx context.Context) {
	if m.config.SweepInterval <= 0 {
		return
	}
	m.startOnce.Do(func() {
		m.logger.Info("starting session sweeper", zap.Duration("interval", m.config.SweepInterval))
		m.wg.Add(1)
		go m.sweepLoop(ctx)
	})
}

// Stop stops the sweeper and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepExpired(ctx); err != nil {
				m.logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}
