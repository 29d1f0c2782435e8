package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"go.uber.org/zap"
)

// ctxSessionStore fails every call made with a done context, as the Redis and
// Postgres stores do.
type ctxSessionStore struct {
	checkout.SessionStore
}

func (s ctxSessionStore) Get(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.SessionStore.Get(ctx, id)
}

func (s ctxSessionStore) CompareAndSwap(ctx context.Context, session *checkout.Session, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SessionStore.CompareAndSwap(ctx, session, expectedVersion)
}

// ctxTransactionStore fails calls made with a done context. beforeCreate runs
// ahead of CreateTransaction and CreateRefund and may replace their result.
type ctxTransactionStore struct {
	payment.TransactionStore
	beforeCreate func(ctx context.Context) error
}

func (s *ctxTransactionStore) hook(ctx context.Context) error {
	if s.beforeCreate != nil {
		if err := s.beforeCreate(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *ctxTransactionStore) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	if err := s.hook(ctx); err != nil {
		return err
	}
	return s.TransactionStore.CreateTransaction(ctx, tx)
}

func (s *ctxTransactionStore) CreateRefund(ctx context.Context, r *payment.Refund) error {
	if err := s.hook(ctx); err != nil {
		return err
	}
	return s.TransactionStore.CreateRefund(ctx, r)
}

func (s *ctxTransactionStore) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.TransactionStore.GetTransaction(ctx, id)
}

func (s *ctxTransactionStore) CompareAndSwapTransaction(ctx context.Context, tx *payment.Transaction, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.TransactionStore.CompareAndSwapTransaction(ctx, tx, expectedVersion)
}

func (f *fixture) ctxProcessor(txs payment.TransactionStore) *payment.Processor {
	return payment.NewProcessor(ctxSessionStore{f.sessions}, txs, f.gateway, f.scheduler,
		payment.DefaultConfig(), zap.NewNop(), payment.WithClock(f.clock.Now))
}

func TestProcessor_SubmitPayment_CallerCancellation(t *testing.T) {
	t.Run("claim released when transaction write fails", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		txs := &ctxTransactionStore{TransactionStore: f.txs.TransactionStore}
		txs.beforeCreate = func(context.Context) error {
			cancel()
			return errors.New("connection reset")
		}

		_, err := f.ctxProcessor(txs).SubmitPayment(ctx, payment.SubmitPaymentInput{
			SessionID: session.ID,
			Method:    payment.MethodCreditCard,
		})
		require.Error(t, err)

		stored, err := f.sessions.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusInitialized, stored.Status)
		assert.Nil(t, stored.TransactionID)

		res := f.submit(t, session.ID)
		assert.Equal(t, payment.StatusProcessing, res.Status)
	})

	t.Run("transaction recorded after claim", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		txs := &ctxTransactionStore{TransactionStore: f.txs.TransactionStore}
		txs.beforeCreate = func(context.Context) error {
			cancel()
			return nil
		}

		res, err := f.ctxProcessor(txs).SubmitPayment(ctx, payment.SubmitPaymentInput{
			SessionID: session.ID,
			Method:    payment.MethodCreditCard,
		})
		require.NoError(t, err)

		stored, err := f.sessions.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusProcessing, stored.Status)
		require.NotNil(t, stored.TransactionID)
		assert.Equal(t, res.TransactionID, *stored.TransactionID)

		tx, err := f.processor.GetTransaction(context.Background(), res.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusProcessing, tx.Status)
	})
}

func TestProcessor_Settle_RecordsOutcomeAfterJobDeadline(t *testing.T) {
	f := newFixture(t)
	res := f.submit(t, f.createSession(t).ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&payment.Authorization{Approved: true, Code: "AUTH123"}, nil).Once()

	txs := &ctxTransactionStore{TransactionStore: f.txs.TransactionStore}
	require.NoError(t, f.ctxProcessor(txs).Settle(ctx, res.TransactionID))

	tx, err := f.processor.GetTransaction(context.Background(), res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, tx.Status)

	session, err := f.sessions.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCompleted, session.Status)
}

func TestProcessor_Settle_ConcurrentCallsAuthorizeOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.submit(t, f.createSession(t).ID)

	started := make(chan struct{})
	release := make(chan struct{})
	f.gateway.On("Authorize", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&payment.Authorization{Approved: true, Code: "AUTH123"}, nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = f.processor.Settle(ctx, res.TransactionID)
	}()
	<-started

	require.NoError(t, f.processor.Settle(ctx, res.TransactionID))
	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	summary, err := f.processor.GetTransactionStatus(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, summary.Status)
	f.gateway.AssertNumberOfCalls(t, "Authorize", 1)
}

func TestRefundProcessor_CallerCancellationReleasesClaim(t *testing.T) {
	f := newFixture(t)
	txID := f.completedTransaction(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	txs := &ctxTransactionStore{TransactionStore: f.txs.TransactionStore}
	txs.beforeCreate = func(context.Context) error {
		cancel()
		return errors.New("connection reset")
	}
	refunds := payment.NewRefundProcessor(txs, f.scheduler, payment.DefaultConfig(), zap.NewNop())

	_, err := refunds.RequestRefund(ctx, payment.RefundInput{TransactionID: txID})
	require.Error(t, err)

	tx, err := f.processor.GetTransaction(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, tx.Status)
	assert.Nil(t, tx.RefundID)

	_, err = f.refunds.RequestRefund(context.Background(), payment.RefundInput{TransactionID: txID})
	require.NoError(t, err)
}
