// Package storetest holds the behaviour every session and transaction store
// backend must satisfy. Backend test files call the Run functions.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/domain/pricing"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// NewSession returns a valid initialized session expiring at expiresAt.
func NewSession(expiresAt time.Time) *checkout.Session {
	now := expiresAt.Add(-30 * time.Minute).UTC().Truncate(time.Millisecond)
	price := decimal.RequireFromString("89.99")
	return &checkout.Session{
		ID:     uuid.New(),
		UserID: "user-1",
		Items: []checkout.LineItem{{
			ProductID:    "p1",
			Name:         "Headphones",
			UnitPrice:    price,
			Quantity:     1,
			LineSubtotal: price,
		}},
		Pricing: pricing.Breakdown{
			Subtotal: price,
			Tax:      decimal.RequireFromString("7.20"),
			Shipping: decimal.RequireFromString("9.99"),
			Total:    decimal.RequireFromString("107.18"),
			Currency: "USD",
		},
		ShippingAddress: checkout.Address{"city": "Springfield"},
		Status:          checkout.StatusInitialized,
		CreatedAt:       now,
		ExpiresAt:       expiresAt.UTC().Truncate(time.Millisecond),
		UpdatedAt:       now,
	}
}

// NewTransaction returns a processing transaction for sessionID.
func NewTransaction(sessionID uuid.UUID) *payment.Transaction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	last4 := "4242"
	return &payment.Transaction{
		ID:            uuid.New(),
		SessionID:     sessionID,
		UserID:        "user-1",
		Amount:        decimal.RequireFromString("107.18"),
		Currency:      "USD",
		Method:        payment.MethodCreditCard,
		Details:       payment.RedactedDetails{Type: payment.MethodCreditCard, Last4: &last4},
		ProcessingFee: decimal.RequireFromString("3.41"),
		Status:        payment.StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RunSessionStore exercises a checkout.SessionStore implementation.
func RunSessionStore(t *testing.T, newStore func(t *testing.T) checkout.SessionStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		session := NewSession(time.Now().Add(30 * time.Minute))
		require.NoError(t, store.Create(ctx, session))
		assert.Equal(t, int64(1), session.Version)

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.UserID, got.UserID)
		assert.Equal(t, checkout.StatusInitialized, got.Status)
		assert.True(t, session.Pricing.Total.Equal(got.Pricing.Total))
		assert.Equal(t, "USD", got.Pricing.Currency)
		require.Len(t, got.Items, 1)
		assert.True(t, got.Items[0].UnitPrice.Equal(session.Items[0].UnitPrice))
		assert.Equal(t, "Springfield", got.ShippingAddress["city"])
		assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Millisecond)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
	})

	t.Run("returned copies are isolated", func(t *testing.T) {
		store := newStore(t)
		session := NewSession(time.Now().Add(time.Hour))
		require.NoError(t, store.Create(ctx, session))

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		got.Status = checkout.StatusCompleted
		got.Items[0].Quantity = 99

		again, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusInitialized, again.Status)
		assert.Equal(t, 1, again.Items[0].Quantity)
	})

	t.Run("compare and swap", func(t *testing.T) {
		store := newStore(t)
		session := NewSession(time.Now().Add(time.Hour))
		require.NoError(t, store.Create(ctx, session))

		txID := uuid.New()
		claimed, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		require.NoError(t, claimed.MarkProcessing(payment.MethodPayPal, txID, checkout.Address{"city": "Shelbyville"}, time.Now().UTC()))
		require.NoError(t, store.CompareAndSwap(ctx, claimed, 1))
		assert.Equal(t, int64(2), claimed.Version)

		stale := session.Clone()
		stale.Status = checkout.StatusExpired
		err = store.CompareAndSwap(ctx, stale, 1)
		assert.ErrorIs(t, err, apperrors.ErrVersionConflict)

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusProcessing, got.Status)
		require.NotNil(t, got.TransactionID)
		assert.Equal(t, txID, *got.TransactionID)
		require.NotNil(t, got.PaymentMethod)
		assert.Equal(t, payment.MethodPayPal, *got.PaymentMethod)
		assert.Equal(t, "Shelbyville", got.BillingAddress["city"])
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("compare and swap missing", func(t *testing.T) {
		store := newStore(t)
		err := store.CompareAndSwap(ctx, NewSession(time.Now()), 1)
		assert.Error(t, err)
	})

	t.Run("one concurrent claim wins", func(t *testing.T) {
		store := newStore(t)
		session := NewSession(time.Now().Add(time.Hour))
		require.NoError(t, store.Create(ctx, session))

		const workers = 16
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := checkout.Update(ctx, store, session.ID, func(s *checkout.Session) error {
					if s.Status != checkout.StatusInitialized {
						return checkout.ErrSessionNotPayable
					}
					return s.MarkProcessing(payment.MethodCreditCard, uuid.New(), nil, time.Now().UTC())
				})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, checkout.ErrSessionNotPayable)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("list expired and count", func(t *testing.T) {
		store := newStore(t)
		now := time.Now()

		past := NewSession(now.Add(-time.Minute))
		future := NewSession(now.Add(time.Hour))
		claimed := NewSession(now.Add(-time.Minute))
		claimed.Status = checkout.StatusProcessing
		for _, s := range []*checkout.Session{past, future, claimed} {
			require.NoError(t, store.Create(ctx, s))
		}

		expired, err := store.ListExpired(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, past.ID, expired[0].ID)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

// RunTransactionStore exercises a payment.TransactionStore implementation.
func RunTransactionStore(t *testing.T, newStore func(t *testing.T) payment.TransactionStore) {
	ctx := context.Background()

	t.Run("create and get transaction", func(t *testing.T) {
		store := newStore(t)
		tx := NewTransaction(uuid.New())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		assert.Equal(t, int64(1), tx.Version)

		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.SessionID, got.SessionID)
		assert.True(t, tx.Amount.Equal(got.Amount))
		assert.Equal(t, payment.StatusProcessing, got.Status)
		require.NotNil(t, got.Details.Last4)
		assert.Equal(t, "4242", *got.Details.Last4)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetTransaction(ctx, uuid.New())
		assert.ErrorIs(t, err, payment.ErrTransactionNotFound)
		_, err = store.GetRefund(ctx, uuid.New())
		assert.ErrorIs(t, err, payment.ErrRefundNotFound)
	})

	t.Run("settle then refund", func(t *testing.T) {
		store := newStore(t)
		tx := NewTransaction(uuid.New())
		require.NoError(t, store.CreateTransaction(ctx, tx))

		settled, err := payment.UpdateTransaction(ctx, store, tx.ID, func(tr *payment.Transaction) error {
			return tr.MarkCompleted("AUTH1", time.Now().UTC())
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), settled.Version)

		stale := tx.Clone()
		require.NoError(t, stale.MarkFailed("late", time.Now().UTC()))
		assert.ErrorIs(t, store.CompareAndSwapTransaction(ctx, stale, 1), apperrors.ErrVersionConflict)

		refundID := uuid.New()
		amount := decimal.RequireFromString("50.00")
		_, err = payment.UpdateTransaction(ctx, store, tx.ID, func(tr *payment.Transaction) error {
			return tr.MarkRefunded(refundID, amount, time.Now().UTC())
		})
		require.NoError(t, err)

		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, got.Status)
		require.NotNil(t, got.AuthorizationCode)
		assert.Equal(t, "AUTH1", *got.AuthorizationCode)
		require.NotNil(t, got.RefundID)
		assert.Equal(t, refundID, *got.RefundID)
		require.NotNil(t, got.RefundAmount)
		assert.True(t, amount.Equal(*got.RefundAmount))
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("refund lifecycle", func(t *testing.T) {
		store := newStore(t)
		refund := &payment.Refund{
			ID:            uuid.New(),
			TransactionID: uuid.New(),
			Amount:        decimal.RequireFromString("10.00"),
			Currency:      "USD",
			Reason:        payment.DefaultRefundReason,
			Status:        payment.RefundStatusProcessing,
			CreatedAt:     time.Now().UTC(),
		}
		require.NoError(t, store.CreateRefund(ctx, refund))

		pending, err := store.ListProcessingRefunds(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		_, err = payment.UpdateRefund(ctx, store, refund.ID, func(r *payment.Refund) error {
			r.MarkCompleted(time.Now().UTC())
			return nil
		})
		require.NoError(t, err)

		got, err := store.GetRefund(ctx, refund.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.RefundStatusCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)
		assert.Equal(t, payment.DefaultRefundReason, got.Reason)

		pending, err = store.ListProcessingRefunds(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("list processing and count", func(t *testing.T) {
		store := newStore(t)
		processing := NewTransaction(uuid.New())
		done := NewTransaction(uuid.New())
		done.Status = payment.StatusFailed
		require.NoError(t, store.CreateTransaction(ctx, processing))
		require.NoError(t, store.CreateTransaction(ctx, done))

		list, err := store.ListProcessingTransactions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, processing.ID, list[0].ID)

		n, err := store.CountTransactions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
