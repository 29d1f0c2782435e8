package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/adapter/outbound/storetest"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
)

func newClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSessionStore(t *testing.T) {
	storetest.RunSessionStore(t, func(t *testing.T) checkout.SessionStore {
		return NewSessionStore(newClient(t), "")
	})
}

func TestTransactionStore(t *testing.T) {
	storetest.RunTransactionStore(t, func(t *testing.T) payment.TransactionStore {
		return NewTransactionStore(newClient(t), "")
	})
}

func TestSessionStore_ExpiryIndex(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	store := NewSessionStore(client, "test")

	session := storetest.NewSession(time.Now().Add(-time.Minute))
	require.NoError(t, store.Create(ctx, session))

	members, err := client.ZRange(ctx, "test:sessions:expiry", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{session.ID.String()}, members)

	require.NoError(t, session.TransitionTo(checkout.StatusExpired, time.Now().UTC()))
	require.NoError(t, store.CompareAndSwap(ctx, session, 1))

	members, err = client.ZRange(ctx, "test:sessions:expiry", 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, members)

	expired, err := store.ListExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestTransactionStore_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore(newClient(t), "")

	tx := storetest.NewTransaction(storetest.NewSession(time.Now()).ID)
	require.NoError(t, store.CreateTransaction(ctx, tx))
	assert.Error(t, store.CreateTransaction(ctx, tx.Clone()))

	n, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
