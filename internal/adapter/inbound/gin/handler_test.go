package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/adapter/outbound/gateway"
	"github.com/uniedit/checkout/internal/adapter/outbound/memory"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// nopScheduler drops jobs; tests settle explicitly.
type nopScheduler struct{}

func (nopScheduler) Schedule(string, uuid.UUID, time.Duration) error { return nil }

type testServer struct {
	router   *gin.Engine
	clock    *testClock
	payments *payment.Processor
	refunds  *payment.RefundProcessor
}

func newTestServer(t *testing.T, gw payment.SettlementGateway) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessions := memory.NewSessionStore()
	txs := memory.NewTransactionStore()

	manager := checkout.NewManager(sessions, checkout.DefaultConfig(), nil, checkout.WithClock(clock.Now))
	payments := payment.NewProcessor(sessions, txs, gw, nopScheduler{}, payment.DefaultConfig(), nil, payment.WithClock(clock.Now))
	refunds := payment.NewRefundProcessor(txs, nopScheduler{}, payment.DefaultConfig(), nil, payment.WithClock(clock.Now))

	router := gin.New()
	RegisterHealthRoutes(router, NewHealthAdapter(manager, payments))
	group := router.Group("/checkout")
	RegisterCheckoutRoutes(group, NewCheckoutAdapter(manager, "USD"))
	RegisterPaymentRoutes(group, NewPaymentAdapter(payments), NewRefundAdapter(refunds))

	return &testServer{router: router, clock: clock, payments: payments, refunds: refunds}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func sessionBody() map[string]any {
	return map[string]any{
		"userId": "user-1",
		"items": []map[string]any{
			{"productId": "p1", "name": "Widget", "price": 40, "quantity": 2},
		},
		"shippingAddress": map[string]any{"city": "Berlin"},
	}
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/checkout/session", sessionBody())
	require.Equal(t, http.StatusCreated, w.Code)
	return body["session"].(map[string]any)["id"].(string)
}

func (s *testServer) pay(t *testing.T, sessionID string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
		"sessionId":      sessionID,
		"paymentMethod":  "credit_card",
		"paymentDetails": map[string]any{"cardNumber": "4242424242424242", "brand": "visa"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return body["transactionId"].(string)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	detail, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error body: %v", body)
	return detail["code"].(string)
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true, Code: "AUTH1"})

	t.Run("success", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/checkout/session", sessionBody())

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Checkout session created", body["message"])
		session := body["session"].(map[string]any)
		assert.Equal(t, "initialized", session["status"])
		pricing := session["pricing"].(map[string]any)
		assert.Equal(t, 80.0, pricing["subtotal"])
		assert.Equal(t, 6.4, pricing["tax"])
		assert.Equal(t, 9.99, pricing["shipping"])
		assert.Equal(t, 96.39, pricing["total"])
		assert.Equal(t, "USD", pricing["currency"])
	})

	t.Run("missing user", func(t *testing.T) {
		req := sessionBody()
		delete(req, "userId")
		w, body := s.do(t, http.MethodPost, "/checkout/session", req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
	})

	t.Run("empty cart", func(t *testing.T) {
		req := sessionBody()
		req["items"] = []any{}
		w, body := s.do(t, http.MethodPost, "/checkout/session", req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
	})

	t.Run("malformed json", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/checkout/session", "{")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
	})
}

func TestGetSession(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true, Code: "AUTH1"})
	id := s.createSession(t)

	w, body := s.do(t, http.MethodGet, "/checkout/session/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, body["id"])

	w, body = s.do(t, http.MethodGet, "/checkout/session/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))

	w, body = s.do(t, http.MethodGet, "/checkout/session/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	s.clock.Advance(31 * time.Minute)
	w, body = s.do(t, http.MethodGet, "/checkout/session/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", body["status"])
}

func TestSubmitPayment(t *testing.T) {
	t.Run("accepted and settled", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true, Code: "AUTH1"})
		id := s.createSession(t)

		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
			"sessionId":     id,
			"paymentMethod": "paypal",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Payment processing initiated", body["message"])
		assert.Equal(t, "processing", body["status"])
		assert.Equal(t, "processing", body["session"].(map[string]any)["status"])

		txID := body["transactionId"].(string)
		require.NoError(t, s.payments.Settle(context.Background(), uuid.MustParse(txID)))

		w, body = s.do(t, http.MethodGet, "/checkout/payment/"+txID+"/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, "AUTH1", body["authorizationCode"])

		w, body = s.do(t, http.MethodGet, "/checkout/session/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "completed", body["status"])
	})

	t.Run("missing fields", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true})
		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{"paymentMethod": "paypal"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
	})

	t.Run("unknown session", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true})
		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
			"sessionId":     uuid.NewString(),
			"paymentMethod": "paypal",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, body))
	})

	t.Run("unsupported method", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true})
		id := s.createSession(t)
		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
			"sessionId":     id,
			"paymentMethod": "barter",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
	})

	t.Run("already claimed", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true})
		id := s.createSession(t)
		s.pay(t, id)

		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
			"sessionId":     id,
			"paymentMethod": "paypal",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_STATE", errorCode(t, body))
	})

	t.Run("expired session", func(t *testing.T) {
		s := newTestServer(t, gateway.Fixed{Approve: true})
		id := s.createSession(t)
		s.clock.Advance(31 * time.Minute)

		w, body := s.do(t, http.MethodPost, "/checkout/payment", map[string]any{
			"sessionId":     id,
			"paymentMethod": "paypal",
		})
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, "EXPIRED", errorCode(t, body))
	})
}

func TestGetTransactionStatus_NotFound(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true})

	for _, id := range []string{uuid.NewString(), "nope"} {
		w, body := s.do(t, http.MethodGet, "/checkout/payment/"+id+"/status", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, body))
	}
}

func TestRefunds(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true, Code: "AUTH1"})
	txID := s.pay(t, s.createSession(t))

	w, body := s.do(t, http.MethodPost, "/checkout/payment/"+txID+"/refund", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "processing transactions are not refundable")
	assert.Equal(t, "INVALID_STATE", errorCode(t, body))

	require.NoError(t, s.payments.Settle(context.Background(), uuid.MustParse(txID)))

	w, body = s.do(t, http.MethodPost, "/checkout/payment/"+txID+"/refund", map[string]any{"amount": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))

	w, body = s.do(t, http.MethodPost, "/checkout/payment/"+txID+"/refund", map[string]any{"amount": 10, "reason": "damaged"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Refund initiated", body["message"])
	refund := body["refund"].(map[string]any)
	assert.Equal(t, "processing", refund["status"])
	assert.Equal(t, "damaged", refund["reason"])
	assert.Equal(t, "refunded", body["transaction"].(map[string]any)["status"])
	refundID := refund["id"].(string)

	w, body = s.do(t, http.MethodPost, "/checkout/payment/"+txID+"/refund", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "a transaction is refunded once")
	assert.Equal(t, "INVALID_STATE", errorCode(t, body))

	require.NoError(t, s.refunds.SettleRefund(context.Background(), uuid.MustParse(refundID)))

	w, body = s.do(t, http.MethodGet, "/checkout/refund/"+refundID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])

	w, _ = s.do(t, http.MethodGet, "/checkout/refund/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/checkout/payment/"+uuid.NewString()+"/refund", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPaymentMethods(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true})

	w, body := s.do(t, http.MethodGet, "/checkout/payment-methods", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "credit_card", body["defaultMethod"])
	assert.Len(t, body["paymentMethods"], len(payment.ListPaymentMethods().PaymentMethods))
}

func TestQuoteShipping(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true})

	w, body := s.do(t, http.MethodPost, "/checkout/shipping", map[string]any{
		"items": []map[string]any{{"productId": "p1", "price": 150, "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	options := body["shippingOptions"].([]any)
	require.Len(t, options, 3)
	assert.Equal(t, 0.0, options[0].(map[string]any)["price"])
	assert.Equal(t, 19.99, options[1].(map[string]any)["price"])
	assert.Equal(t, 29.99, options[2].(map[string]any)["price"])
	assert.Equal(t, 100.0, body["freeShippingThreshold"])
	assert.Equal(t, 200.0, body["expeditedFreeThreshold"])

	w, body = s.do(t, http.MethodPost, "/checkout/shipping", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, body))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, gateway.Fixed{Approve: true})
	s.pay(t, s.createSession(t))
	s.createSession(t)

	w, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, 2.0, body["activePaymentSessions"])
	assert.Equal(t, 1.0, body["totalTransactions"])
}

type failingStats struct{}

func (failingStats) Stats(context.Context) (checkout.Stats, error) {
	return checkout.Stats{}, errors.New("dial tcp 10.0.0.1:6379: connection refused")
}

func TestHandleError_HidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterHealthRoutes(router, NewHealthAdapter(failingStats{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
