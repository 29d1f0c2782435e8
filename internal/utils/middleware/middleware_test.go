package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/checkout/internal/shared/logger"
	"github.com/uniedit/checkout/internal/utils/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestRequestID(t *testing.T) {
	t.Run("generates new request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID(nil))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, GetRequestID(c))
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		headerID := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, headerID)
		assert.Equal(t, headerID, w.Body.String())
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID(nil))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, GetRequestID(c))
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "existing-request-id-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "existing-request-id-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "existing-request-id-123", w.Body.String())
	})

	t.Run("request context carries a scoped logger", func(t *testing.T) {
		log, logs := observedLogger(zapcore.InfoLevel)
		router := gin.New()
		router.Use(RequestID(log))
		router.GET("/test", func(c *gin.Context) {
			logger.FromContext(c.Request.Context()).Info("inside handler")
			c.Status(http.StatusNoContent)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		router.ServeHTTP(httptest.NewRecorder(), req)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "req-42", logs.All()[0].ContextMap()["request_id"])
	})
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"success is info", http.StatusOK, zapcore.InfoLevel},
		{"client error is warn", http.StatusNotFound, zapcore.WarnLevel},
		{"server error is error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observedLogger(zapcore.DebugLevel)
			router := gin.New()
			router.Use(RequestID(nil), Logging(log))
			router.GET("/test", func(c *gin.Context) {
				c.String(tt.status, "body")
			})

			req := httptest.NewRequest("GET", "/test?foo=bar", nil)
			req.Header.Set("User-Agent", "TestAgent/1.0")
			router.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, "http request", entry.Message)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/test", fields["path"])
			assert.Equal(t, "foo=bar", fields["query"])
			assert.Equal(t, "TestAgent/1.0", fields["user_agent"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		log, logs := observedLogger(zapcore.ErrorLevel)
		router := gin.New()
		router.Use(Recovery(log))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "panic recovered", logs.All()[0].Message)
		assert.Equal(t, "test panic", logs.All()[0].ContextMap()["error"])
	})

	t.Run("works with nil logger", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(nil))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS(DefaultCORSConfig()))
	router.POST("/checkout/session", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodOptions, "/checkout/session", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, "dnt")
	assert.Contains(t, allowed, strings.ToLower(IdempotencyKeyHeader))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "/checkout/session", nil)
	req.Header.Set("Origin", "http://shop.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, exposed, strings.ToLower(IdempotentReplayHeader))
	assert.Contains(t, exposed, strings.ToLower(RetryAfter))
}

func TestMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/checkout/session/:sessionId", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/checkout/session/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/checkout/session/:sessionId", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

type fakeLimiter struct {
	allowed int
	calls   int
	err     error
}

func (l *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.calls++
	if l.err != nil {
		return false, l.err
	}
	return l.calls <= l.allowed, nil
}

func (l *fakeLimiter) Remaining(_ context.Context, _ string, limit int, _ time.Duration) (int, error) {
	return max(limit-l.calls, 0), nil
}

func TestRateLimit(t *testing.T) {
	newRouter := func(limiter RateLimiter) *gin.Engine {
		router := gin.New()
		router.Use(RateLimit(limiter, RateLimitConfig{Limit: 2, Window: time.Minute}, nil))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("rejects over the limit", func(t *testing.T) {
		router := newRouter(&fakeLimiter{allowed: 2})

		codes := make([]int, 3)
		for i := range codes {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			codes[i] = w.Code
			if i == 2 {
				assert.Equal(t, "60", w.Header().Get(RetryAfter))
				assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
			}
		}
		assert.Equal(t, []int{200, 200, 429}, codes)
	})

	t.Run("fails open on limiter error", func(t *testing.T) {
		router := newRouter(&fakeLimiter{err: errors.New("redis down")})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil limiter passes", func(t *testing.T) {
		router := newRouter(nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	router := gin.New()
	router.Use(Idempotency(client, IdempotencyConfig{}))
	router.POST("/checkout/payment", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	post := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout/payment", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := post("key-1", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"call":1}`, first.Body.String())

	replay := post("key-1", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, `{"call":1}`, replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get(IdempotentReplayHeader))
	assert.Equal(t, 1, calls)

	reused := post("key-1", `{"sessionId":"s2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Equal(t, 1, calls)

	fresh := post("", `{"sessionId":"s1"}`)
	assert.JSONEq(t, `{"call":2}`, fresh.Body.String())

	require.NoError(t, mr.Set(generateIdempotencyKeyFor(http.MethodPost, "/checkout/payment", "key-2")+":lock", "1"))
	busy := post("key-2", `{}`)
	assert.Equal(t, http.StatusConflict, busy.Code)
}
