package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// storefrontHeaders are the request headers browser storefronts send.
var storefrontHeaders = []string{
	"DNT", "User-Agent", "X-Requested-With", "If-Modified-Since",
	"Cache-Control", "Content-Type", "Range", "Authorization",
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins  []string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        time.Duration
}

// DefaultCORSConfig opens the checkout API to storefronts on any origin. It
// lets them send idempotency keys and read the request ID, rate limit and
// replay headers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: append(append([]string(nil), storefrontHeaders...), RequestIDHeader, IdempotencyKeyHeader),
		ExposeHeaders: []string{
			RequestIDHeader, RateLimitLimit, RateLimitRemaining, RetryAfter, IdempotentReplayHeader,
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORS answers preflight requests and tags responses per cfg. Credentials are
// never allowed since every origin is.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  cfg.AllowHeaders,
		ExposeHeaders: cfg.ExposeHeaders,
		MaxAge:        cfg.MaxAge,
	})
}
