package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/handler"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubLimiter struct {
	decision service.RateLimitDecision
	err      error
	keys     []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (service.RateLimitDecision, error) {
	l.keys = append(l.keys, key)
	return l.decision, l.err
}

func rateLimitedRouter(limiter service.RateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/auth/google/login",
		handler.RateLimitMiddleware(limiter, 5, time.Minute, handler.LoginKey, zap.NewNop()),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		limiter := &stubLimiter{decision: service.RateLimitDecision{Allowed: true, Limit: 5, Remaining: 4}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/login", nil)
		req.RemoteAddr = "203.0.113.7:4711"

		rateLimitedRouter(limiter).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"login:/api/v1/auth/google/login:203.0.113.7"}, limiter.keys)
	})

	t.Run("limited", func(t *testing.T) {
		limiter := &stubLimiter{decision: service.RateLimitDecision{Limit: 5, RetryAfter: 1500 * time.Millisecond}}
		w := httptest.NewRecorder()

		rateLimitedRouter(limiter).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/login", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), handler.CodeRateLimited)
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis: connection refused")}
		w := httptest.NewRecorder()

		rateLimitedRouter(limiter).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/login", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(handler.CORSMiddleware([]string{"https://play.example.com"}, []string{"GET", "POST"}, []string{"Authorization"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://play.example.com")
		r.ServeHTTP(w, req)

		assert.Equal(t, "https://play.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		r.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "https://play.example.com")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
