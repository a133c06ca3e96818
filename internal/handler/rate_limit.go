package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/clavis-auth/internal/service"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits requests per key within a sliding window.
// A limiter failure lets the request through.
func RateLimitMiddleware(rateLimiter service.RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		decision, err := rateLimiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			respondError(c, http.StatusTooManyRequests, CodeRateLimited, "too many requests, try again later")
			return
		}

		c.Next()
	}
}

// LoginKey keys login attempts by route and client IP
func LoginKey(c *gin.Context) string {
	return "login:" + c.FullPath() + ":" + c.ClientIP()
}
