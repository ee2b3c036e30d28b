package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AntonTsoy/tokenguard/internal/metrics"
)

type RequestLimiter interface {
	Allow(ctx context.Context, identity string) (bool, int, error)
	Limit() int
}

// RateLimit rejects clients that exceed the limiter's window and reports the
// window's budget in X-RateLimit-* headers. A limiter that cannot reach its
// store rejects the request with 503.
func RateLimit(limiter RequestLimiter, m *metrics.Metrics, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		allowed, count, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			m.RateLimitDecision("error")
			log.Error("rate limiter unavailable", zap.String("client_ip", c.ClientIP()), zap.Error(err))
			abortWithReason(c, http.StatusServiceUnavailable, "service_unavailable")
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(limiter.Limit()-count, 0)))
		if !allowed {
			m.RateLimitDecision("denied")
			log.Debug("rate limit exceeded", zap.String("client_ip", c.ClientIP()), zap.Int("count", count))
			status, reason := statusFor(ErrRateLimitExceeded)
			abortWithReason(c, status, reason)
			return
		}
		m.RateLimitDecision("allowed")
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
