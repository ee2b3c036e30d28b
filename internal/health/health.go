// Package health serves the readiness probe. Failures name the component
// that did not answer; the driver error only goes to the log.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

func Handler(log *zap.Logger, timeout time.Duration, checks ...Check) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				log.Error("health check failed", zap.String("component", check.Name), zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": check.Name})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
