package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AntonTsoy/tokenguard/internal/logger"
	"github.com/AntonTsoy/tokenguard/internal/metrics"
)

type RouterConfig struct {
	Prefix  string
	Handler *AuthHandler
	Limiter RequestLimiter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewRouter mounts the auth routes under cfg.Prefix behind the rate limiter.
// Routes outside the prefix, such as health checks, are left to the caller.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(logger.RequestLogger(log), gin.Recovery())

	group := router.Group(cfg.Prefix + "/auth")
	group.Use(RateLimit(cfg.Limiter, cfg.Metrics, log))
	group.POST("/login", cfg.Handler.Login)
	group.POST("/refresh", cfg.Handler.Refresh)
	group.POST("/logout", cfg.Handler.Logout)
	group.GET("/me", cfg.Handler.Me)
	group.GET("/verify", cfg.Handler.Verify)
	group.GET("/history", cfg.Handler.History)

	return router
}
