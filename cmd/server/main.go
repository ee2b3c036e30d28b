package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AntonTsoy/tokenguard/internal/auth"
	"github.com/AntonTsoy/tokenguard/internal/db"
	"github.com/AntonTsoy/tokenguard/internal/health"
	"github.com/AntonTsoy/tokenguard/internal/history"
	"github.com/AntonTsoy/tokenguard/internal/logger"
	"github.com/AntonTsoy/tokenguard/internal/metrics"
	"github.com/AntonTsoy/tokenguard/internal/ratelimit"
	"github.com/AntonTsoy/tokenguard/internal/revocation"
	"github.com/AntonTsoy/tokenguard/internal/token"
	"github.com/AntonTsoy/tokenguard/internal/users"
	"github.com/AntonTsoy/tokenguard/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := db.Migrate(ctx, pg); err != nil {
		return err
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer rdb.Close()

	signer, err := token.NewSigner(cfg.JWTAlgorithm, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorder := history.NewRecorder(pg, log, cfg.StoreTimeout)
	defer recorder.Wait()

	svc := auth.NewService(auth.Deps{
		Signer:      signer,
		Tokens:      token.NewTokenRepository(pg, cfg.StoreTimeout),
		Revocations: revocation.New(rdb, cfg.AccessTokenTTL),
		Users:       users.NewUserRepository(pg, cfg.StoreTimeout),
		History:     recorder,
		Metrics:     m,
		Logger:      log,
	}, auth.Options{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		AdminRole:     cfg.AdminRole,
	})

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := auth.NewRouter(auth.RouterConfig{
		Prefix:  cfg.APIPrefix,
		Handler: auth.NewAuthHandler(svc, log),
		Limiter: ratelimit.New(rdb, cfg.RequestLimitPerMinute, cfg.RateLimitWindow, nil),
		Metrics: m,
		Logger:  log,
	})
	router.GET("/healthz", health.Handler(log, cfg.StoreTimeout,
		health.Check{Name: "postgres", Ping: pg.PingContext},
		health.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.ListenAddr), zap.String("prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
