package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return w
}

func redisCheck(rdb *redis.Client) Check {
	return Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}
}

func TestHandler_OK(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	postgres := Check{Name: "postgres", Ping: func(context.Context) error { return nil }}
	w := serve(Handler(nil, time.Second, postgres, redisCheck(rdb)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandler_UnavailableHidesDriverError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	core, logs := observer.New(zapcore.ErrorLevel)
	w := serve(Handler(zap.New(core), time.Second, redisCheck(rdb)))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable","component":"redis"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), addr)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "health check failed", entry.Message)
	assert.Equal(t, "redis", entry.ContextMap()["component"])
	assert.Contains(t, entry.ContextMap()["error"], addr)
}

func TestHandler_StopsAtFirstFailure(t *testing.T) {
	var redisPinged bool
	postgres := Check{Name: "postgres", Ping: func(context.Context) error { return context.DeadlineExceeded }}
	redisStub := Check{Name: "redis", Ping: func(context.Context) error {
		redisPinged = true
		return nil
	}}

	w := serve(Handler(nil, time.Second, postgres, redisStub))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable","component":"postgres"}`, w.Body.String())
	assert.False(t, redisPinged)
}
