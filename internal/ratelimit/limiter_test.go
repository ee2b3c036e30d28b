package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int) (*Limiter, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(rdb, limit, time.Minute, clock.Now), clock, mr
}

func TestAllow_SlidingWindow(t *testing.T) {
	limiter, clock, _ := newTestLimiter(t, 20)
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		allowed, count, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "call %d", i)
		assert.Equal(t, i, count)
		clock.Advance(100 * time.Millisecond)
	}

	for i := 21; i <= 25; i++ {
		allowed, count, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, allowed, "call %d", i)
		assert.Equal(t, i, count)
	}

	clock.Advance(61 * time.Second)
	allowed, count, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestAllow_WindowSlides(t *testing.T) {
	limiter, clock, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, allowed)

	clock.Advance(30 * time.Second)
	allowed, _, err = limiter.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "c")
	require.NoError(t, err)
	assert.False(t, allowed)

	// the first request leaves the window, the two at +30s remain
	clock.Advance(31 * time.Second)
	allowed, count, err := limiter.Allow(ctx, "c")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, count)
}

func TestAllow_ClientsAreIndependent(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllow_KeyExpiresWithWindow(t *testing.T) {
	limiter, _, mr := newTestLimiter(t, 5)

	_, _, err := limiter.Allow(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:c"))
}

func TestAllow_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, 20)

	const n = 50
	var wg sync.WaitGroup
	var allowedCount atomic.Int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			allowed, _, err := limiter.Allow(context.Background(), "burst")
			if err == nil && allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), allowedCount.Load())
}

func TestAllow_FailsClosed(t *testing.T) {
	limiter, _, mr := newTestLimiter(t, 20)
	mr.Close()

	allowed, _, err := limiter.Allow(context.Background(), "c")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, allowed)
}
