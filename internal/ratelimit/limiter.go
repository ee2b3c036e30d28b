// Package ratelimit implements a sliding-window request limiter over Redis
// sorted sets. Each request is a member scored by its timestamp.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("rate limit store unavailable")

const keyPrefix = "ratelimit:"

type Limiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(rdb redis.UniversalClient, limit int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, now: now}
}

// Allow records a request for identity and reports whether it fits in the
// window. count includes the current request, so with limit 20 the 21st
// request in a window is the first one denied. Denied requests are recorded
// too. On a store error the request is denied.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, int, error) {
	now := l.now()
	key := keyPrefix + identity
	cutoff := "(" + strconv.FormatInt(now.Add(-l.window).UnixMicro(), 10)
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		card = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := int(card.Val()) + 1
	return count <= l.limit, count, nil
}

func (l *Limiter) Limit() int {
	return l.limit
}
