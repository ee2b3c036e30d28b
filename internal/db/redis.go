package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects and pings. Read and write timeouts bound every
// command so a stalled Redis fails the request instead of hanging it.
func NewRedisClient(ctx context.Context, addr, password string, database int, timeout time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           database,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
