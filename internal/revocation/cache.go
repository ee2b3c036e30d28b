// Package revocation tracks access tokens that were explicitly revoked before
// their natural expiry. Entries live in one Redis set per user.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("revocation store unavailable")

const keyPrefix = "revoked:"

// The set expiry only grows. Shrinking it to a fresh token's shorter remaining
// lifetime would drop revocations of older, still valid tokens.
const revokeScript = `
redis.call("SADD", KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
local current = redis.call("PTTL", KEYS[1])
if current < ttl then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var revokeLua = redis.NewScript(revokeScript)

type Cache struct {
	rdb    redis.UniversalClient
	maxTTL time.Duration
}

// New returns a Cache whose entries never outlive maxTTL, the access token
// lifetime.
func New(rdb redis.UniversalClient, maxTTL time.Duration) *Cache {
	return &Cache{rdb: rdb, maxTTL: maxTTL}
}

// Revoke is idempotent.
func (c *Cache) Revoke(ctx context.Context, userID, accessToken string, ttl time.Duration) error {
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	err := revokeLua.Run(ctx, c.rdb, []string{key(userID)}, accessToken, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Cache) IsRevoked(ctx context.Context, userID, accessToken string) (bool, error) {
	revoked, err := c.rdb.SIsMember(ctx, key(userID), accessToken).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return revoked, nil
}

func key(userID string) string {
	return keyPrefix + userID
}
