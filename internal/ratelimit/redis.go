package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL bounds how long exhausted counters linger. Sessions are far
// shorter-lived than this, so the bound never resets a live session.
const counterTTL = 72 * time.Hour

// Redis is a Limiter backed by a shared Redis counter, giving correct bounds
// across horizontally scaled instances.
type Redis struct {
	rdb     *redis.Client
	ceiling int
}

// NewRedis creates a Redis limiter. If ceiling <= 0, DefaultCeiling is used.
func NewRedis(rdb *redis.Client, ceiling int) *Redis {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Redis{rdb: rdb, ceiling: ceiling}
}

// Take implements Limiter via an atomic INCR against the session's key.
func (r *Redis) Take(ctx context.Context, sessionID string) error {
	key := "interviewd:calls:" + sessionID

	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incrementing session counter: %w", err)
	}
	if n == 1 {
		// First call for this session; bound the key's lifetime.
		if err := r.rdb.Expire(ctx, key, counterTTL).Err(); err != nil {
			return fmt.Errorf("setting counter ttl: %w", err)
		}
	}
	if n > int64(r.ceiling) {
		return ErrLimitExceeded
	}
	return nil
}
