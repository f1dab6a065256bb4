package ratelimit

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const keyPrefix = "ratelimit:"

// RedisLimiter implements the same fixed-window contract over a shared redis
// instance, for deployments running several depot processes behind one quota.
type RedisLimiter struct {
	db redis.UniversalClient
}

func NewRedisLimiter(db redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{db: db}
}

func (l *RedisLimiter) Check(identity string, limit int, window time.Duration) (Result, error) {
	key := keyPrefix + identity

	count, err := l.db.Incr(key).Result()
	if err != nil {
		return Result{}, errors.Wrap(err, "incrementing rate limit counter")
	}
	if count == 1 {
		if err := l.db.Expire(key, window).Err(); err != nil {
			return Result{}, errors.Wrap(err, "setting rate limit window")
		}
	}

	ttl, err := l.db.TTL(key).Result()
	if err != nil {
		return Result{}, errors.Wrap(err, "reading rate limit window")
	}
	if ttl < 0 {
		// The counter lost its expiry (e.g., a crash between INCR and
		// EXPIRE). Re-arm the window rather than denying forever.
		if err := l.db.Expire(key, window).Err(); err != nil {
			return Result{}, errors.Wrap(err, "re-arming rate limit window")
		}
		ttl = window
	}

	return Result{Allowed: count <= int64(limit), RetryAfter: retryAfter(ttl)}, nil
}
