package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRedisLimiter(t *testing.T, action func(mr *miniredis.Miniredis, l *RedisLimiter)) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	action(mr, NewRedisLimiter(client))
}

func TestRedisLimiterAllowsUpToLimit(t *testing.T) {
	withRedisLimiter(t, func(mr *miniredis.Miniredis, l *RedisLimiter) {
		for i := 0; i < 2; i++ {
			result, err := l.Check("credential:abc", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.LessOrEqual(t, result.RetryAfter, 60)
		}

		result, err := l.Check("credential:abc", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Greater(t, result.RetryAfter, 0)
	})
}

func TestRedisLimiterResetsAfterWindow(t *testing.T) {
	withRedisLimiter(t, func(mr *miniredis.Miniredis, l *RedisLimiter) {
		result, err := l.Check("credential:abc", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = l.Check("credential:abc", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		mr.FastForward(time.Minute)

		result, err = l.Check("credential:abc", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

func TestRedisLimiterIdentitiesAreIndependent(t *testing.T) {
	withRedisLimiter(t, func(mr *miniredis.Miniredis, l *RedisLimiter) {
		result, err := l.Check("credential:abc", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = l.Check("address:10.0.0.1", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

func TestRedisLimiterReArmsLostExpiry(t *testing.T) {
	withRedisLimiter(t, func(mr *miniredis.Miniredis, l *RedisLimiter) {
		// A counter without expiry, as left by a crash between INCR and
		// EXPIRE, must not deny forever.
		mr.Set(keyPrefix+"credential:abc", "5")

		result, err := l.Check("credential:abc", 10, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Greater(t, result.RetryAfter, 0)

		ttl := mr.TTL(keyPrefix + "credential:abc")
		assert.Equal(t, time.Minute, ttl)
	})
}
