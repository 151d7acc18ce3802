package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a Redis server on localhost:6379; skipped otherwise.
func setupRedisLimiter(t *testing.T) *RedisLimiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	limiter := NewRedisLimiter(client, "test:ratelimit:")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Ping(ctx); err != nil {
		client.Close()
		t.Skipf("Redis server not available: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	return limiter
}

// clearBucket drops the token bucket stored for key.
func clearBucket(t *testing.T, l *RedisLimiter, key string) {
	t.Helper()
	k := l.keyPrefix + key
	require.NoError(t, l.client.Del(context.Background(), k+":tokens", k+":timestamp").Err())
}

func TestRedisLimiter_Take(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()
	key := "participant:redis-test"
	clearBucket(t, limiter, key)
	t.Cleanup(func() { clearBucket(t, limiter, key) })

	cfg := RateLimitConfig{MaxRequests: 3, Window: time.Minute}
	for i := 0; i < 3; i++ {
		d, err := limiter.Take(ctx, key, cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}

	d, err := limiter.Take(ctx, key, cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter := setupRedisLimiter(t)
	ctx := context.Background()
	first, second := "participant:redis-a", "participant:redis-b"
	clearBucket(t, limiter, first)
	clearBucket(t, limiter, second)
	t.Cleanup(func() {
		clearBucket(t, limiter, first)
		clearBucket(t, limiter, second)
	})

	cfg := RateLimitConfig{MaxRequests: 1, Window: time.Minute}
	d, err := limiter.Take(ctx, first, cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = limiter.Take(ctx, first, cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = limiter.Take(ctx, second, cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
