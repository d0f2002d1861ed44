package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed one-minute window counter shared by every
// replica behind the same Redis.
type RedisLimiter struct {
	client    *redis.Client
	perMinute int
	window    time.Duration
	now       func() time.Time
}

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, perMinute: perMinute, window: time.Minute, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	slot := l.now().Unix() / int64(l.window.Seconds())
	k := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit: %w", err)
	}
	// Expiry is set once, on the first hit of the window.
	if count == 1 {
		l.client.Expire(ctx, k, l.window)
	}

	if count > int64(l.perMinute) {
		ttl, err := l.client.TTL(ctx, k).Result()
		if err != nil || ttl <= 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}
