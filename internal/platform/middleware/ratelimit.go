package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

// Limiter decides whether one more request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// tokenBucket refills perMinute tokens per minute up to perMinute.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(perMinute int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(perMinute),
		maxTokens:  float64(perMinute),
		refillRate: float64(perMinute) / 60,
		lastRefill: now,
	}
}

func (b *tokenBucket) take(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = math.Min(b.maxTokens, b.tokens+now.Sub(b.lastRefill).Seconds()*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, time.Minute
	}
	wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	return false, wait
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{perMinute: perMinute, now: time.Now, buckets: make(map[string]*tokenBucket)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.perMinute, now)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	allowed, wait := b.take(now)
	return allowed, wait, nil
}

// KeyFunc derives the throttling key of a request.
type KeyFunc func(c echo.Context) string

// ByIP keys requests by client address under prefix.
func ByIP(prefix string) KeyFunc {
	return func(c echo.Context) string { return prefix + ":" + c.RealIP() }
}

// RateLimit throttles requests with l. When the limiter backend fails the
// request is let through and the failure is logged.
func RateLimit(l Limiter, limitPerMinute int, key KeyFunc, logger zerolog.Logger) echo.MiddlewareFunc {
	limit := strconv.Itoa(limitPerMinute)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, wait, err := l.Allow(c.Request().Context(), key(c))
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if !allowed {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				h.Set("X-RateLimit-Remaining", "0")
				return apperr.RateLimited("rate limit exceeded").WithDetails("retry_after", secs)
			}
			return next(c)
		}
	}
}
