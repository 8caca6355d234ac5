package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// RateLimiter counts requests per key in fixed redis windows.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter. Limiting is off in the test and development
// environments so local workflows are not throttled.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch env {
	case "", "test", "development":
		return &RateLimiter{rdb: rdb, enabled: false}
	}
	return &RateLimiter{rdb: rdb, enabled: true}
}

// NewEnforcingRateLimiter returns a limiter that is always on.
func NewEnforcingRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, enabled: true}
}

// Allow reports whether another request for resource/id fits within limit per window.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// Limit returns a Fiber middleware enforcing limit requests per window for resource.
// It keys by authenticated userID when set, otherwise by remote IP, and fails open.
func (l *RateLimiter) Limit(resource string, limit int, window time.Duration) fiber.Handler {
	return l.LimitWithPolicy(resource, limit, window, FailOpen)
}

// LimitWithPolicy is Limit with an explicit failure policy.
func (l *RateLimiter) LimitWithPolicy(resource string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		allowed, err := l.Allow(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					"resource", resource, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"message": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
