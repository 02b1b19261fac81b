package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/xunlong/api/pkg/response"
)

// RateLimiter builds per-route limiters keyed by client IP. Counters are
// in-process; a restart resets them.
type RateLimiter struct{}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// Limit creates a rate limiting middleware with a fixed window.
func (rl *RateLimiter) Limit(maxRequests int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.RateLimited(c)
		},
	})
}

// CreateLimit bounds task creation. Generation jobs are expensive, so the
// window is per hour.
func (rl *RateLimiter) CreateLimit(maxPerHour int) fiber.Handler {
	if maxPerHour <= 0 {
		maxPerHour = 30
	}
	return rl.Limit(maxPerHour, time.Hour)
}

// QueryLimit bounds status and list polling.
func (rl *RateLimiter) QueryLimit(maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 120
	}
	return rl.Limit(maxPerMin, time.Minute)
}
