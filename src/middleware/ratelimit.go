package middleware

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window counter keyed by trader identity where the
// request carries one, falling back to the forwarded or direct IP. Keying
// on the trader stops one busy simulated trader from starving everyone
// behind the same proxy address. A client's stale windows are cleaned up
// whenever a new window starts.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	windows        map[string]int
	mu             sync.Mutex
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		windows:        make(map[string]int),
	}
}

func (rl *RateLimiter) clientKey(c *fiber.Ctx) string {
	if trader := c.Get("X-Trader-ID"); trader != "" {
		return "trader:" + trader
	}
	if trader := c.Query("trader_id"); trader != "" {
		return "trader:" + trader
	}

	ip := c.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	return "ip:" + ip
}

func (rl *RateLimiter) windowKey(client string, now time.Time) string {
	windowNumber := now.Unix() / int64(rl.windowDuration.Seconds())
	return fmt.Sprintf("%s_%d", client, windowNumber)
}

func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := rl.windowKey(client, time.Now())

	count, exists := rl.windows[key]
	if !exists {
		rl.dropOldWindows(client, key)
		rl.windows[key] = 1
		return true
	}

	if count >= rl.maxRequests {
		return false
	}

	rl.windows[key] = count + 1
	return true
}

func (rl *RateLimiter) dropOldWindows(client, currentKey string) {
	prefix := client + "_"
	for key := range rl.windows {
		if key != currentKey && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(rl.windows, key)
		}
	}
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := rl.clientKey(c)

		if !rl.Allow(client) {
			log.Warn().
				Str("client", client).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())

		return c.Next()
	}
}
