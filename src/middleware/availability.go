package middleware

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"stock-exchange/src/exchange"
)

// Availability rejects traffic the engine cannot serve: maintenance mode,
// an overloaded server, or an exchange whose engine loop has stopped.
type Availability struct {
	exchange              *exchange.Exchange
	maintenanceMode       atomic.Bool
	maxConcurrentRequests int64
	inFlightRequests      atomic.Int64
}

func NewAvailability(ex *exchange.Exchange, maxConcurrentRequests int64) *Availability {
	a := &Availability{
		exchange:              ex,
		maxConcurrentRequests: maxConcurrentRequests,
	}

	if os.Getenv("MAINTENANCE_MODE") == "1" {
		a.maintenanceMode.Store(true)
		log.Warn().Msg("Service is in maintenance mode - all requests will return 503")
	}

	return a
}

func (a *Availability) SetMaintenanceMode(enabled bool) {
	a.maintenanceMode.Store(enabled)
	if enabled {
		log.Warn().Msg("Service maintenance mode enabled")
	} else {
		log.Info().Msg("Service maintenance mode disabled")
	}
}

func (a *Availability) InFlightRequests() int64 {
	return a.inFlightRequests.Load()
}

func (a *Availability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// health stays reachable so operators can see why traffic is refused
		if c.Path() == "/health" {
			return c.Next()
		}

		if a.maintenanceMode.Load() {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("Request rejected: service in maintenance mode")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Service unavailable",
				"message": "The service is currently undergoing maintenance. Please try again later.",
			})
		}

		if a.exchange != nil && a.exchange.Closed() {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request rejected: exchange engine stopped")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Service unavailable",
				"message": "The exchange is shutting down.",
			})
		}

		if a.maxConcurrentRequests > 0 {
			current := a.inFlightRequests.Load()
			if current >= a.maxConcurrentRequests {
				log.Warn().
					Str("path", c.Path()).
					Int64("current_requests", current).
					Int64("max_requests", a.maxConcurrentRequests).
					Msg("Request rejected: server overload")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":   "Service unavailable",
					"message": "The service is currently overloaded. Please try again later.",
				})
			}
		}

		a.inFlightRequests.Add(1)
		defer a.inFlightRequests.Add(-1)

		return c.Next()
	}
}

func DefaultAvailability(ex *exchange.Exchange) *Availability {
	maxConcurrent := int64(0)

	if envMax := os.Getenv("MAX_CONCURRENT_REQUESTS"); envMax != "" {
		if parsed, err := strconv.ParseInt(envMax, 10, 64); err == nil && parsed > 0 {
			maxConcurrent = parsed
			log.Info().
				Int64("max_concurrent_requests", maxConcurrent).
				Msg("Server overload detection enabled")
		}
	}

	return NewAvailability(ex, maxConcurrent)
}
