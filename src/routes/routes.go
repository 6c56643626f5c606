package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"stock-exchange/src/handlers"
	"stock-exchange/src/middleware"
)

func SetupRoutes(app *fiber.App, h *handlers.ExchangeHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	availability := middleware.DefaultAvailability(h.Exchange)
	app.Use(availability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", h.SubmitOrder)
	api.Get("/orders/:id", h.GetOrder)
	api.Patch("/orders/:id", h.ModifyOrder)
	api.Delete("/orders/:id", h.CancelOrder)
	api.Get("/orderbook/:symbol", h.GetOrderBook)
	api.Get("/trades", h.GetTrades)
	api.Get("/alerts", h.GetAlerts)
	api.Post("/alerts/:id/claim", h.ClaimAlert)
	api.Get("/analysis", h.GetAllAnalyses)
	api.Get("/analysis/:symbol", h.GetAnalysis)

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", h.Metrics)
}
