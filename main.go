package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"stock-exchange/src/exchange"
	"stock-exchange/src/handlers"
	"stock-exchange/src/logger"
	"stock-exchange/src/routes"
	"stock-exchange/src/sim"
)

func main() {
	_ = godotenv.Load()

	logger.InitLogger()
	log := logger.GetLogger()

	log.Info().Msg("Initializing Stock Exchange")

	ex := exchange.NewExchange(exchange.DefaultConfig())
	handler := handlers.NewExchangeHandler(ex)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, handler)

	simCtx, stopSim := context.WithCancel(context.Background())
	if envTraders := os.Getenv("SIM_TRADERS"); envTraders != "" {
		if traders, err := strconv.Atoi(envTraders); err == nil && traders > 0 {
			log.Info().Int("traders", traders).Msg("Starting simulated traders")
			go sim.RunTraders(simCtx, ex, traders, 0)
		}
	}

	port := ":8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("Stock Exchange started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/orders",
				"GET    /api/v1/orders/:id",
				"PATCH  /api/v1/orders/:id",
				"DELETE /api/v1/orders/:id",
				"GET    /api/v1/orderbook/:symbol",
				"GET    /api/v1/trades",
				"GET    /api/v1/alerts",
				"POST   /api/v1/alerts/:id/claim",
				"GET    /api/v1/analysis",
				"GET    /api/v1/analysis/:symbol",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	stopSim()

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", shutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	}

	// stop the engine after HTTP so in-flight requests see a live queue;
	// commands still queued at this point are dropped (no drain guarantee)
	ex.Close()

	log.Info().Msg("Shutdown complete")
	logger.CloseLogger()
}
