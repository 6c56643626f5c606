package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestAllowEnforcesWindowLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("Expected request %d to pass", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("Expected fourth request to be rejected")
	}
}

func TestClientsAreCountedIndependently(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	if !limiter.Allow("1.2.3.4") {
		t.Fatal("Expected first client to pass")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Error("Expected second client to pass despite first being at limit")
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("Expected first client to be at its limit")
	}
}

func TestStaleWindowsAreDropped(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)

	// a leftover counter from an earlier window
	limiter.windows["1.2.3.4_0"] = 5

	if !limiter.Allow("1.2.3.4") {
		t.Fatal("Expected request in a fresh window to pass")
	}
	if _, exists := limiter.windows["1.2.3.4_0"]; exists {
		t.Error("Expected the stale window counter to be cleaned up")
	}
}

// TestTradersLimitedIndependentlyOfIP verifies that requests carrying a
// trader identity are counted per trader, so two traders behind the same
// address never share a budget.
func TestTradersLimitedIndependentlyOfIP(t *testing.T) {
	app := fiber.New()
	app.Use(NewRateLimiter(1, time.Minute).Middleware())
	app.Get("/alerts", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	get := func(traderID string) int {
		req := httptest.NewRequest(http.MethodGet, "/alerts?trader_id="+traderID, nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		return resp.StatusCode
	}

	if status := get("T1"); status != http.StatusOK {
		t.Fatalf("Expected T1 within limit, got: %d", status)
	}
	if status := get("T2"); status != http.StatusOK {
		t.Errorf("Expected T2 unaffected by T1's traffic, got: %d", status)
	}
	if status := get("T1"); status != http.StatusTooManyRequests {
		t.Errorf("Expected T1 over its own limit, got: %d", status)
	}
}

func TestTraderHeaderBeatsIPKey(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trader-ID", "T1")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if !limiter.Allow("ip:0.0.0.0") {
		t.Error("Expected the IP budget untouched by trader-keyed traffic")
	}
	if limiter.Allow("trader:T1") {
		t.Error("Expected the trader budget consumed by the request")
	}
}

func TestMiddlewareReturns429OverLimit(t *testing.T) {
	app := fiber.New()
	app.Use(NewRateLimiter(2, time.Minute).Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 within limit, got: %d", resp.StatusCode)
		}
		if resp.Header.Get("X-RateLimit-Limit") != "2" {
			t.Errorf("Expected X-RateLimit-Limit header, got: %q", resp.Header.Get("X-RateLimit-Limit"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429 over limit, got: %d", resp.StatusCode)
	}
}
