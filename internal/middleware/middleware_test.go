package middleware

import (
	contextPkg "PoseAnomaly/pkg/context"
	jwtPkg "PoseAnomaly/pkg/jwt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRequestIDMiddleware(t *testing.T) {
	m := New(testLogger())
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "client-id")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "client-id" || resp.Header.Get(RequestIDKey) != "client-id" {
		t.Fatalf("request id = %q (header %q), want client-id", body, resp.Header.Get(RequestIDKey))
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if len(body) != 26 {
		t.Fatalf("generated request id %q is not a ULID", body)
	}
}

func TestRequestIDMiddlewareReplacesUnsafeIDs(t *testing.T) {
	m := New(testLogger())
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(contextPkg.GetRequestID(c.UserContext()))
	})

	tests := map[string]string{
		"spaces":   "id with spaces",
		"escapes":  `abc\nforged=1`,
		"too long": strings.Repeat("a", maxInboundRequestIDLen+1),
	}

	for name, inbound := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDKey, inbound)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test error: %v", name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) == inbound || len(body) != 26 {
			t.Errorf("%s: request id = %q, want a generated ULID", name, body)
		}
		if resp.Header.Get(RequestIDKey) != string(body) {
			t.Errorf("%s: response header %q does not match context id %q", name, resp.Header.Get(RequestIDKey), body)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "trace-01.b_2")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "trace-01.b_2" {
		t.Fatalf("context request id = %q, want trace-01.b_2", body)
	}
}

func TestRateLimiter(t *testing.T) {
	m := &middleware{
		rateLimitter: newRateLimiter(0.001, 2),
		log:          testLogger(),
	}
	app := fiber.New()
	app.Get("/", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	want := []int{fiber.StatusNoContent, fiber.StatusNoContent, fiber.StatusTooManyRequests}
	for i, status := range want {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("request %d: app.Test error: %v", i, err)
		}
		if resp.StatusCode != status {
			t.Fatalf("request %d: status = %d, want %d", i, resp.StatusCode, status)
		}
	}
}

func TestRateFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("RATE_LIMIT_BURST", "-1")

	limit, burst := rateFromEnv()
	if limit != 5 || burst != defaultBurstSize {
		t.Fatalf("rateFromEnv = (%v, %d), want (5, %d)", limit, burst, defaultBurstSize)
	}
}

func TestTokenMiddleware(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")

	m := New(testLogger())
	app := fiber.New()
	app.Get("/me", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		user, err := jwtPkg.GetUserLoginData(c)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	valid, _, err := jwtPkg.Sign(map[string]interface{}{"id": "u-1", "email": "coach@example.com", "username": "coach"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	expired, _, _ := jwtPkg.Sign(map[string]interface{}{"id": "u-1"}, -time.Hour)
	noSubject, _, _ := jwtPkg.Sign(map[string]interface{}{"email": "coach@example.com"}, time.Hour)

	tests := map[string]struct {
		header string
		status int
	}{
		"valid":      {"Bearer " + valid, fiber.StatusOK},
		"missing":    {"", fiber.StatusUnauthorized},
		"not bearer": {"Basic abc", fiber.StatusUnauthorized},
		"garbage":    {"Bearer abc", fiber.StatusUnauthorized},
		"expired":    {"Bearer " + expired, fiber.StatusUnauthorized},
		"no subject": {"Bearer " + noSubject, fiber.StatusUnauthorized},
	}

	for name, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test error: %v", name, err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", name, resp.StatusCode, tt.status)
		}
	}
}
