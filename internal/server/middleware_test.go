package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func middlewareApp(origins string) *fiber.App {
	srv := &Server{config: &config.Config{AllowedOrigins: origins}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.All("/limited", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestSetupMiddleware_SecurityHeaders(t *testing.T) {
	app := middlewareApp("http://localhost:5173")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestSetupMiddleware_RateLimitedResponseIncludesCORSHeaders(t *testing.T) {
	app := middlewareApp("http://localhost:5173")

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	// Preflight is never limited.
	preflight := httptest.NewRequest(http.MethodOptions, "/limited", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	preflightResp, err := app.Test(preflight, -1)
	require.NoError(t, err)
	defer func() { _ = preflightResp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, preflightResp.StatusCode)
	assert.Contains(t, preflightResp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
