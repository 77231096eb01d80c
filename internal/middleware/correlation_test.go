package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/middleware"
)

func correlationApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.CorrelationIDFromContext(c.UserContext()))
	})
	return app
}

func correlationOf(t *testing.T, headers map[string]string) (string, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := correlationApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.Header.Get(middleware.HeaderCorrelationID), string(body)
}

func TestCorrelationIDEchoesCaller(t *testing.T) {
	header, bound := correlationOf(t, map[string]string{middleware.HeaderCorrelationID: " batch-42 "})
	require.Equal(t, "batch-42", header)
	require.Equal(t, "batch-42", bound)

	header, _ = correlationOf(t, map[string]string{fiber.HeaderXRequestID: "req-7"})
	require.Equal(t, "req-7", header)
}

func TestCorrelationIDReplacesUnusableValues(t *testing.T) {
	for _, value := range []string{"", strings.Repeat("x", 65), "two words"} {
		header, bound := correlationOf(t, map[string]string{middleware.HeaderCorrelationID: value})
		_, err := uuid.Parse(header)
		require.NoError(t, err, value)
		require.Equal(t, header, bound)
	}
}
