package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(HeadersMiddleware(HeadersConfig{}))
	app.Use(AccessKey(secret))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestAccessKey(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		header   string
		target   string
		expected int
	}{
		{"gate disabled", "", "", "/", fiber.StatusOK},
		{"missing key", "s3cret", "", "/", fiber.StatusUnauthorized},
		{"wrong key", "s3cret", "nope", "/", fiber.StatusUnauthorized},
		{"header key", "s3cret", "s3cret", "/", fiber.StatusOK},
		{"query key", "s3cret", "", "/?access_key=s3cret", fiber.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.target, nil)
			if tc.header != "" {
				req.Header.Set(AccessKeyHeader, tc.header)
			}
			resp, err := newApp(tc.secret).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, resp.StatusCode)
		})
	}
}

func TestHeaders(t *testing.T) {
	resp, err := newApp("").Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}
