package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Query    string `validate:"required,max=20"`
	Category string `validate:"category"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		req     chatRequest
		wantErr string
	}{
		{"valid", chatRequest{Query: "dengue", Category: "Health"}, ""},
		{"empty category defaults", chatRequest{Query: "dengue"}, ""},
		{"missing query", chatRequest{Category: "Health"}, "Query is required"},
		{"too long", chatRequest{Query: strings.Repeat("a", 21)}, "Query exceeds maximum length of 20"},
		{"unknown category", chatRequest{Query: "dengue", Category: "Esportes"}, `Category "Esportes" is not a known category`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.req)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, err.Error())
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "casos", Sanitize("  ca\x00sos \n"))
}

func TestContentTypes(t *testing.T) {
	app := fiber.New()
	app.Use(ContentTypes())
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	tests := []struct {
		contentType string
		expected    int
	}{
		{"application/json", fiber.StatusNoContent},
		{"multipart/form-data; boundary=x", fiber.StatusNoContent},
		{"text/xml", fiber.StatusUnsupportedMediaType},
		{"", fiber.StatusNoContent},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("POST", "/", strings.NewReader("{}"))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, resp.StatusCode, tc.contentType)
	}
}
