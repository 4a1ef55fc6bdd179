package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/docchat/backend/internal/storage/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseCategory(fl.Field().String())
		return ok
	})
	return v
}

// Struct validates s against its `validate` tags and returns a single error
// describing the first violation.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "max":
		return fmt.Errorf("%s exceeds maximum length of %s", fe.Field(), fe.Param())
	case "category":
		return fmt.Errorf("%s %q is not a known category", fe.Field(), fe.Value())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

// Sanitize trims s and removes NUL bytes.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, "\x00", "")
}

// ContentTypes rejects POST and PUT bodies whose Content-Type is not one of
// allowed.
func ContentTypes(allowed ...string) fiber.Handler {
	if len(allowed) == 0 {
		allowed = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType == "" {
			return c.Next()
		}
		for _, a := range allowed {
			if strings.HasPrefix(strings.ToLower(contentType), a) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}
}
