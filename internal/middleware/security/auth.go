package security

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// AccessKeyHeader carries the shared secret on every protected request.
const AccessKeyHeader = "X-Access-Key"

// ValidKey compares key with secret in constant time. An empty secret
// accepts every key.
func ValidKey(secret, key string) bool {
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(key)) == 1
}

// AccessKey rejects requests whose X-Access-Key header, or access_key query
// parameter for websocket upgrades, does not match secret.
func AccessKey(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AccessKeyHeader)
		if key == "" {
			key = c.Query("access_key")
		}
		if !ValidKey(secret, key) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid access key",
			})
		}
		return c.Next()
	}
}
