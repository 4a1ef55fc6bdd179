package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/docchat/backend/internal/middleware/security"
	"github.com/docchat/backend/internal/storage/models"
)

type SystemHandler struct {
	sharedSecret string
}

func NewSystemHandler(sharedSecret string) *SystemHandler {
	return &SystemHandler{sharedSecret: sharedSecret}
}

// VerifyAccessKey lets a client check a key before storing it.
func (h *SystemHandler) VerifyAccessKey(c *fiber.Ctx) error {
	var req struct {
		AccessKey string `json:"accessKey"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if !security.ValidKey(h.sharedSecret, req.AccessKey) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"valid": false,
			"error": "Invalid access key",
		})
	}
	return c.JSON(fiber.Map{"valid": true})
}

func (h *SystemHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": models.Categories,
		"default":    models.CategoryGeneral,
	})
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}
