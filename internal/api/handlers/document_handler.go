package handlers

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/middleware/validation"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	uploadDir string
}

func NewDocumentHandler(processor *ingestion.Processor, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		uploadDir: uploadDir,
	}
}

type uploadForm struct {
	Description string `form:"description" validate:"max=2000"`
	Source      string `form:"source" validate:"max=500"`
	Period      string `form:"period" validate:"max=100"`
	CaseName    string `form:"caseName" validate:"max=500"`
	Category    string `form:"category" validate:"category"`
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.processor.List(c.UserContext())
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
	})
}

// UploadDocument spools the multipart "file" field to the upload directory
// and ingests it with the metadata form fields.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var form uploadForm
	if err := c.BodyParser(&form); err != nil {
		logger.Error("Failed to parse upload form", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid upload form",
		})
	}
	if err := validation.Struct(form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Error("Failed to create upload directory", zap.String("path", h.uploadDir), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store upload",
		})
	}
	tmpPath := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(fh.Filename))
	if err := c.SaveFile(fh, tmpPath); err != nil {
		logger.Error("Failed to save upload", zap.String("file_name", fh.Filename), zap.Error(err))
		os.Remove(tmpPath)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store upload",
		})
	}

	meta := models.Metadata{
		Description: validation.Sanitize(form.Description),
		Source:      validation.Sanitize(form.Source),
		Period:      validation.Sanitize(form.Period),
		CaseName:    validation.Sanitize(form.CaseName),
		Category:    models.Category(validation.Sanitize(form.Category)),
	}

	doc, err := h.processor.IngestFile(c.UserContext(), tmpPath, fh.Filename, fh.Header.Get(fiber.HeaderContentType), meta)
	switch {
	case err == nil:
	case errors.Is(err, ingestion.ErrInvalidCategory):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	case errors.Is(err, extract.ErrExtractionFailure):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Could not extract content from file",
		})
	default:
		logger.Error("Failed to process document", zap.String("file_name", fh.Filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// DeleteDocument succeeds for unknown ids as well.
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	if err := h.processor.Delete(c.UserContext(), id); err != nil {
		logger.Error("Failed to delete document", zap.String("doc_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document deleted",
		"id":      id,
	})
}
