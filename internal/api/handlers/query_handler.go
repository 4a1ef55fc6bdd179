package handlers

import (
	"bufio"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/middleware/validation"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

const streamErrorMarker = "\n\n[error] Failed to generate response"

type QueryHandler struct {
	queryEngine *query.Engine
	searcher    query.Searcher
}

func NewQueryHandler(queryEngine *query.Engine, searcher query.Searcher) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		searcher:    searcher,
	}
}

type queryRequest struct {
	Query    string `json:"query" validate:"required,max=5000"`
	Category string `json:"category" validate:"category"`
}

func parseQuery(c *fiber.Ctx) (*query.QueryRequest, error) {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return nil, errors.New("invalid request body")
	}
	req.Query = validation.Sanitize(req.Query)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	category, _ := models.ParseCategory(req.Category)
	return &query.QueryRequest{Query: req.Query, Category: category}, nil
}

// HandleChat streams the answer as plain text fragments. Failures after the
// stream has started are signalled in-band with an error marker.
func (h *QueryHandler) HandleChat(c *fiber.Ctx) error {
	req, err := parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		_, err := h.queryEngine.Stream(context.Background(), *req, func(delta string) error {
			if _, err := w.WriteString(delta); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			logger.Error("Failed to stream answer", zap.String("query", req.Query), zap.Error(err))
			metrics.ChatTotal.WithLabelValues("http", "error").Inc()
			w.WriteString(streamErrorMarker)
			w.Flush()
			return
		}
		metrics.ChatTotal.WithLabelValues("http", "success").Inc()
	})

	return nil
}

// HandleSearch returns the ranked chunks without generating an answer.
func (h *QueryHandler) HandleSearch(c *fiber.Ctx) error {
	req, err := parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	results, err := h.searcher.Search(c.UserContext(), req.Query, req.Category)
	if err != nil {
		logger.Error("Failed to search", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to search documents",
		})
	}

	return c.JSON(fiber.Map{
		"query":   req.Query,
		"results": results,
	})
}
