package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/middleware/validation"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

type WebSocketHandler struct {
	queryEngine *query.Engine
}

func NewWebSocketHandler(queryEngine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		queryEngine: queryEngine,
	}
}

// Upgrade only lets websocket handshakes through to HandleConnection.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

type wsMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content" validate:"required,max=5000"`
	Category string `json:"category" validate:"category"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		msg.Content = validation.Sanitize(msg.Content)
		if err := validation.Struct(msg); err != nil {
			h.sendError(c, err.Error())
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("query", msg.Content))

		if err := h.streamResponse(c, msg); err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			metrics.ChatTotal.WithLabelValues("websocket", "error").Inc()
			h.sendError(c, "Failed to process query")
			continue
		}
		metrics.ChatTotal.WithLabelValues("websocket", "success").Inc()
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, msg wsMessage) error {
	category, _ := models.ParseCategory(msg.Category)
	req := query.QueryRequest{
		Query:    msg.Content,
		Category: category,
	}

	if err := h.sendChunk(c, "status", "Processing query..."); err != nil {
		return err
	}

	response, err := h.queryEngine.Stream(context.Background(), req, func(delta string) error {
		return h.sendChunk(c, "chunk", delta)
	})
	if err != nil {
		return err
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *query.QueryResponse) error {
	return c.WriteJSON(fiber.Map{
		"type":       "complete",
		"message_id": response.ID,
		"sources":    response.Sources,
		"latency_ms": response.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(fiber.Map{"type": "error", "error": errorMsg}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
