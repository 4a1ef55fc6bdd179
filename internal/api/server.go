// Package api assembles the HTTP surface: middleware chain, routes and the
// JSON error handler.
package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/api/handlers"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/middleware/ratelimit"
	"github.com/docchat/backend/internal/middleware/security"
	"github.com/docchat/backend/internal/middleware/validation"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
)

type Deps struct {
	Processor *ingestion.Processor
	Engine    *query.Engine
	Searcher  query.Searcher
	UploadDir string
}

type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            logger.GetLogger(),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + security.AccessKeyHeader,
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	documentHandler := handlers.NewDocumentHandler(deps.Processor, deps.UploadDir)
	queryHandler := handlers.NewQueryHandler(deps.Engine, deps.Searcher)
	wsHandler := handlers.NewWebSocketHandler(deps.Engine)
	systemHandler := handlers.NewSystemHandler(cfg.Auth.SharedSecret)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", systemHandler.Health)
	api.Get("/categories", systemHandler.Categories)
	api.Post("/auth/verify", limiter.Middleware(), systemHandler.VerifyAccessKey)

	protected := api.Group("", security.AccessKey(cfg.Auth.SharedSecret), limiter.Middleware(), validation.ContentTypes())

	protected.Get("/documents", documentHandler.ListDocuments)
	protected.Post("/documents", documentHandler.UploadDocument)
	protected.Delete("/documents/:id", documentHandler.DeleteDocument)

	protected.Post("/chat", queryHandler.HandleChat)
	protected.Get("/chat/ws", wsHandler.Upgrade, websocket.New(wsHandler.HandleConnection))
	protected.Post("/search", queryHandler.HandleSearch)

	return &Server{App: app, limiter: limiter}
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
