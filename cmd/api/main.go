package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/api"
	"github.com/docchat/backend/internal/cache/redis"
	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/retrieval"
	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/backend"
	"github.com/docchat/backend/pkg/config"
	appLogger "github.com/docchat/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("DOCCHAT_CONFIG"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting document chat API server")

	root, err := storage.ResolveRoot(cfg.Storage.Root, cfg.Storage.FallbackRoot)
	if err != nil {
		appLogger.Fatal("Failed to resolve storage root", zap.Error(err))
	}

	store, err := backend.Open(cfg.Storage.Backend, root)
	if err != nil {
		appLogger.Fatal("Failed to open store", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer store.Close()
	appLogger.Info("Store opened", zap.String("backend", cfg.Storage.Backend), zap.String("root", root))

	metrics.Init()

	var searchCache retrieval.Cache
	var invalidator ingestion.CacheInvalidator
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Search cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			searchCache, invalidator = redisClient, redisClient
		}
	}

	llmClient := llm.NewClient(cfg.LLM)

	retriever := retrieval.New(store, searchCache, cfg.Retrieval)
	processor := ingestion.NewProcessor(store, chunker.New(cfg.Ingestion), invalidator)
	queryEngine := query.NewEngine(retriever, llmClient)

	uploadDir := cfg.Storage.UploadDir
	if !filepath.IsAbs(uploadDir) {
		uploadDir = filepath.Join(root, uploadDir)
	}

	server := api.NewServer(cfg, api.Deps{
		Processor: processor,
		Engine:    queryEngine,
		Searcher:  retriever,
		UploadDir: uploadDir,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
