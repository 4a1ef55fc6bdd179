// Package cli implements docctl, an operator tool that works on the
// configured store directly without the HTTP server.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/cache/redis"
	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/retrieval"
	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/backend"
	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
)

type services struct {
	store     storage.Store
	processor *ingestion.Processor
	retriever *retrieval.Retriever
	cache     *redis.Client
}

func (s *services) close() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// NewRootCmd builds the docctl command tree.
func NewRootCmd() *cobra.Command {
	var configPath string
	svc := &services{}

	root := &cobra.Command{
		Use:           "docctl",
		Short:         "Manage the document store and run searches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return svc.open(configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			svc.close()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")

	root.AddCommand(newIngestCmd(svc))
	root.AddCommand(newListCmd(svc))
	root.AddCommand(newDeleteCmd(svc))
	root.AddCommand(newSearchCmd(svc))

	return root
}

func (s *services) open(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "stderr"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	root, err := storage.ResolveRoot(cfg.Storage.Root, cfg.Storage.FallbackRoot)
	if err != nil {
		return err
	}
	s.store, err = backend.Open(cfg.Storage.Backend, root)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	var cache retrieval.Cache
	var invalidator ingestion.CacheInvalidator
	if cfg.Redis.Enabled {
		s.cache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			logger.Warn("Search cache unavailable", zap.Error(err))
		} else {
			cache, invalidator = s.cache, s.cache
		}
	}

	s.processor = ingestion.NewProcessor(s.store, chunker.New(cfg.Ingestion), invalidator)
	s.retriever = retrieval.New(s.store, cache, cfg.Retrieval)
	return nil
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
