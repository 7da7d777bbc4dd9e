package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/core/services"
	"github.com/custodia-labs/corpus-cli/internal/logger"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/enhancer"
	"github.com/custodia-labs/corpus-cli/internal/preprocessors"
)

// Package-level services, wired lazily by ensureServices. Tests inject
// their own doubles before executing a command.
var (
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	cleanupService   driving.CleanupService

	configStore    *file.ConfigStore
	vectorStore    driven.VectorStore
	migrationStore driven.MigrationStore
	embedder       driven.EmbeddingService

	closers []io.Closer
)

// ensureServices wires the real adapters behind any service that has
// not been injected already.
func ensureServices() error {
	if ingestionService != nil && retrievalService != nil && cleanupService != nil {
		return nil
	}

	cfg, err := ensureConfig()
	if err != nil {
		return err
	}

	if vectorStore == nil {
		dir, err := configDir()
		if err != nil {
			return err
		}
		store, err := sqlite.NewStore(filepath.Join(dir, "data"))
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}
		vectorStore = store
		migrationStore = store
		closers = append(closers, store)
	}

	if embedder == nil {
		svc, err := embedding.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		embedder = svc
		closers = append(closers, embedder)
	}

	if ingestionService == nil {
		ingestionService = services.NewIngestionService(
			preprocessors.NewDefaultRegistry(),
			postprocessors.NewPipeline(chunker.New(), enhancer.New()),
			embedder,
			vectorStore,
		)
	}
	if retrievalService == nil {
		retrievalService = services.NewRetrievalService(embedder, vectorStore)
	}
	if cleanupService == nil {
		cleanupService = services.NewCleanupService(cleanupConfig(cfg), vectorStore)
	}
	return nil
}

// ensureConfig loads the config store once.
func ensureConfig() (*file.ConfigStore, error) {
	if configStore != nil {
		return configStore, nil
	}
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	cfg, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	configStore = cfg
	return cfg, nil
}

// cleanupConfig reads the sweep settings, falling back to the defaults.
func cleanupConfig(cfg *file.ConfigStore) domain.CleanupConfig {
	out := domain.DefaultCleanupConfig()
	if _, ok := cfg.Get("cleanup.enabled"); ok {
		out.Enabled = cfg.GetBool("cleanup.enabled")
	}
	if raw := cfg.GetString("cleanup.interval"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			logger.Warn("Invalid cleanup.interval %q, using %s", raw, out.Interval)
		} else {
			out.Interval = interval
		}
	}
	return out
}

// closeServices releases adapter resources at the end of a run.
func closeServices() {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Debug("Close failed: %v", err)
		}
	}
	closers = nil
}
