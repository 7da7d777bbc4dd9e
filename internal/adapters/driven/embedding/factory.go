// Package embedding provides factory functions for creating embedding
// service adapters from configuration.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// pingTimeout bounds the connectivity check in NewValidated.
const pingTimeout = 5 * time.Second

// DefaultProvider is used when embedding.provider is not configured.
const DefaultProvider = "ollama"

// NewFromConfig creates the embedding provider selected by the
// embedding.* configuration keys, wrapped in the in-memory cache.
func NewFromConfig(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	if provider == "" {
		provider = DefaultProvider
	}

	svc, err := newProvider(provider, cfg)
	if err != nil {
		return nil, err
	}
	return cache.New(svc), nil
}

// NewValidated creates the configured provider and verifies it is
// reachable before returning it.
func NewValidated(ctx context.Context, cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	svc, err := NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable: %v. Run 'corpus config set embedding.provider ...' to fix",
			domain.ErrEmbeddingUnavailable, svc.ModelName(), err)
	}
	return svc, nil
}

func newProvider(provider string, cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	switch provider {
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	case "openai":
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.GetString("embedding.api_key"),
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, provider)
	}
}
