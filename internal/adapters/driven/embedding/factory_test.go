package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestNewFromConfig_DefaultsToOllama(t *testing.T) {
	cfg := memory.NewConfigStore()

	svc, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, "nomic-embed-text", svc.ModelName())
	assert.Equal(t, 768, svc.Dimensions())
}

func TestNewFromConfig_ConfiguredModel(t *testing.T) {
	cfg := memory.NewConfigStore()
	require.NoError(t, cfg.Set("embedding.provider", "ollama"))
	require.NoError(t, cfg.Set("embedding.model", "mxbai-embed-large"))
	require.NoError(t, cfg.Set("embedding.dimensions", 1024))

	svc, err := NewFromConfig(cfg)
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, "mxbai-embed-large", svc.ModelName())
	assert.Equal(t, 1024, svc.Dimensions())
}

func TestNewFromConfig_OpenAIRequiresKey(t *testing.T) {
	cfg := memory.NewConfigStore()
	require.NoError(t, cfg.Set("embedding.provider", "openai"))

	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	cfg := memory.NewConfigStore()
	require.NoError(t, cfg.Set("embedding.provider", "acme"))

	_, err := NewFromConfig(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "acme")
}
