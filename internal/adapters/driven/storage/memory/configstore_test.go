package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("embedding.provider", "openai"))
	require.NoError(t, store.Set("ingestion.batch_size", 16))
	require.NoError(t, store.Set("search.threshold", 0.35))
	require.NoError(t, store.Set("cleanup.enabled", true))

	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.Equal(t, 16, store.GetInt("ingestion.batch_size"))
	assert.InDelta(t, 0.35, store.GetFloat("search.threshold"), 0.0001)
	assert.True(t, store.GetBool("cleanup.enabled"))
}

func TestConfigStore_MissingAndMistypedKeys(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("name", "corpus"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "", store.GetString("missing"))
	assert.Equal(t, 0, store.GetInt("name"))
	assert.Equal(t, 0.0, store.GetFloat("name"))
	assert.False(t, store.GetBool("name"))
}

func TestConfigStore_GetFloat_IntegerCoercion(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("limit", int64(8)))
	assert.Equal(t, 8.0, store.GetFloat("limit"))
}

func TestConfigStore_SaveLoadAreNoOps(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("key", "value"))

	require.NoError(t, store.Save())
	require.NoError(t, store.Load())
	assert.Equal(t, "value", store.GetString("key"))
	assert.Equal(t, ":memory:", store.Path())
}
