package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/services"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/corpus-cli/internal/postprocessors/enhancer"
	"github.com/custodia-labs/corpus-cli/internal/preprocessors"
)

// fakeEmbedder answers every input with the same unit vector, which is
// all the command-layer tests need.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int              { return 3 }
func (fakeEmbedder) ModelName() string            { return "fake-model" }
func (fakeEmbedder) Ping(_ context.Context) error { return nil }
func (fakeEmbedder) Close() error                 { return nil }

// setupTestServices injects in-memory doubles behind every command and
// returns a cleanup that removes them again.
func setupTestServices() func() {
	store := memory.NewVectorStore()
	emb := fakeEmbedder{}

	vectorStore = store
	migrationStore = store
	embedder = emb
	ingestionService = services.NewIngestionService(
		preprocessors.NewDefaultRegistry(),
		postprocessors.NewPipeline(chunker.New(), enhancer.New()),
		emb,
		store,
	)
	retrievalService = services.NewRetrievalService(emb, store)
	cleanupService = services.NewCleanupService(domain.DefaultCleanupConfig(), store)

	return func() {
		vectorStore = nil
		migrationStore = nil
		embedder = nil
		ingestionService = nil
		retrievalService = nil
		cleanupService = nil
	}
}

// seedTestRecord puts one searchable record into the injected store.
func seedTestRecord(id, content string) error {
	return vectorStore.UpsertRecords(context.Background(), []domain.StoredRecord{{
		Chunk: domain.Chunk{ID: id, Content: content},
		Embedding: domain.Embedding{
			ChunkID: id, ModelID: "fake-model", Dimension: 3, Vector: []float32{1, 0, 0},
		},
		RepositoryID: "acme/payments",
		SourceType:   "analysis",
		SourceID:     id,
		StorageType:  domain.StoragePermanent,
		CreatedAt:    time.Now(),
	}})
}
