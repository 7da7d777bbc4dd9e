package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// seedCorpus fills the store with 2-dimensional records, simulating a
// corpus embedded under an older, smaller model.
func seedCorpus(t *testing.T, store *memory.VectorStore, contents ...string) {
	t.Helper()
	records := make([]domain.StoredRecord, len(contents))
	for i, content := range contents {
		id := fmt.Sprintf("c%d", i+1)
		records[i] = domain.StoredRecord{
			Chunk: domain.Chunk{ID: id, Content: content},
			Embedding: domain.Embedding{
				ChunkID:   id,
				ModelID:   "old-model",
				Dimension: 2,
				Vector:    []float32{1, 0},
			},
			RepositoryID: "acme/payments",
			SourceType:   "analysis",
			SourceID:     "seed",
			StorageType:  domain.StoragePermanent,
			CreatedAt:    time.Now(),
		}
	}
	require.NoError(t, store.UpsertRecords(context.Background(), records))
}

// fastOpts keeps backfill rate limiting out of the test's way.
func fastOpts() MigrationOptions {
	return MigrationOptions{PageSize: 2, RatePerSecond: 1000}
}

func TestMigration_HappyPath(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store,
		"charge retry analysis",
		"refund pipeline review",
		"webhook signature notes",
	)
	embedder := newStubEmbedder("new-model", 3)
	svc := NewMigrationService(store, store, embedder, fastOpts())
	ctx := context.Background()

	require.NoError(t, svc.Run(ctx))

	progress := svc.Progress()
	assert.Equal(t, domain.MigrationStateComplete, progress.State)
	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 100.0, progress.Percentage)

	// Every record now carries the new model's embedding.
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	records, err := store.ListRecords(ctx, 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, "new-model", rec.Embedding.ModelID)
		assert.Equal(t, 3, rec.Embedding.Dimension)
		assert.Len(t, rec.Embedding.Vector, 3)
	}

	// The corpus is queryable under the new dimensionality, and the old
	// record set survives as a backup.
	results, err := store.Search(ctx, searchQuery([]float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.NotEmpty(t, store.BackupLabel())
}

func TestMigration_EmptyCorpus(t *testing.T) {
	store := memory.NewVectorStore()
	embedder := newStubEmbedder("new-model", 3)
	svc := NewMigrationService(store, store, embedder, fastOpts())

	require.NoError(t, svc.Run(context.Background()))
	assert.Equal(t, domain.MigrationStateComplete, svc.Progress().State)
	assert.Empty(t, store.BackupLabel())
}

func TestMigration_ValidateFailure(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store, "charge retry analysis")
	embedder := newStubEmbedder("new-model", 3)
	embedder.pingErr = errors.New("model not pulled")
	svc := NewMigrationService(store, store, embedder, fastOpts())

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate")
	assert.Equal(t, domain.MigrationStateRolledBack, svc.Progress().State)

	// Primary set untouched.
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// misdeclaredEmbedder declares one more dimension than its vectors
// actually carry.
type misdeclaredEmbedder struct {
	*stubEmbedder
}

func (m misdeclaredEmbedder) Dimensions() int { return m.stubEmbedder.Dimensions() + 1 }

func TestMigration_ValidateRejectsDimensionMismatch(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store, "charge retry analysis")
	embedder := misdeclaredEmbedder{newStubEmbedder("new-model", 3)}
	svc := NewMigrationService(store, store, embedder, fastOpts())

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "dimensions")
	assert.Equal(t, domain.MigrationStateRolledBack, svc.Progress().State)

	// Nothing was re-embedded; the primary set is untouched.
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, embedder.embedded)
}

func TestMigration_ZeroDimensionModel(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store, "charge retry analysis")
	embedder := newStubEmbedder("new-model", 0)
	svc := NewMigrationService(store, store, embedder, fastOpts())

	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.MigrationStateRolledBack, svc.Progress().State)
}

func TestMigration_BackfillFailureRollsBack(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store,
		"charge retry analysis",
		"refund pipeline review",
		"webhook signature notes",
	)
	embedder := newStubEmbedder("new-model", 3)
	embedder.failContains = "webhook"
	embedder.failuresLeft = -1
	svc := NewMigrationService(store, store, embedder, fastOpts())
	ctx := context.Background()

	err := svc.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill")
	assert.Equal(t, domain.MigrationStateRolledBack, svc.Progress().State)

	// The primary set is still the old model's, fully queryable.
	records, err := store.ListRecords(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, "old-model", rec.Embedding.ModelID)
		assert.Equal(t, 2, rec.Embedding.Dimension)
	}

	// Staging is gone.
	staged, err := store.StagingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, staged)
}

func TestMigration_VerifyFailureRollsBack(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store, "charge retry analysis", "refund pipeline review")
	embedder := newStubEmbedder("new-model", 3)
	ctx := context.Background()

	// A stray staged record that has no primary counterpart makes the
	// staging count disagree with the primary count.
	require.NoError(t, store.CreateStaging(ctx, "new-model", 3))
	require.NoError(t, store.UpsertStaging(ctx, []domain.StoredRecord{{
		Chunk: domain.Chunk{ID: "ghost", Content: "deleted long ago"},
		Embedding: domain.Embedding{
			ChunkID: "ghost", ModelID: "new-model", Dimension: 3, Vector: []float32{0, 0, 1},
		},
		RepositoryID: "acme/payments",
		StorageType:  domain.StoragePermanent,
	}}))

	svc := NewMigrationService(store, store, embedder, fastOpts())
	err := svc.Run(ctx)
	assert.ErrorIs(t, err, domain.ErrMigrationVerification)
	assert.Equal(t, domain.MigrationStateRolledBack, svc.Progress().State)

	// Primary still on the old model.
	records, err := store.ListRecords(ctx, 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, "old-model", rec.Embedding.ModelID)
	}
}

func TestMigration_ResumesInterruptedBackfill(t *testing.T) {
	store := memory.NewVectorStore()
	seedCorpus(t, store, "charge retry analysis", "refund pipeline review")
	embedder := newStubEmbedder("new-model", 3)
	ctx := context.Background()

	// Simulate an interrupted earlier run that staged c1 already.
	require.NoError(t, store.CreateStaging(ctx, "new-model", 3))
	require.NoError(t, store.UpsertStaging(ctx, []domain.StoredRecord{{
		Chunk: domain.Chunk{ID: "c1", Content: "charge retry analysis"},
		Embedding: domain.Embedding{
			ChunkID: "c1", ModelID: "new-model", Dimension: 3, Vector: []float32{0, 1, 0},
		},
		RepositoryID: "acme/payments",
		StorageType:  domain.StoragePermanent,
	}}))

	svc := NewMigrationService(store, store, embedder, fastOpts())
	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, domain.MigrationStateComplete, svc.Progress().State)

	// Only the unstaged record was re-embedded.
	require.Len(t, embedder.embedded, 1)
	assert.Contains(t, embedder.embedded[0], "refund pipeline review")
}

func TestMigration_BackfillProgress(t *testing.T) {
	store := memory.NewVectorStore()
	contents := make([]string, 10)
	for i := range contents {
		contents[i] = fmt.Sprintf("analysis section %d", i+1)
	}
	seedCorpus(t, store, contents...)

	embedder := newStubEmbedder("new-model", 3)
	svc := NewMigrationService(store, store, embedder, MigrationOptions{PageSize: 3, RatePerSecond: 1000})

	require.NoError(t, svc.Run(context.Background()))
	progress := svc.Progress()
	assert.Equal(t, 10, progress.Processed)
	assert.Equal(t, 10, progress.Total)
	assert.Equal(t, 100.0, progress.Percentage)
	assert.Zero(t, progress.ETA)
}

// searchQuery builds a minimal similarity query for migration tests.
func searchQuery(vector []float32) driven.SimilarityQuery {
	return driven.SimilarityQuery{Embedding: vector, Limit: 10, MinSimilarity: 0.1}
}
