package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// SimilarityQuery is a single similarity search against the store.
type SimilarityQuery struct {
	// Embedding is the query vector.
	Embedding []float32

	// RepositoryID scopes the search to one repository when non-empty.
	RepositoryID string

	// Limit bounds the number of results.
	Limit int

	// MinSimilarity is the cosine similarity cutoff. The store filters
	// below-cutoff records itself; callers never receive them.
	MinSimilarity float64

	// Filters narrows candidates by chunk metadata before ranking.
	Filters domain.SearchFilters
}

// VectorStore persists chunks with their embeddings and provenance and
// answers similarity queries. Ordering is descending cosine similarity,
// ties broken by most recent creation time.
type VectorStore interface {
	// UpsertRecords stores the given records, replacing any existing
	// record with the same chunk ID and model.
	UpsertRecords(ctx context.Context, records []domain.StoredRecord) error

	// DeleteBySource removes all records for one document source and
	// returns the number removed. This is the replace step of
	// idempotent re-ingestion.
	DeleteBySource(ctx context.Context, sourceType, repositoryID, sourceID string) (int, error)

	// Search returns ranked results at or above the query's similarity
	// cutoff. Backend failures are returned wrapped in
	// domain.ErrSearchBackend, never as an empty result set.
	Search(ctx context.Context, query SimilarityQuery) ([]domain.SearchResult, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// ListRecords pages through stored records in a stable order, for
	// migration backfill reads.
	ListRecords(ctx context.Context, offset, limit int) ([]domain.StoredRecord, error)

	// DeleteExpired removes records whose TTL passed before now and
	// returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// TouchAccess records a read of the given chunks, updating their
	// last-accessed time and access count. Best effort.
	TouchAccess(ctx context.Context, chunkIDs []string) error

	// Close releases resources.
	Close() error
}

// MigrationStore provides the staging-table operations the model
// migration coordinator needs. The primary store stays fully queryable
// and unmodified until Cutover commits.
type MigrationStore interface {
	// CreateStaging creates an empty parallel record set sized for the
	// new model's dimension. An existing staging set for the same model
	// and dimension is kept so an interrupted backfill can resume; a
	// staging set for any other model is dropped first.
	CreateStaging(ctx context.Context, modelID string, dimension int) error

	// UpsertStaging writes re-embedded records to the staging set.
	UpsertStaging(ctx context.Context, records []domain.StoredRecord) error

	// StagingChunkIDs returns the chunk IDs already present in the
	// staging set, so an interrupted backfill can resume.
	StagingChunkIDs(ctx context.Context) (map[string]bool, error)

	// StagingCount returns the number of records in the staging set.
	StagingCount(ctx context.Context) (int, error)

	// Cutover atomically swaps the staging set into the primary
	// position, retaining the old set as a timestamped backup.
	Cutover(ctx context.Context) error

	// DropStaging discards the staging set. The primary set is untouched.
	DropStaging(ctx context.Context) error
}
