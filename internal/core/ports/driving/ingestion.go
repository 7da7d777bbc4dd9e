package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// IngestionService drives a document through preprocessing, chunking,
// enhancement, embedding and storage.
type IngestionService interface {
	// ProcessDocument ingests one document. It always returns a result
	// object; chunk-level failures are accumulated in the result's
	// Errors list rather than aborting the document.
	ProcessDocument(ctx context.Context, content string, contentType domain.ContentType, opts IngestionOptions) (*IngestionResult, error)

	// ProcessDocuments ingests a batch of documents and returns the
	// aggregated result. A failing document does not abort its siblings.
	ProcessDocuments(ctx context.Context, docs []DocumentInput, opts IngestionOptions) (*IngestionResult, error)
}

// DocumentInput is one document in a batch ingestion call.
type DocumentInput struct {
	// Content is the raw document text.
	Content string

	// ContentType selects the preprocessing strategy.
	ContentType domain.ContentType

	// SourceID identifies the document within its source. Overrides
	// IngestionOptions.SourceID for this document.
	SourceID string
}

// ProgressFunc receives ingestion progress callbacks.
// stage is one of "preprocess", "chunk", "enhance", "embed", "store".
type ProgressFunc func(stage string, completed, total int)

// IngestionOptions configures an ingestion call.
type IngestionOptions struct {
	// RepositoryID is the owning repository (required).
	RepositoryID string

	// SourceType labels the producer of the document (required).
	SourceType string

	// SourceID identifies the document within its source (required for
	// single-document calls).
	SourceID string

	// StorageType is the retention policy. Defaults to permanent.
	StorageType domain.StorageType

	// TTL bounds the lifetime of cached/temporary chunks.
	TTL time.Duration

	// Progress, when non-nil, receives per-stage progress callbacks.
	Progress ProgressFunc

	// BatchSize bounds the number of chunks per embedding call.
	// Zero uses the pipeline default.
	BatchSize int

	// MaxConcurrency bounds the embedding worker pool.
	// Zero uses the pipeline default.
	MaxConcurrency int
}

// IngestionError records one chunk- or document-scoped failure.
type IngestionError struct {
	// SourceID is the affected document source.
	SourceID string

	// ChunkID is the affected chunk, empty for document-scoped failures.
	ChunkID string

	// Stage names the pipeline stage that failed.
	Stage string

	// Message is the underlying error text.
	Message string
}

// IngestionResult reports the outcome of an ingestion call.
// Success is true when at least the document-level work completed, even
// if individual chunks failed; failed chunks appear in Errors.
type IngestionResult struct {
	Success         bool
	ChunksProcessed int
	ChunksStored    int
	Errors          []IngestionError
	TokensUsed      int
	Duration        time.Duration
}
