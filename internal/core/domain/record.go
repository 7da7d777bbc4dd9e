package domain

import (
	"fmt"
	"time"
)

// Embedding is a fixed-dimension vector for one chunk under one model.
// A chunk holds at most one embedding per model, which is what makes
// side-by-side model migration possible.
type Embedding struct {
	// ChunkID links to the embedded chunk.
	ChunkID string

	// ModelID names the embedding model that produced the vector.
	ModelID string

	// Dimension is the model's declared vector width.
	Dimension int

	// Vector is the embedding itself. len(Vector) must equal Dimension.
	Vector []float32
}

// Validate checks the dimension invariant.
func (e *Embedding) Validate() error {
	if e.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension %d", ErrInvalidInput, e.Dimension)
	}
	if len(e.Vector) != e.Dimension {
		return fmt.Errorf("%w: vector length %d does not match dimension %d for model %s",
			ErrInvalidInput, len(e.Vector), e.Dimension, e.ModelID)
	}
	return nil
}

// StoredRecord is the unit persisted and queried by the vector store:
// a chunk, its embedding, and its provenance.
type StoredRecord struct {
	Chunk
	Embedding Embedding

	// RepositoryID is the owning repository.
	RepositoryID string

	// SourceType and SourceID identify the producing document source.
	// Together with RepositoryID they form the replacement key for
	// idempotent re-ingestion.
	SourceType string
	SourceID   string

	// ContentType is the producing document's content type, denormalised
	// onto the record so searches can filter on it.
	ContentType ContentType

	// StorageType is the retention policy.
	StorageType StorageType

	// ExpiresAt is the TTL deadline for cached/temporary records,
	// nil for permanent storage.
	ExpiresAt *time.Time

	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int
}

// Expired reports whether the record's TTL has passed at the given time.
func (r *StoredRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}
