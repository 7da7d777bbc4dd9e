package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and retrieval cannot run without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the vector store is not configured.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrSearchBackend indicates the vector store failed during a search.
	// It lets callers distinguish "search failed" from "no matches";
	// the engine never converts a backend failure into an empty result.
	ErrSearchBackend = errors.New("search backend failure")

	// ErrStorageWrite indicates a write to the vector store failed.
	// Fatal for the affected document only, never for batch siblings.
	ErrStorageWrite = errors.New("storage write failure")

	// ErrMigrationVerification indicates the parallel store's contents
	// did not match the source after backfill. Triggers rollback.
	ErrMigrationVerification = errors.New("migration verification failed")

	// ErrMigrationState indicates a migration phase was invoked out of order.
	ErrMigrationState = errors.New("invalid migration state")

	// ErrRateLimited indicates the embedding provider rejected a call
	// for exceeding its rate limit.
	ErrRateLimited = errors.New("rate limited")
)

// EmbeddingError is a typed failure from the embedding provider scoped to
// the inputs of one batch. FailedIndices lets the caller retry only the
// failed subset rather than the whole call.
type EmbeddingError struct {
	// ModelID names the model the batch was sent to.
	ModelID string

	// FailedIndices are the positions within the batch that failed.
	FailedIndices []int

	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failure (model %s, %d inputs): %v",
		e.ModelID, len(e.FailedIndices), e.Err)
}

// Unwrap exposes the underlying provider error.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError builds an EmbeddingError covering batch positions
// [0, count).
func NewEmbeddingError(modelID string, count int, err error) *EmbeddingError {
	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return &EmbeddingError{ModelID: modelID, FailedIndices: indices, Err: err}
}
