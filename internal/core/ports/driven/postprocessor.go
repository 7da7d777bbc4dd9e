package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// PostProcessor processes a structured document to produce or refine chunks.
// PostProcessors are chained in a pipeline (chunking, then enhancement).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a structured document and returns chunks.
	// If the processor creates chunks (the chunker), it receives nil and
	// returns new chunks. If it modifies chunks (the enhancer), it
	// receives and returns the existing list.
	Process(ctx context.Context, doc *domain.StructuredDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order and
	// returns the final chunks.
	Process(ctx context.Context, doc *domain.StructuredDocument) ([]domain.Chunk, error)
}
