// Package domain defines the core business entities for the corpus pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An analysis document submitted for ingestion
//   - StructuredDocument: The preprocessed section tree of a document
//   - Chunk: A retrievable unit derived from a document
//   - Embedding: A fixed-dimension vector for a chunk under one model
//   - StoredRecord: Chunk + embedding + provenance, as persisted
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
