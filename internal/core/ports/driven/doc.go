// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - Preprocessor / PreprocessorRegistry: raw text to structured document
//   - PostProcessor / PostProcessorPipeline: chunking and enhancement
//   - EmbeddingService: text to fixed-dimension vectors
//   - VectorStore: record persistence and similarity search
//
// # Optional Interfaces
//
//   - MigrationStore: staging-table operations, required only by the
//     model migration coordinator (the SQLite store provides it)
//   - ConfigStore: application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, preprocessor, or postprocessor package
package driven
