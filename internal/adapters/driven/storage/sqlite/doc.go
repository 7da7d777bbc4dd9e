// Package sqlite provides the SQLite-backed vector store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. A single database
// connection serves both the primary record set and the migration staging
// operations.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Embedding vectors are stored as little-endian
// float32 blobs; similarity is computed in the adapter when answering a
// query, so callers never see below-cutoff records.
//
// # Data Location
//
// By default, the database is stored at ~/.corpus/data/corpus.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
