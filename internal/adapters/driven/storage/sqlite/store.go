package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.VectorStore    = (*Store)(nil)
	_ driven.MigrationStore = (*Store)(nil)
)

// recordColumns is the shared column list for the records and staging tables.
const recordColumns = `chunk_id, document_id, parent_id, chunk_type, content,
	enhanced_content, chunk_index, sibling_count, metadata,
	model_id, dimension, embedding,
	repository_id, source_type, source_id, content_type, storage_type,
	expires_at, created_at, updated_at, last_accessed_at, access_count`

// stagingSchema creates the parallel record set. It mirrors the records
// table; indexes are only created at cutover.
const stagingSchema = `
	CREATE TABLE records_staging (
		chunk_id         TEXT PRIMARY KEY,
		document_id      TEXT NOT NULL,
		parent_id        TEXT,
		chunk_type       TEXT NOT NULL,
		content          TEXT NOT NULL,
		enhanced_content TEXT NOT NULL DEFAULT '',
		chunk_index      INTEGER NOT NULL DEFAULT 0,
		sibling_count    INTEGER NOT NULL DEFAULT 0,
		metadata         TEXT NOT NULL DEFAULT '{}',
		model_id         TEXT NOT NULL,
		dimension        INTEGER NOT NULL,
		embedding        BLOB NOT NULL,
		repository_id    TEXT NOT NULL,
		source_type      TEXT NOT NULL,
		source_id        TEXT NOT NULL,
		content_type     TEXT NOT NULL,
		storage_type     TEXT NOT NULL,
		expires_at       DATETIME,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL,
		last_accessed_at DATETIME,
		access_count     INTEGER NOT NULL DEFAULT 0
	)`

// Store is the SQLite-backed vector store. It holds the primary record
// set and, during a model migration, a parallel staging set.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.corpus/data/corpus.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".corpus", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending schema migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// UpsertRecords stores records in the primary set, replacing any with the
// same chunk ID.
func (s *Store) UpsertRecords(ctx context.Context, records []domain.StoredRecord) error {
	return s.upsertInto(ctx, "records", records, 0)
}

// upsertInto writes records to the named table inside one transaction.
// A non-zero wantDim rejects records of any other dimension.
func (s *Store) upsertInto(ctx context.Context, table string, records []domain.StoredRecord, wantDim int) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrStorageWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	//nolint:gosec // table name is one of two compile-time constants
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+table+` (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			parent_id = excluded.parent_id,
			chunk_type = excluded.chunk_type,
			content = excluded.content,
			enhanced_content = excluded.enhanced_content,
			chunk_index = excluded.chunk_index,
			sibling_count = excluded.sibling_count,
			metadata = excluded.metadata,
			model_id = excluded.model_id,
			dimension = excluded.dimension,
			embedding = excluded.embedding,
			repository_id = excluded.repository_id,
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			content_type = excluded.content_type,
			storage_type = excluded.storage_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %v", domain.ErrStorageWrite, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if err := rec.Embedding.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
		}
		if wantDim != 0 && rec.Embedding.Dimension != wantDim {
			return fmt.Errorf("%w: record dimension %d, staging dimension %d",
				domain.ErrStorageWrite, rec.Embedding.Dimension, wantDim)
		}

		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshalling metadata: %v", domain.ErrStorageWrite, err)
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		_, err = stmt.ExecContext(ctx,
			rec.ID, rec.DocumentID, nullString(derefString(rec.ParentID)), string(rec.Type),
			rec.Content, rec.EnhancedContent, rec.ChunkIndex, rec.SiblingCount, string(metadataJSON),
			rec.Embedding.ModelID, rec.Embedding.Dimension, float32SliceToBytes(rec.Embedding.Vector),
			rec.RepositoryID, rec.SourceType, rec.SourceID, string(rec.ContentType), string(rec.StorageType),
			nullTime(rec.ExpiresAt), createdAt, now, nullTime(timePtr(rec.LastAccessedAt)), rec.AccessCount)
		if err != nil {
			return fmt.Errorf("%w: inserting record %s: %v", domain.ErrStorageWrite, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// DeleteBySource removes all records for one document source.
func (s *Store) DeleteBySource(ctx context.Context, sourceType, repositoryID, sourceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records
		WHERE source_type = ? AND repository_id = ? AND source_id = ?
	`, sourceType, repositoryID, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting by source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deletions: %w", err)
	}
	return int(n), nil
}

// Search loads candidate records, scores them by cosine similarity and
// returns the ranked results at or above the cutoff. Repository and
// content type narrowing happens in SQL; the remaining metadata filters
// and the similarity cutoff are applied before anything is returned.
func (s *Store) Search(ctx context.Context, query driven.SimilarityQuery) ([]domain.SearchResult, error) {
	var (
		conds []string
		args  []any
	)
	if query.RepositoryID != "" {
		conds = append(conds, "repository_id = ?")
		args = append(args, query.RepositoryID)
	}
	if len(query.Filters.ContentTypes) > 0 {
		placeholders := strings.Repeat("?,", len(query.Filters.ContentTypes))
		conds = append(conds, "content_type IN ("+placeholders[:len(placeholders)-1]+")")
		for _, ct := range query.Filters.ContentTypes {
			args = append(args, string(ct))
		}
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, metadata, embedding, dimension, repository_id, created_at
		FROM records`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %v", domain.ErrSearchBackend, err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			result       domain.SearchResult
			metadataJSON string
			blob         []byte
			dimension    int
		)
		if err := rows.Scan(&result.ChunkID, &result.Content, &metadataJSON,
			&blob, &dimension, &result.RepositoryID, &result.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %v", domain.ErrSearchBackend, err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &result.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshalling metadata: %v", domain.ErrSearchBackend, err)
		}
		if !matchesMetadataFilters(result.Metadata, query.Filters) {
			continue
		}
		vector := bytesToFloat32Slice(blob)
		if len(vector) != len(query.Embedding) {
			continue
		}
		sim := cosineSimilarity(query.Embedding, vector)
		if sim < query.MinSimilarity {
			continue
		}
		result.Similarity = sim
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating records: %v", domain.ErrSearchBackend, err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of records in the primary set.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// ListRecords pages through records ordered by chunk ID.
func (s *Store) ListRecords(ctx context.Context, offset, limit int) ([]domain.StoredRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		ORDER BY chunk_id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []domain.StoredRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// DeleteExpired removes records whose TTL passed before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deletions: %w", err)
	}
	return int(n), nil
}

// TouchAccess updates last-accessed time and access count for the chunks.
func (s *Store) TouchAccess(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(chunkIDs))
	args := make([]any, 0, len(chunkIDs)+1)
	args = append(args, time.Now().UTC())
	for _, id := range chunkIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET last_accessed_at = ?, access_count = access_count + 1
		WHERE chunk_id IN (`+placeholders[:len(placeholders)-1]+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("touching access: %w", err)
	}
	return nil
}

// CreateStaging creates an empty parallel record set for the new model.
// An existing staging set for the same model and dimension is kept, so
// an interrupted backfill can resume; any other staging set is dropped.
func (s *Store) CreateStaging(ctx context.Context, modelID string, dimension int) error {
	var (
		existingModel string
		existingDim   int
	)
	row := s.db.QueryRowContext(ctx, "SELECT model_id, dimension FROM staging_info WHERE id = 1")
	switch err := row.Scan(&existingModel, &existingDim); {
	case err == nil:
		if existingModel == modelID && existingDim == dimension && s.stagingTableExists(ctx) {
			return nil
		}
	case err != sql.ErrNoRows:
		return fmt.Errorf("reading staging info: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning staging transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS records_staging"); err != nil {
		return fmt.Errorf("dropping stale staging table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stagingSchema); err != nil {
		return fmt.Errorf("creating staging table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staging_info (id, model_id, dimension) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id, dimension = excluded.dimension
	`, modelID, dimension); err != nil {
		return fmt.Errorf("recording staging info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing staging creation: %w", err)
	}
	return nil
}

// stagingTableExists reports whether the staging table is present.
func (s *Store) stagingTableExists(ctx context.Context) bool {
	var name string
	row := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'records_staging'")
	return row.Scan(&name) == nil
}

// UpsertStaging writes re-embedded records to the staging set.
func (s *Store) UpsertStaging(ctx context.Context, records []domain.StoredRecord) error {
	dim, err := s.stagingDimension(ctx)
	if err != nil {
		return err
	}
	return s.upsertInto(ctx, "records_staging", records, dim)
}

// stagingDimension returns the declared dimension of the active staging
// set, or ErrMigrationState when none exists.
func (s *Store) stagingDimension(ctx context.Context) (int, error) {
	var dim int
	row := s.db.QueryRowContext(ctx, "SELECT dimension FROM staging_info WHERE id = 1")
	if err := row.Scan(&dim); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: no staging set", domain.ErrMigrationState)
		}
		return 0, fmt.Errorf("reading staging info: %w", err)
	}
	return dim, nil
}

// StagingChunkIDs returns the chunk IDs already staged, for backfill resume.
func (s *Store) StagingChunkIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_id FROM records_staging")
	if err != nil {
		return nil, fmt.Errorf("listing staging chunk IDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning staging chunk ID: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staging chunk IDs: %w", err)
	}
	return ids, nil
}

// StagingCount returns the number of records in the staging set.
func (s *Store) StagingCount(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records_staging")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting staging records: %w", err)
	}
	return n, nil
}

// Cutover atomically swaps the staging set into the primary position.
// The old primary set is retained as a timestamped backup table.
func (s *Store) Cutover(ctx context.Context) error {
	if _, err := s.stagingDimension(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cutover transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	backup := "records_backup_" + time.Now().UTC().Format("20060102150405")

	// Index names move with a renamed table, so drop them first and
	// recreate them on the new primary table afterwards.
	for _, idx := range []string{"idx_records_source", "idx_records_repository", "idx_records_expires"} {
		if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+idx); err != nil {
			return fmt.Errorf("dropping index %s: %w", idx, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE records RENAME TO "+backup); err != nil {
		return fmt.Errorf("renaming primary table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE records_staging RENAME TO records"); err != nil {
		return fmt.Errorf("promoting staging table: %w", err)
	}
	indexStmts := []string{
		"CREATE INDEX idx_records_source ON records (source_type, repository_id, source_id)",
		"CREATE INDEX idx_records_repository ON records (repository_id)",
		"CREATE INDEX idx_records_expires ON records (expires_at) WHERE expires_at IS NOT NULL",
	}
	for _, stmt := range indexStmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("recreating index: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM staging_info"); err != nil {
		return fmt.Errorf("clearing staging info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cutover: %w", err)
	}
	return nil
}

// DropStaging discards the staging set, leaving the primary set untouched.
func (s *Store) DropStaging(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning drop transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS records_staging"); err != nil {
		return fmt.Errorf("dropping staging table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM staging_info"); err != nil {
		return fmt.Errorf("clearing staging info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing staging drop: %w", err)
	}
	return nil
}

// BackupTables lists the retained pre-cutover backup tables, newest last.
func (s *Store) BackupTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name LIKE 'records_backup_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing backup tables: %w", err)
	}
	defer rows.Close()

	var names []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning backup table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backup tables: %w", err)
	}
	return names, nil
}

// scanRecord reads one full record row.
func scanRecord(rows *sql.Rows) (domain.StoredRecord, error) {
	var (
		rec            domain.StoredRecord
		parentID       sql.NullString
		chunkType      string
		metadataJSON   string
		blob           []byte
		contentType    string
		storageType    string
		expiresAt      sql.NullTime
		lastAccessedAt sql.NullTime
	)
	if err := rows.Scan(&rec.ID, &rec.DocumentID, &parentID, &chunkType, &rec.Content,
		&rec.EnhancedContent, &rec.ChunkIndex, &rec.SiblingCount, &metadataJSON,
		&rec.Embedding.ModelID, &rec.Embedding.Dimension, &blob,
		&rec.RepositoryID, &rec.SourceType, &rec.SourceID, &contentType, &storageType,
		&expiresAt, &rec.CreatedAt, &rec.UpdatedAt, &lastAccessedAt, &rec.AccessCount); err != nil {
		return rec, fmt.Errorf("scanning record: %w", err)
	}

	if parentID.Valid {
		rec.ParentID = &parentID.String
	}
	rec.Type = domain.ChunkType(chunkType)
	rec.ContentType = domain.ContentType(contentType)
	rec.StorageType = domain.StorageType(storageType)
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return rec, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	rec.Embedding.ChunkID = rec.ID
	rec.Embedding.Vector = bytesToFloat32Slice(blob)
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}
	if lastAccessedAt.Valid {
		rec.LastAccessedAt = lastAccessedAt.Time
	}
	return rec, nil
}

// matchesMetadataFilters applies the non-SQL filters to scanned metadata.
func matchesMetadataFilters(m domain.ChunkMetadata, f domain.SearchFilters) bool {
	if len(f.Severities) > 0 {
		found := false
		for _, sev := range f.Severities {
			if m.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range f.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	if f.HasCode != nil && m.HasCode != *f.HasCode {
		return false
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two vectors
// of equal length. Zero vectors yield similarity 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// nullString returns a NULL-able value for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime returns a NULL-able value for optional time columns.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// derefString unwraps an optional string.
func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// timePtr converts a zero-meaning-absent time into a pointer.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
