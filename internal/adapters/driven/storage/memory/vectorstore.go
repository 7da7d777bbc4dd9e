package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interfaces.
var (
	_ driven.VectorStore    = (*VectorStore)(nil)
	_ driven.MigrationStore = (*VectorStore)(nil)
)

// VectorStore is an in-memory implementation of driven.VectorStore and
// driven.MigrationStore. Records are keyed by chunk ID, matching the
// one-embedding-per-chunk rule of the primary record set.
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]domain.StoredRecord

	staging      map[string]domain.StoredRecord
	stagingModel string
	stagingDim   int

	backup      map[string]domain.StoredRecord
	backupLabel string

	closed bool
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		records: make(map[string]domain.StoredRecord),
	}
}

// UpsertRecords stores records, replacing any with the same chunk ID.
func (s *VectorStore) UpsertRecords(_ context.Context, records []domain.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", domain.ErrStorageWrite)
	}
	for _, rec := range records {
		if err := rec.Embedding.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
		}
		s.records[rec.ID] = rec
	}
	return nil
}

// DeleteBySource removes all records for one document source.
func (s *VectorStore) DeleteBySource(_ context.Context, sourceType, repositoryID, sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rec := range s.records {
		if rec.SourceType == sourceType && rec.RepositoryID == repositoryID && rec.SourceID == sourceID {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Search ranks matching records by cosine similarity descending, ties
// broken by most recent creation time.
func (s *VectorStore) Search(_ context.Context, query driven.SimilarityQuery) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store closed", domain.ErrSearchBackend)
	}

	var results []domain.SearchResult
	for _, rec := range s.records {
		if query.RepositoryID != "" && rec.RepositoryID != query.RepositoryID {
			continue
		}
		if !matchesFilters(rec, query.Filters) {
			continue
		}
		if len(rec.Embedding.Vector) != len(query.Embedding) {
			continue
		}
		sim := cosineSimilarity(query.Embedding, rec.Embedding.Vector)
		if sim < query.MinSimilarity {
			continue
		}
		results = append(results, domain.SearchResult{
			ChunkID:      rec.ID,
			Content:      rec.Content,
			Metadata:     rec.Metadata,
			Similarity:   sim,
			RepositoryID: rec.RepositoryID,
			CreatedAt:    rec.CreatedAt,
		})
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

// Count returns the number of stored records.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// ListRecords pages through records ordered by chunk ID for a stable
// backfill iteration order.
func (s *VectorStore) ListRecords(_ context.Context, offset, limit int) ([]domain.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]domain.StoredRecord, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, s.records[id])
	}
	return out, nil
}

// DeleteExpired removes records whose TTL passed before now.
func (s *VectorStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// TouchAccess updates last-accessed time and access count for the chunks.
func (s *VectorStore) TouchAccess(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, id := range chunkIDs {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		rec.LastAccessedAt = now
		rec.AccessCount++
		s.records[id] = rec
	}
	return nil
}

// Close marks the store closed.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CreateStaging starts an empty parallel record set for the new model.
// An existing staging set for the same model and dimension is kept, so
// an interrupted backfill can resume.
func (s *VectorStore) CreateStaging(_ context.Context, modelID string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging != nil && s.stagingModel == modelID && s.stagingDim == dimension {
		return nil
	}
	s.staging = make(map[string]domain.StoredRecord)
	s.stagingModel = modelID
	s.stagingDim = dimension
	return nil
}

// UpsertStaging writes re-embedded records to the staging set.
func (s *VectorStore) UpsertStaging(_ context.Context, records []domain.StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging == nil {
		return fmt.Errorf("%w: no staging set", domain.ErrMigrationState)
	}
	for _, rec := range records {
		if rec.Embedding.Dimension != s.stagingDim {
			return fmt.Errorf("%w: record dimension %d, staging dimension %d",
				domain.ErrStorageWrite, rec.Embedding.Dimension, s.stagingDim)
		}
		if err := rec.Embedding.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
		}
		s.staging[rec.ID] = rec
	}
	return nil
}

// StagingChunkIDs returns the chunk IDs already staged.
func (s *VectorStore) StagingChunkIDs(_ context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool, len(s.staging))
	for id := range s.staging {
		ids[id] = true
	}
	return ids, nil
}

// StagingCount returns the number of staged records.
func (s *VectorStore) StagingCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.staging), nil
}

// Cutover swaps the staging set into the primary position and keeps the
// old primary set as a labelled backup.
func (s *VectorStore) Cutover(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging == nil {
		return fmt.Errorf("%w: no staging set to cut over", domain.ErrMigrationState)
	}
	s.backup = s.records
	s.backupLabel = "backup_" + time.Now().UTC().Format("20060102150405")
	s.records = s.staging
	s.staging = nil
	s.stagingModel = ""
	s.stagingDim = 0
	return nil
}

// DropStaging discards the staging set, leaving the primary set untouched.
func (s *VectorStore) DropStaging(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staging = nil
	s.stagingModel = ""
	s.stagingDim = 0
	return nil
}

// BackupLabel returns the label of the retained pre-cutover record set,
// empty when no cutover has happened.
func (s *VectorStore) BackupLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backupLabel
}

// matchesFilters applies the metadata filters to one record.
func matchesFilters(rec domain.StoredRecord, f domain.SearchFilters) bool {
	if len(f.ContentTypes) > 0 && !containsContentType(f.ContentTypes, rec.ContentType) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, rec.Metadata.Severity) {
		return false
	}
	for _, tag := range f.Tags {
		if !rec.Metadata.HasTag(tag) {
			return false
		}
	}
	if f.HasCode != nil && rec.Metadata.HasCode != *f.HasCode {
		return false
	}
	return true
}

func containsContentType(types []domain.ContentType, ct domain.ContentType) bool {
	for _, t := range types {
		if t == ct {
			return true
		}
	}
	return false
}

func containsSeverity(sevs []domain.Severity, sev domain.Severity) bool {
	for _, s := range sevs {
		if s == sev {
			return true
		}
	}
	return false
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
