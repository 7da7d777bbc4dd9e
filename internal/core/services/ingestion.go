package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

const (
	// DefaultEmbedBatchSize bounds the number of chunks per embedding call.
	DefaultEmbedBatchSize = 32

	// DefaultEmbedConcurrency bounds the embedding worker pool.
	DefaultEmbedConcurrency = 4

	// embedMaxRetries bounds retries of a failed embedding batch.
	embedMaxRetries = 3
)

// IngestionService drives documents through the full pipeline:
// preprocess, chunk, enhance, embed, store.
type IngestionService struct {
	registry driven.PreprocessorRegistry
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	store    driven.VectorStore
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	registry driven.PreprocessorRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
) *IngestionService {
	return &IngestionService{
		registry: registry,
		pipeline: pipeline,
		embedder: embedder,
		store:    store,
	}
}

// ProcessDocument ingests one document. Chunk-level embedding failures
// accumulate in the result's Errors list; the surviving chunks are still
// stored, so a partially embedded document is searchable for what worked.
func (s *IngestionService) ProcessDocument(
	ctx context.Context, content string, contentType domain.ContentType, opts driving.IngestionOptions,
) (*driving.IngestionResult, error) {
	start := time.Now()
	result := &driving.IngestionResult{}

	if err := s.validate(contentType, opts); err != nil {
		return result, err
	}

	storageType := opts.StorageType
	if storageType == "" {
		storageType = domain.StoragePermanent
	}

	doc := &domain.Document{
		ID:           uuid.New().String(),
		RepositoryID: opts.RepositoryID,
		SourceType:   opts.SourceType,
		SourceID:     opts.SourceID,
		ContentType:  contentType,
		Content:      content,
		StorageType:  storageType,
		TTL:          opts.TTL,
		CreatedAt:    start,
	}

	logger.Section("Document Ingestion")
	logger.Debug("Document %s (%s) for repository %s", doc.SourceID, contentType, doc.RepositoryID)

	progress(opts.Progress, "preprocess", 0, 1)
	structured, err := s.registry.Get(contentType).Preprocess(ctx, doc)
	if err != nil {
		return result, fmt.Errorf("preprocessing document %s: %w", doc.SourceID, err)
	}
	structured.DocumentID = doc.ID
	progress(opts.Progress, "preprocess", 1, 1)

	chunks, err := s.pipeline.Process(ctx, structured)
	if err != nil {
		return result, fmt.Errorf("processing document %s: %w", doc.SourceID, err)
	}
	result.ChunksProcessed = len(chunks)
	progress(opts.Progress, "chunk", len(chunks), len(chunks))
	progress(opts.Progress, "enhance", len(chunks), len(chunks))
	logger.Debug("Pipeline produced %d chunks", len(chunks))

	vectors, embedErrs := s.embedChunks(ctx, chunks, opts)
	for _, e := range embedErrs {
		e.SourceID = doc.SourceID
		result.Errors = append(result.Errors, e)
	}

	records := s.buildRecords(doc, chunks, vectors, start)
	result.TokensUsed = estimateTokens(chunks)

	progress(opts.Progress, "store", 0, len(records))
	if _, err := s.store.DeleteBySource(ctx, doc.SourceType, doc.RepositoryID, doc.SourceID); err != nil {
		return result, fmt.Errorf("replacing prior chunks for %s: %w", doc.SourceID, err)
	}
	if err := s.store.UpsertRecords(ctx, records); err != nil {
		return result, fmt.Errorf("storing chunks for %s: %w", doc.SourceID, err)
	}
	progress(opts.Progress, "store", len(records), len(records))

	result.ChunksStored = len(records)
	result.Success = true
	result.Duration = time.Since(start)
	logger.Info("Ingested %s: %d/%d chunks stored in %s",
		doc.SourceID, result.ChunksStored, result.ChunksProcessed, result.Duration.Round(time.Millisecond))
	return result, nil
}

// ProcessDocuments ingests a batch of documents. A failing document is
// recorded in the aggregated errors and does not abort its siblings.
func (s *IngestionService) ProcessDocuments(
	ctx context.Context, docs []driving.DocumentInput, opts driving.IngestionOptions,
) (*driving.IngestionResult, error) {
	start := time.Now()
	aggregate := &driving.IngestionResult{Success: true}

	for _, doc := range docs {
		docOpts := opts
		docOpts.SourceID = doc.SourceID

		res, err := s.ProcessDocument(ctx, doc.Content, doc.ContentType, docOpts)
		aggregate.ChunksProcessed += res.ChunksProcessed
		aggregate.ChunksStored += res.ChunksStored
		aggregate.TokensUsed += res.TokensUsed
		aggregate.Errors = append(aggregate.Errors, res.Errors...)
		if err != nil {
			aggregate.Success = false
			aggregate.Errors = append(aggregate.Errors, driving.IngestionError{
				SourceID: doc.SourceID,
				Stage:    "document",
				Message:  err.Error(),
			})
			logger.Warn("Document %s failed: %v", doc.SourceID, err)
		}
		if ctx.Err() != nil {
			return aggregate, ctx.Err()
		}
	}

	aggregate.Duration = time.Since(start)
	return aggregate, nil
}

// validate checks the required inputs and wiring.
func (s *IngestionService) validate(contentType domain.ContentType, opts driving.IngestionOptions) error {
	if s.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}
	if s.store == nil {
		return domain.ErrStoreUnavailable
	}
	if !contentType.Valid() {
		return fmt.Errorf("%w: content type %q", domain.ErrInvalidInput, contentType)
	}
	if opts.RepositoryID == "" {
		return fmt.Errorf("%w: repository ID is required", domain.ErrInvalidInput)
	}
	if opts.SourceType == "" {
		return fmt.Errorf("%w: source type is required", domain.ErrInvalidInput)
	}
	if opts.SourceID == "" {
		return fmt.Errorf("%w: source ID is required", domain.ErrInvalidInput)
	}
	if opts.StorageType != "" && !opts.StorageType.Valid() {
		return fmt.Errorf("%w: storage type %q", domain.ErrInvalidInput, opts.StorageType)
	}
	return nil
}

// embedChunks embeds all chunks through a bounded worker pool and returns
// one vector per chunk, nil where embedding failed. Failures are
// chunk-scoped; one bad batch never sinks its siblings.
func (s *IngestionService) embedChunks(
	ctx context.Context, chunks []domain.Chunk, opts driving.IngestionOptions,
) ([][]float32, []driving.IngestionError) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	concurrency := opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}

	vectors := make([][]float32, len(chunks))
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		errs      []driving.IngestionError
		completed int
	)
	sem := make(chan struct{}, concurrency)

	for offset := 0; offset < len(chunks); offset += batchSize {
		end := min(offset+batchSize, len(chunks))
		batch := chunks[offset:end]

		wg.Add(1)
		sem <- struct{}{}
		go func(offset int, batch []domain.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].SearchText()
			}

			batchVectors, failed := s.embedWithRetry(ctx, texts)

			mu.Lock()
			for i, vec := range batchVectors {
				vectors[offset+i] = vec
			}
			for _, idx := range failed {
				errs = append(errs, driving.IngestionError{
					ChunkID: batch[idx].ID,
					Stage:   "embed",
					Message: fmt.Sprintf("embedding failed for chunk %d after %d attempts", offset+idx, embedMaxRetries+1),
				})
			}
			completed += len(batch)
			progress(opts.Progress, "embed", completed, len(chunks))
			mu.Unlock()
		}(offset, batch)
	}
	wg.Wait()

	return vectors, errs
}

// embedWithRetry embeds one batch, retrying transient failures with
// exponential backoff. Only inputs that still lack a vector are
// retried. Returns the vectors (nil where permanently failed) and the
// indices that never succeeded.
func (s *IngestionService) embedWithRetry(ctx context.Context, texts []string) ([][]float32, []int) {
	vectors := make([][]float32, len(texts))
	pending := make([]int, len(texts))
	for i := range pending {
		pending[i] = i
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), embedMaxRetries), ctx)

	for attempt := 0; len(pending) > 0 && attempt <= embedMaxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return vectors, pending
			}
		}

		s.embedAttempt(ctx, texts, vectors, pending)
		pending = withoutEmbedded(pending, vectors)
	}

	return vectors, pending
}

// embedAttempt runs one embedding pass over the pending inputs, writing
// every vector the provider returned. When the provider blames a subset
// of the batch, the vectors of its siblings are usually lost with the
// error; those inputs are re-embedded straight away without the
// suspects so a bad input never costs its batch-mates their embeddings.
func (s *IngestionService) embedAttempt(ctx context.Context, texts []string, vectors [][]float32, pending []int) {
	capture := func(indices []int, got [][]float32) {
		for i, idx := range indices {
			if i < len(got) && got[i] != nil {
				vectors[idx] = got[i]
			}
		}
	}

	attemptTexts := make([]string, len(pending))
	for i, idx := range pending {
		attemptTexts[i] = texts[idx]
	}

	got, err := s.embedder.EmbedBatch(ctx, attemptTexts)
	capture(pending, got)
	if err == nil {
		return
	}
	logger.Debug("Embedding attempt failed for %d inputs: %v", len(pending), err)

	failed := failedSubset(pending, err)
	if len(failed) == len(pending) {
		return
	}
	suspect := make(map[int]bool, len(failed))
	for _, idx := range failed {
		suspect[idx] = true
	}

	var lost []int
	for _, idx := range pending {
		if vectors[idx] == nil && !suspect[idx] {
			lost = append(lost, idx)
		}
	}
	if len(lost) == 0 {
		return
	}

	lostTexts := make([]string, len(lost))
	for i, idx := range lost {
		lostTexts[i] = texts[idx]
	}
	got, err = s.embedder.EmbedBatch(ctx, lostTexts)
	capture(lost, got)
	if err != nil {
		logger.Debug("Re-embedding %d non-failed inputs failed: %v", len(lost), err)
	}
}

// withoutEmbedded filters the pending indices to those still lacking a
// vector, preserving order.
func withoutEmbedded(pending []int, vectors [][]float32) []int {
	out := pending[:0:0]
	for _, idx := range pending {
		if vectors[idx] == nil {
			out = append(out, idx)
		}
	}
	return out
}

// failedSubset maps an embedding error's failed indices back into the
// caller's index space. Untyped errors fail the whole attempt set.
func failedSubset(pending []int, err error) []int {
	var embErr *domain.EmbeddingError
	if !errors.As(err, &embErr) || len(embErr.FailedIndices) == 0 {
		return pending
	}
	subset := make([]int, 0, len(embErr.FailedIndices))
	for _, i := range embErr.FailedIndices {
		if i >= 0 && i < len(pending) {
			subset = append(subset, pending[i])
		}
	}
	if len(subset) == 0 {
		return pending
	}
	return subset
}

// buildRecords pairs successfully embedded chunks with their provenance.
func (s *IngestionService) buildRecords(
	doc *domain.Document, chunks []domain.Chunk, vectors [][]float32, now time.Time,
) []domain.StoredRecord {
	var expiresAt *time.Time
	if doc.StorageType != domain.StoragePermanent && doc.TTL > 0 {
		t := now.Add(doc.TTL)
		expiresAt = &t
	}

	records := make([]domain.StoredRecord, 0, len(chunks))
	for i := range chunks {
		if vectors[i] == nil {
			continue
		}
		records = append(records, domain.StoredRecord{
			Chunk: chunks[i],
			Embedding: domain.Embedding{
				ChunkID:   chunks[i].ID,
				ModelID:   s.embedder.ModelName(),
				Dimension: s.embedder.Dimensions(),
				Vector:    vectors[i],
			},
			RepositoryID: doc.RepositoryID,
			SourceType:   doc.SourceType,
			SourceID:     doc.SourceID,
			ContentType:  doc.ContentType,
			StorageType:  doc.StorageType,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return records
}

// progress invokes the callback when one is set.
func progress(fn driving.ProgressFunc, stage string, completed, total int) {
	if fn != nil {
		fn(stage, completed, total)
	}
}

// estimateTokens approximates token usage from embedded text length.
func estimateTokens(chunks []domain.Chunk) int {
	total := 0
	for i := range chunks {
		total += len(chunks[i].SearchText())
	}
	return total / 4
}

