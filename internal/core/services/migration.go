package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure MigrationService implements the interface.
var _ driving.MigrationService = (*MigrationService)(nil)

const (
	// DefaultBackfillPageSize is the number of records read per backfill page.
	DefaultBackfillPageSize = 100

	// DefaultBackfillRate caps embedding calls per second during backfill,
	// so a migration never starves live ingestion of provider quota.
	DefaultBackfillRate = 5
)

// MigrationOptions configures a model migration run.
type MigrationOptions struct {
	// PageSize is the backfill read page size. Zero uses the default.
	PageSize int

	// RatePerSecond caps backfill embedding calls. Zero uses the default.
	RatePerSecond float64
}

// MigrationService re-embeds the whole corpus under a new model with
// staged cutover. The primary record set stays untouched and fully
// queryable until the staging set passes verification; any earlier
// failure rolls back by discarding the staging set.
type MigrationService struct {
	store    driven.VectorStore
	staging  driven.MigrationStore
	embedder driven.EmbeddingService
	opts     MigrationOptions

	mu       sync.Mutex
	progress domain.MigrationProgress
}

// NewMigrationService creates a migration coordinator targeting the
// embedder's model.
func NewMigrationService(
	store driven.VectorStore,
	staging driven.MigrationStore,
	embedder driven.EmbeddingService,
	opts MigrationOptions,
) *MigrationService {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultBackfillPageSize
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = DefaultBackfillRate
	}
	return &MigrationService{
		store:    store,
		staging:  staging,
		embedder: embedder,
		opts:     opts,
		progress: domain.MigrationProgress{State: domain.MigrationStatePending},
	}
}

// Progress reports the current phase and backfill progress.
func (s *MigrationService) Progress() domain.MigrationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Run drives the state machine: validate, stage, backfill, verify,
// cutover. A failure in any phase before cutover triggers rollback.
func (s *MigrationService) Run(ctx context.Context) error {
	logger.Section("Model Migration")
	logger.Info("Migrating corpus to model %s (%d dimensions)",
		s.embedder.ModelName(), s.embedder.Dimensions())

	total, err := s.validate(ctx)
	if err != nil {
		s.setState(domain.MigrationStateRolledBack)
		return fmt.Errorf("validate: %w", err)
	}
	if total == 0 {
		logger.Info("Nothing to migrate")
		s.setState(domain.MigrationStateComplete)
		return nil
	}

	if err := s.stage(ctx); err != nil {
		return s.rollback(ctx, fmt.Errorf("stage: %w", err))
	}
	if err := s.backfill(ctx, total); err != nil {
		return s.rollback(ctx, fmt.Errorf("backfill: %w", err))
	}
	if err := s.verify(ctx, total); err != nil {
		return s.rollback(ctx, fmt.Errorf("verify: %w", err))
	}
	if err := s.cutover(ctx); err != nil {
		// Cutover is a single atomic swap; a failure here leaves the
		// primary set as it was, so rollback still applies.
		return s.rollback(ctx, fmt.Errorf("cutover: %w", err))
	}

	s.setState(domain.MigrationStateComplete)
	logger.Info("Migration complete: %d chunks now on %s", total, s.embedder.ModelName())
	return nil
}

// validate checks the target model is reachable and sane, and counts the
// work.
func (s *MigrationService) validate(ctx context.Context) (int, error) {
	s.setState(domain.MigrationStateValidate)

	if s.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if s.store == nil || s.staging == nil {
		return 0, domain.ErrStoreUnavailable
	}
	if s.embedder.Dimensions() <= 0 {
		return 0, fmt.Errorf("%w: model %s reports dimension %d",
			domain.ErrInvalidInput, s.embedder.ModelName(), s.embedder.Dimensions())
	}
	if err := s.embedder.Ping(ctx); err != nil {
		return 0, fmt.Errorf("pinging model %s: %w", s.embedder.ModelName(), err)
	}

	// Embed a sample so a model whose real output length disagrees with
	// its declared dimension fails here, not thousands of chunks into
	// the backfill.
	sample, err := s.embedder.Embed(ctx, "corpus migration validation sample")
	if err != nil {
		return 0, fmt.Errorf("embedding sample with model %s: %w", s.embedder.ModelName(), err)
	}
	if len(sample) != s.embedder.Dimensions() {
		return 0, fmt.Errorf("%w: model %s returned %d dimensions, declared %d",
			domain.ErrInvalidInput, s.embedder.ModelName(), len(sample), s.embedder.Dimensions())
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	s.mu.Lock()
	s.progress.Total = total
	s.mu.Unlock()
	return total, nil
}

// stage creates the parallel record set.
func (s *MigrationService) stage(ctx context.Context) error {
	s.setState(domain.MigrationStateStage)
	return s.staging.CreateStaging(ctx, s.embedder.ModelName(), s.embedder.Dimensions())
}

// backfill re-embeds every record into the staging set. Records already
// staged (from an interrupted earlier run) are skipped, so backfill is
// resumable. Embedding calls are rate limited.
func (s *MigrationService) backfill(ctx context.Context, total int) error {
	s.setState(domain.MigrationStateBackfill)

	done, err := s.staging.StagingChunkIDs(ctx)
	if err != nil {
		return fmt.Errorf("reading staged chunk IDs: %w", err)
	}
	if len(done) > 0 {
		logger.Info("Resuming backfill: %d of %d chunks already staged", len(done), total)
	}

	limiter := rate.NewLimiter(rate.Limit(s.opts.RatePerSecond), 1)
	started := time.Now()
	processed := len(done)
	s.updateBackfill(processed, total, started)

	for offset := 0; ; offset += s.opts.PageSize {
		page, err := s.store.ListRecords(ctx, offset, s.opts.PageSize)
		if err != nil {
			return fmt.Errorf("listing records at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		pending := page[:0:0]
		for _, rec := range page {
			if !done[rec.ID] {
				pending = append(pending, rec)
			}
		}
		if len(pending) == 0 {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		texts := make([]string, len(pending))
		for i := range pending {
			texts[i] = pending[i].SearchText()
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("re-embedding %d chunks: %w", len(pending), err)
		}

		staged := make([]domain.StoredRecord, len(pending))
		for i, rec := range pending {
			rec.Embedding = domain.Embedding{
				ChunkID:   rec.ID,
				ModelID:   s.embedder.ModelName(),
				Dimension: s.embedder.Dimensions(),
				Vector:    vectors[i],
			}
			rec.UpdatedAt = time.Now().UTC()
			staged[i] = rec
		}
		if err := s.staging.UpsertStaging(ctx, staged); err != nil {
			return fmt.Errorf("staging %d chunks: %w", len(staged), err)
		}

		processed += len(staged)
		s.updateBackfill(processed, total, started)
	}

	return nil
}

// verify checks the staging set covers the primary set completely.
func (s *MigrationService) verify(ctx context.Context, total int) error {
	s.setState(domain.MigrationStateVerify)

	staged, err := s.staging.StagingCount(ctx)
	if err != nil {
		return fmt.Errorf("counting staged records: %w", err)
	}
	if staged != total {
		return fmt.Errorf("%w: staged %d of %d records",
			domain.ErrMigrationVerification, staged, total)
	}
	return nil
}

// cutover commits the swap.
func (s *MigrationService) cutover(ctx context.Context) error {
	s.setState(domain.MigrationStateCutover)
	return s.staging.Cutover(ctx)
}

// rollback discards the staging set and surfaces the causing error. The
// primary set was never modified, so there is nothing else to undo.
func (s *MigrationService) rollback(ctx context.Context, cause error) error {
	logger.Warn("Migration failed, rolling back: %v", cause)
	if err := s.staging.DropStaging(ctx); err != nil {
		logger.Warn("Dropping staging set failed: %v", err)
	}
	s.setState(domain.MigrationStateRolledBack)
	return cause
}

// setState records a phase transition.
func (s *MigrationService) setState(state domain.MigrationState) {
	s.mu.Lock()
	s.progress.State = state
	s.mu.Unlock()
}

// updateBackfill records backfill progress and recomputes the ETA from
// the observed rate.
func (s *MigrationService) updateBackfill(processed, total int, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress.Processed = processed
	s.progress.Total = total
	if total > 0 {
		s.progress.Percentage = float64(processed) / float64(total) * 100
	}

	elapsed := time.Since(started)
	if processed > 0 && processed < total && elapsed > 0 {
		perChunk := elapsed / time.Duration(processed)
		s.progress.ETA = perChunk * time.Duration(total-processed)
	} else {
		s.progress.ETA = 0
	}
}
