package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// MigrationService re-embeds the corpus under a new model with staged
// cutover and rollback. Searches against the primary store are never
// observable as a partial or mixed-model result set.
type MigrationService interface {
	// Run drives the full state machine: validate, stage, backfill,
	// verify, cutover. Any failure before cutover commits triggers
	// rollback and leaves the primary store untouched.
	Run(ctx context.Context) error

	// Progress reports the current phase and backfill progress.
	Progress() domain.MigrationProgress
}

// CleanupService sweeps expired cached/temporary records.
type CleanupService interface {
	// Start begins the periodic sweep loop. Blocks until Stop or
	// context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the sweep loop.
	Stop() error

	// RunOnce performs a single sweep immediately.
	RunOnce(ctx context.Context) (*domain.SweepResult, error)
}
