package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/services"
)

var (
	migratePageSize int
	migrateRate     float64
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Re-embed the corpus under the configured model",
	Long: `Re-embeds every stored chunk under the embedding model currently
configured and atomically swaps the corpus over to it.

The existing corpus stays fully searchable under the old model until
the new record set is complete and verified. A failure at any point
before the swap rolls back, leaving the corpus untouched.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migratePageSize, "page-size", services.DefaultBackfillPageSize, "records re-embedded per batch")
	migrateCmd.Flags().Float64Var(&migrateRate, "rate", services.DefaultBackfillRate, "embedding batches per second")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	svc := services.NewMigrationService(vectorStore, migrationStore, embedder, services.MigrationOptions{
		PageSize:      migratePageSize,
		RatePerSecond: migrateRate,
	})

	done := make(chan struct{})
	go reportMigration(cmd, svc, done)

	err := svc.Run(cmd.Context())
	close(done)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	progress := svc.Progress()
	cmd.Printf("Migration complete: %d chunks re-embedded under %s\n",
		progress.Processed, embedder.ModelName())
	return nil
}

// reportMigration prints backfill progress until the run finishes.
func reportMigration(cmd *cobra.Command, svc *services.MigrationService, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			progress := svc.Progress()
			if progress.Total == 0 {
				continue
			}
			line := fmt.Sprintf("  %s: %d/%d (%.1f%%)",
				progress.State, progress.Processed, progress.Total, progress.Percentage)
			if progress.ETA > 0 {
				line += fmt.Sprintf(", ETA %s", progress.ETA.Round(time.Second))
			}
			cmd.Println(line)
		}
	}
}
