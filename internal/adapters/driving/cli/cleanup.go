package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var cleanupWatch bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cached and temporary records",
	Long: `Sweeps records whose TTL has passed out of the corpus.

Runs a single sweep by default. With --watch it keeps sweeping at the
configured interval until interrupted.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupWatch, "watch", false, "keep sweeping at the configured interval")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	if cleanupWatch {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			_ = cleanupService.Stop()
		}()

		cmd.Println("Sweeping expired records; press Ctrl-C to stop.")
		return cleanupService.Start(cmd.Context())
	}

	result, err := cleanupService.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	cmd.Printf("Removed %d expired records in %s\n",
		result.Deleted, result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return nil
}
