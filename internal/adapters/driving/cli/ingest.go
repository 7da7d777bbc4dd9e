package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
)

var (
	ingestRepo        string
	ingestSourceType  string
	ingestSourceID    string
	ingestContentType string
	ingestStorage     string
	ingestTTL         time.Duration
	ingestJSON        bool
	ingestQuiet       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document into the corpus",
	Long: `Chunks a document along its structure, enriches the chunks with
context and tags, embeds them and stores them in the local corpus.
Re-ingesting the same source replaces its previous chunks.

Pass - to read the document from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRepo, "repo", "", "owning repository (required)")
	ingestCmd.Flags().StringVar(&ingestSourceType, "source-type", "analysis", "source type label")
	ingestCmd.Flags().StringVar(&ingestSourceID, "source-id", "", "source identifier (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestContentType, "type", string(domain.ContentTypeGenericAnalysis), "content type (repository_analysis, pr_analysis, documentation, generic_analysis)")
	ingestCmd.Flags().StringVar(&ingestStorage, "storage", string(domain.StoragePermanent), "storage type (permanent, cached, temporary)")
	ingestCmd.Flags().DurationVar(&ingestTTL, "ttl", 0, "lifetime for cached/temporary storage (e.g. 72h)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "suppress progress output")
	_ = ingestCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	content, sourceID, err := readIngestInput(args[0])
	if err != nil {
		return err
	}
	if ingestSourceID != "" {
		sourceID = ingestSourceID
	}

	opts := driving.IngestionOptions{
		RepositoryID: ingestRepo,
		SourceType:   ingestSourceType,
		SourceID:     sourceID,
		StorageType:  domain.StorageType(ingestStorage),
		TTL:          ingestTTL,
	}
	if !ingestQuiet && !ingestJSON {
		opts.Progress = func(stage string, completed, total int) {
			cmd.Printf("  %s: %d/%d\n", stage, completed, total)
		}
	}

	result, err := ingestionService.ProcessDocument(
		cmd.Context(), content, domain.ContentType(ingestContentType), opts)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Ingested %s: %d/%d chunks stored in %s\n",
		sourceID, result.ChunksStored, result.ChunksProcessed, result.Duration.Round(time.Millisecond))
	for _, e := range result.Errors {
		cmd.Printf("  warning: %s %s: %s\n", e.Stage, e.ChunkID, e.Message)
	}
	return nil
}

// readIngestInput loads the document from a file or stdin and derives a
// default source ID.
func readIngestInput(arg string) (content, sourceID string, err error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", arg, err)
	}
	return string(data), filepath.Base(arg), nil
}
