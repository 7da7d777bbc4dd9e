package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

var (
	searchRepo           string
	searchLimit          int
	searchThreshold      string
	searchThresholdValue float64
	searchAdaptive       bool
	searchNoCache        bool
	searchUrgency        string
	searchPrecision      string
	searchContentType    string
	searchJSON           bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the corpus",
	Long: `Runs a similarity search over the ingested corpus.

The similarity threshold is selected automatically from the query's
shape unless --threshold or --threshold-value pins it. --adaptive
sweeps every threshold class and keeps the best-scoring result set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchRepo, "repo", "", "restrict the search to one repository")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchThreshold, "threshold", "", "threshold class (strict, high, default, medium, low)")
	searchCmd.Flags().Float64Var(&searchThresholdValue, "threshold-value", -1, "exact similarity cutoff, overrides --threshold")
	searchCmd.Flags().BoolVar(&searchAdaptive, "adaptive", false, "sweep all threshold classes and keep the best set")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the result cache")
	searchCmd.Flags().StringVar(&searchUrgency, "urgency", "", "query urgency hint (critical)")
	searchCmd.Flags().StringVar(&searchPrecision, "precision", "", "precision hint (specific, broad)")
	searchCmd.Flags().StringVar(&searchContentType, "content-type", "", "content-type hint (security, documentation)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	opts := domain.SearchOptions{
		RepositoryID: searchRepo,
		MaxResults:   searchLimit,
		Threshold:    domain.ThresholdClass(searchThreshold),
		Adaptive:     searchAdaptive,
		SkipCache:    searchNoCache,
		Context: domain.QueryContext{
			ContentType: searchContentType,
			Urgency:     searchUrgency,
			Precision:   searchPrecision,
		},
	}
	if searchThresholdValue >= 0 {
		v := searchThresholdValue
		opts.ThresholdValue = &v
	}

	response, err := retrievalService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return outputSearchText(cmd, response)
}

func outputSearchText(cmd *cobra.Command, response *domain.SearchResponse) error {
	label := string(response.SelectedClass)
	if label == "" {
		label = "numeric"
	}
	cmd.Printf("Threshold: %s (%.2f, confidence %.2f)\n", label, response.SelectedThreshold, response.Confidence)
	cmd.Printf("Reasoning: %s\n", response.Reasoning)
	if response.Cached {
		cmd.Println("(served from cache)")
	}
	cmd.Println()

	if len(response.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i, result := range response.Results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, result.ChunkID, result.Similarity)
		if result.Metadata.SectionTitle != "" {
			cmd.Printf("      Section: %s\n", result.Metadata.SectionTitle)
		}
		if len(result.Metadata.SemanticTags) > 0 {
			cmd.Printf("      Tags: %v\n", result.Metadata.SemanticTags)
		}
		cmd.Printf("      %s\n", snippet(result.Content, 160))
		cmd.Println()
	}
	return nil
}

// snippet truncates content to a single display line.
func snippet(content string, max int) string {
	line, _, _ := strings.Cut(content, "\n")
	if len(line) > max {
		line = line[:max] + "..."
	}
	return line
}
