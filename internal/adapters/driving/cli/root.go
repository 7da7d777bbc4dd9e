// Package cli implements the corpus command line interface.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Semantic corpus ingestion and retrieval",
	Long: `corpus ingests analysis documents into a searchable vector corpus.

Documents are chunked along their structure, enriched with context and
tags, embedded, and stored locally. Searches select a similarity
threshold automatically from the query's shape and report the decision
alongside the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// configDir returns the corpus configuration directory, creating it if
// needed. Defaults to ~/.corpus; CORPUS_HOME overrides it.
func configDir() (string, error) {
	if dir := os.Getenv("CORPUS_HOME"); dir != "" {
		return dir, os.MkdirAll(dir, 0700)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".corpus")
	return dir, os.MkdirAll(dir, 0700)
}
