package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "review.md")
	content := `# Payment Review

## Error Handling

Charge failures are silently swallowed in the retry path.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [file]", ingestCmd.Use)
}

func TestIngestCmd_FlagDefaults(t *testing.T) {
	assert.Equal(t, "analysis", ingestCmd.Flags().Lookup("source-type").DefValue)
	assert.Equal(t, "generic_analysis", ingestCmd.Flags().Lookup("type").DefValue)
	assert.Equal(t, "permanent", ingestCmd.Flags().Lookup("storage").DefValue)
}

func TestIngestCmd_RequiresRepoFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "somefile.md"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "repo")
}

func TestIngestCmd_IngestsFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	path := writeTestDocument(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--repo", "acme/payments", "--quiet", path})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestQuiet = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested review.md")

	count, err := vectorStore.Count(context.Background())
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestIngestCmd_SourceIDOverride(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	path := writeTestDocument(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--repo", "acme/payments", "--source-id", "pr-42", "--quiet", path})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestSourceID = ""
		ingestQuiet = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested pr-42")

	records, err := vectorStore.ListRecords(context.Background(), 0, 100)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.Equal(t, "pr-42", rec.SourceID)
	}
}

func TestIngestCmd_RejectsUnknownContentType(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	path := writeTestDocument(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--repo", "acme/payments", "--type", "nonsense", "--quiet", path})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestContentType = "generic_analysis"
		ingestQuiet = false
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "content type")
}
