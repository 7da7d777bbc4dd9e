package preprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

const sampleReport = `# Acme Analysis

Overall Score: 72/100

## Security

- SQL injection in login handler
- Missing CSRF token on forms

` + "```go\nfunc login(w http.ResponseWriter, r *http.Request) {}\n```" + `

## Performance

The hot   path allocates
on every request.
`

func TestParseStructureSections(t *testing.T) {
	sections := parseStructure(sampleReport)

	require.Len(t, sections, 3)
	assert.Equal(t, "Acme Analysis", sections[0].Title)
	assert.Equal(t, 1, sections[0].Level)
	assert.Equal(t, "Security", sections[1].Title)
	assert.Equal(t, 2, sections[1].Level)
	assert.Equal(t, "Performance", sections[2].Title)
}

func TestParseStructureListItems(t *testing.T) {
	sections := parseStructure(sampleReport)

	security := sections[1]
	require.GreaterOrEqual(t, len(security.Items), 3)
	assert.Equal(t, "SQL injection in login handler", security.Items[0])
	assert.Equal(t, "Missing CSRF token on forms", security.Items[1])
}

func TestParseStructureCodeBlocks(t *testing.T) {
	sections := parseStructure(sampleReport)

	security := sections[1]
	require.Len(t, security.CodeBlocks, 1)
	block := security.CodeBlocks[0]
	assert.Equal(t, "go", block.Language)
	assert.Equal(t, "func login(w http.ResponseWriter, r *http.Request) {}", block.Text)
	assert.Equal(t, "Security", block.Section)

	// A placeholder item references the extracted block.
	idx, ok := domain.IsCodeBlockPlaceholder(security.Items[2])
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestParseStructureCollapsesWhitespace(t *testing.T) {
	sections := parseStructure(sampleReport)

	perf := sections[2]
	require.Len(t, perf.Items, 1)
	assert.Equal(t, "The hot path allocates on every request.", perf.Items[0])
}

func TestParseStructureNoHeadingsDegrades(t *testing.T) {
	sections := parseStructure("just a blob of text\nwith two lines")

	require.Len(t, sections, 1)
	assert.Empty(t, sections[0].Title)
	assert.Equal(t, []string{"just a blob of text with two lines"}, sections[0].Items)
}

func TestParseStructureUnterminatedFence(t *testing.T) {
	input := "## Code\n\n```python\nprint('hi')\n"
	sections := parseStructure(input)

	require.Len(t, sections, 1)
	require.Len(t, sections[0].CodeBlocks, 1)
	assert.Equal(t, "print('hi')", sections[0].CodeBlocks[0].Text)
}

func TestParseStructureCoverage(t *testing.T) {
	sections := parseStructure(sampleReport)

	var combined strings.Builder
	for _, s := range sections {
		combined.WriteString(s.Title)
		combined.WriteString(" ")
		for _, item := range s.Items {
			combined.WriteString(item)
			combined.WriteString(" ")
		}
		for _, cb := range s.CodeBlocks {
			combined.WriteString(cb.Text)
			combined.WriteString(" ")
		}
	}

	// Every non-code word of the source survives preprocessing.
	for _, word := range []string{
		"Acme", "Security", "SQL", "CSRF", "Performance", "allocates",
	} {
		assert.Contains(t, combined.String(), word)
	}
}

func TestRepositoryAnalysisMetadata(t *testing.T) {
	p := NewRepositoryAnalysis()
	doc := &domain.Document{
		RepositoryID: "acme/api",
		ContentType:  domain.ContentTypeRepositoryAnalysis,
		Content:      sampleReport,
	}

	structured, err := p.Preprocess(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "Acme Analysis", structured.Title)
	assert.Equal(t, "acme/api", structured.RepositoryID)
	assert.InDelta(t, 72.0, structured.Metadata["overall_score"], 0.001)
}

func TestPRAnalysisMetadata(t *testing.T) {
	p := NewPRAnalysis()
	doc := &domain.Document{
		ContentType: domain.ContentTypePRAnalysis,
		Content:     "# Review of PR #42\n\nLooks fine.",
	}

	structured, err := p.Preprocess(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "42", structured.Metadata["pr_number"])
}

func TestPreprocessNilDocument(t *testing.T) {
	p := NewGeneric()
	_, err := p.Preprocess(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPreprocessEmptyDocument(t *testing.T) {
	p := NewGeneric()
	structured, err := p.Preprocess(context.Background(), &domain.Document{
		ContentType: domain.ContentTypeGenericAnalysis,
	})
	require.NoError(t, err)
	assert.True(t, structured.Empty())
}
