package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func structuredDoc(sections ...domain.Section) *domain.StructuredDocument {
	return &domain.StructuredDocument{
		DocumentID:   "doc-1",
		Title:        "Acme Analysis",
		RepositoryID: "acme/api",
		Sections:     sections,
		Metadata:     map[string]any{"overall_score": 72.0},
	}
}

func TestOverviewAlwaysFirst(t *testing.T) {
	p := New()
	doc := structuredDoc(domain.Section{Title: "Security", Level: 2, Items: []string{"finding one"}})

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	overview := chunks[0]
	assert.Equal(t, domain.ChunkTypeOverview, overview.Type)
	assert.Equal(t, 0, overview.ChunkIndex)
	assert.Nil(t, overview.ParentID)
	assert.Contains(t, overview.Content, "Repository: acme/api")
	assert.Contains(t, overview.Content, "Overall score: 72")
	assert.Contains(t, overview.Content, "Sections: Security")
}

func TestEmptyDocumentYieldsSingleOverview(t *testing.T) {
	p := New()
	doc := &domain.StructuredDocument{DocumentID: "doc-1"}

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ChunkTypeOverview, chunks[0].Type)
	assert.Empty(t, chunks[0].Content)
}

func TestSectionWithinMaxStaysWhole(t *testing.T) {
	p := New(WithMaxSize(500))
	doc := structuredDoc(domain.Section{
		Title: "Performance",
		Level: 2,
		Items: []string{"the hot path allocates", "the cache is unbounded"},
	})

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	section := chunks[1]
	assert.Equal(t, domain.ChunkTypeSection, section.Type)
	assert.Contains(t, section.Content, "Performance")
	assert.Contains(t, section.Content, "the hot path allocates")
	assert.Contains(t, section.Content, "the cache is unbounded")
	require.NotNil(t, section.ParentID)
	assert.Equal(t, chunks[0].ID, *section.ParentID)
}

func TestSectionExactlyAtMaxStaysWhole(t *testing.T) {
	item := strings.Repeat("a", 90)
	section := domain.Section{Title: "Pad", Items: []string{item}}
	full := renderSection(&section)

	p := New(WithMaxSize(len(full)), WithMinSize(10))
	chunks, err := p.Process(context.Background(), structuredDoc(section), nil)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, domain.ChunkTypeSection, chunks[1].Type)
}

func TestOversizeSectionSplitsAtItems(t *testing.T) {
	itemA := strings.Repeat("alpha ", 40) // ~240 chars
	itemB := strings.Repeat("beta ", 40)
	p := New(WithMaxSize(300), WithMinSize(50), WithOverlap(20))
	doc := structuredDoc(domain.Section{Title: "Findings", Items: []string{itemA, itemB}})

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	first, second := chunks[1], chunks[2]
	assert.Equal(t, domain.ChunkTypeItem, first.Type)
	assert.Equal(t, domain.ChunkTypeItem, second.Type)

	// Overlap lives only in the window context, not in content.
	assert.Empty(t, first.Metadata.WindowContext)
	assert.Equal(t, tail(first.Content, 20), second.Metadata.WindowContext)
	assert.False(t, strings.HasPrefix(second.Content, second.Metadata.WindowContext))
}

func TestSmallItemsCoalesceIntoGroup(t *testing.T) {
	big := strings.Repeat("x", 280)
	p := New(WithMaxSize(300), WithMinSize(100))
	doc := structuredDoc(domain.Section{
		Title: "Notes",
		Items: []string{big, "tiny one", "tiny two", "tiny three"},
	})

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)

	var group *domain.Chunk
	for i := range chunks {
		if chunks[i].Type == domain.ChunkTypeGroup {
			group = &chunks[i]
		}
	}
	require.NotNil(t, group, "small items should coalesce into a group chunk")
	assert.Contains(t, group.Content, "tiny one")
	assert.Contains(t, group.Content, "tiny two")
	assert.Contains(t, group.Content, "tiny three")
}

func TestCodeFenceNeverSplit(t *testing.T) {
	code := domain.CodeBlock{Language: "go", Text: strings.Repeat("fmt.Println(\"x\")\n", 40), Section: "Code"}
	section := domain.Section{
		Title:      "Code",
		Items:      []string{strings.Repeat("prose ", 60), domain.CodeBlockPlaceholder(0)},
		CodeBlocks: []domain.CodeBlock{code},
	}
	p := New(WithMaxSize(300), WithMinSize(50))

	chunks, err := p.Process(context.Background(), structuredDoc(section), nil)
	require.NoError(t, err)

	for _, chunk := range chunks {
		fences := strings.Count(chunk.Content, "```")
		assert.Zero(t, fences%2, "chunk %q has an unterminated fence", chunk.ID)
	}
}

func TestChunkIndexOrderingAndSiblings(t *testing.T) {
	p := New(WithMaxSize(120), WithMinSize(20))
	doc := structuredDoc(
		domain.Section{Title: "One", Items: []string{strings.Repeat("a ", 80), strings.Repeat("b ", 80)}},
		domain.Section{Title: "Two", Items: []string{"short"}},
	)

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
	}

	// All non-overview chunks share the overview as parent.
	for _, chunk := range chunks[1:] {
		require.NotNil(t, chunk.ParentID)
		assert.Equal(t, chunks[0].ID, *chunk.ParentID)
		assert.Equal(t, len(chunks)-1, chunk.SiblingCount)
	}
}

func TestCoverageRoundTrip(t *testing.T) {
	p := New(WithMaxSize(150), WithMinSize(30))
	doc := structuredDoc(
		domain.Section{Title: "Security", Items: []string{
			"SQL injection in the login handler",
			strings.Repeat("buffer overflow in the parser ", 10),
		}},
		domain.Section{Title: "Performance", Items: []string{"unbounded cache growth"}},
	)

	chunks, err := p.Process(context.Background(), doc, nil)
	require.NoError(t, err)

	var all strings.Builder
	for _, chunk := range chunks[1:] {
		all.WriteString(chunk.Content)
		all.WriteString(" ")
	}

	for _, word := range []string{"SQL", "injection", "login", "overflow", "parser", "unbounded", "cache"} {
		assert.Contains(t, all.String(), word)
	}
}

func TestNilDocument(t *testing.T) {
	p := New()
	_, err := p.Process(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSplitText(t *testing.T) {
	parts := splitText("one two three four five", 10)
	require.NotEmpty(t, parts)
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 10)
	}
	assert.Equal(t, "one two three four five", strings.Join(parts, " "))
}

func TestSplitTextRuneBoundaries(t *testing.T) {
	// No spaces, 2-byte runes: every cut must land between runes.
	text := strings.Repeat("é", 80)
	parts := splitText(text, 101)
	require.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.True(t, utf8.ValidString(part))
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestTailRuneBoundaries(t *testing.T) {
	s := strings.Repeat("日", 10)
	got := tail(s, 10)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(s, got))
	assert.LessOrEqual(t, len(got), 10)
}
