package domain

import (
	"strconv"
	"strings"
	"time"
)

// ContentType identifies the kind of analysis document being ingested.
// The preprocessing stage selects its parsing strategy by content type.
type ContentType string

const (
	// ContentTypeRepositoryAnalysis is a full repository analysis report.
	ContentTypeRepositoryAnalysis ContentType = "repository_analysis"

	// ContentTypePRAnalysis is a pull request analysis report.
	ContentTypePRAnalysis ContentType = "pr_analysis"

	// ContentTypeDocumentation is project or API documentation.
	ContentTypeDocumentation ContentType = "documentation"

	// ContentTypeGenericAnalysis is any other analysis text.
	ContentTypeGenericAnalysis ContentType = "generic_analysis"
)

// Valid reports whether the content type is one of the known values.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeRepositoryAnalysis, ContentTypePRAnalysis,
		ContentTypeDocumentation, ContentTypeGenericAnalysis:
		return true
	}
	return false
}

// StorageType is the retention policy applied to a document's chunks.
type StorageType string

const (
	// StoragePermanent keeps chunks until they are superseded by re-ingestion.
	StoragePermanent StorageType = "permanent"

	// StorageCached keeps chunks until their TTL expires.
	StorageCached StorageType = "cached"

	// StorageTemporary keeps chunks for a short TTL, for scratch analyses.
	StorageTemporary StorageType = "temporary"
)

// Valid reports whether the storage type is one of the known values.
func (s StorageType) Valid() bool {
	switch s {
	case StoragePermanent, StorageCached, StorageTemporary:
		return true
	}
	return false
}

// Document is a content-type-tagged unit of text submitted for ingestion.
// Documents are immutable once ingested; re-ingesting under the same
// source identity replaces the prior chunk set rather than mutating it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// RepositoryID is the owning repository identifier.
	RepositoryID string

	// SourceType labels the producer of the document (e.g. "deepwiki").
	SourceType string

	// SourceID identifies the document within its source. Together with
	// RepositoryID and SourceType it forms the replacement key.
	SourceID string

	// ContentType selects the preprocessing strategy.
	ContentType ContentType

	// Content is the raw document text.
	Content string

	// StorageType is the retention policy for the resulting chunks.
	StorageType StorageType

	// TTL bounds the lifetime of cached/temporary chunks. Ignored for
	// permanent storage.
	TTL time.Duration

	// Metadata contains arbitrary document-level key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was submitted.
	CreatedAt time.Time
}

// StructuredDocument is the output of preprocessing: an ordered section
// hierarchy with fenced code blocks extracted out of the running text.
type StructuredDocument struct {
	// DocumentID links back to the source document. Set by the
	// ingestion pipeline before chunking.
	DocumentID string

	// Title is the document title, if one was found.
	Title string

	// ContentType is carried through from the source document.
	ContentType ContentType

	// RepositoryID is carried through from the source document.
	RepositoryID string

	// Sections is the ordered list of parsed sections.
	Sections []Section

	// Metadata contains document-level values surfaced by preprocessing
	// (e.g. an overall score line found in an analysis report).
	Metadata map[string]any
}

// Empty reports whether the structured document carries no text at all.
func (d *StructuredDocument) Empty() bool {
	for i := range d.Sections {
		if !d.Sections[i].Empty() {
			return false
		}
	}
	return true
}

// Section is one node of the heading hierarchy.
type Section struct {
	// Title is the heading text.
	Title string

	// Level is the nesting depth (1 for a top-level heading).
	Level int

	// Items is the ordered list of paragraphs and list items under the
	// heading. Extracted code blocks are referenced by placeholder items
	// of the form produced by CodeBlockPlaceholder.
	Items []string

	// CodeBlocks holds the fenced code blocks extracted from this section,
	// text preserved verbatim. A code block is never split across chunks.
	CodeBlocks []CodeBlock
}

// Empty reports whether the section carries no items or code.
func (s *Section) Empty() bool {
	return len(s.Items) == 0 && len(s.CodeBlocks) == 0
}

// CodeBlock is a fenced code block lifted out of a section's text.
type CodeBlock struct {
	// Language is the fence's language tag, possibly empty.
	Language string

	// Text is the raw block content, preserved verbatim.
	Text string

	// Section is the title of the originating section.
	Section string
}

// CodeBlockPlaceholder returns the placeholder item inserted into section
// text where code block n was extracted.
func CodeBlockPlaceholder(n int) string {
	return "[code-block-" + strconv.Itoa(n) + "]"
}

// IsCodeBlockPlaceholder reports whether an item is a code block reference
// and returns the referenced index.
func IsCodeBlockPlaceholder(item string) (int, bool) {
	item = strings.TrimSpace(item)
	if !strings.HasPrefix(item, "[code-block-") || !strings.HasSuffix(item, "]") {
		return 0, false
	}
	num := strings.TrimSuffix(strings.TrimPrefix(item, "[code-block-"), "]")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
