package domain

// ChunkType identifies a chunk's position in the document tree.
type ChunkType string

const (
	// ChunkTypeOverview is the single document-level summary chunk,
	// always emitted first. It is the anchor for whole-document queries.
	ChunkTypeOverview ChunkType = "overview"

	// ChunkTypeSection is a chunk holding a complete section.
	ChunkTypeSection ChunkType = "section"

	// ChunkTypeItem is a chunk holding part of a section that was too
	// large to keep whole.
	ChunkTypeItem ChunkType = "item"

	// ChunkTypeGroup is a chunk formed by coalescing items that were
	// individually below the minimum chunk size.
	ChunkTypeGroup ChunkType = "group"
)

// Severity grades a finding carried by a chunk.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

// Chunk is the atomic retrievable unit derived from a document.
// Chunks form a shallow tree: overview -> section -> item/group.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the originating document.
	DocumentID string

	// ParentID links to the parent chunk, nil for the overview chunk.
	ParentID *string

	// Type is the chunk's position in the tree.
	Type ChunkType

	// Content is the raw chunk text.
	Content string

	// EnhancedContent is Content with injected context, tags and
	// questions prepended. It never replaces Content and is never
	// shorter than it.
	EnhancedContent string

	// ChunkIndex is the ordinal position within the document.
	ChunkIndex int

	// SiblingCount is the number of chunks sharing this chunk's parent,
	// for stable ordering of partial result sets.
	SiblingCount int

	// Metadata carries the enrichment fields the retrieval engine
	// filters and ranks on.
	Metadata ChunkMetadata
}

// SearchText returns the text to embed for this chunk: the enhanced
// content when enhancement ran, otherwise the raw content.
func (c *Chunk) SearchText() string {
	if c.EnhancedContent != "" {
		return c.EnhancedContent
	}
	return c.Content
}

// ChunkMetadata is the fixed schema of per-chunk enrichment fields.
// It is deliberately a struct rather than an open map so the fields the
// retrieval engine relies on are checked at compile time.
type ChunkMetadata struct {
	// SectionTitle is the heading the chunk was produced under.
	SectionTitle string

	// Severity is the finding severity, SeverityNone when absent.
	Severity Severity

	// HasCode reports whether the chunk contains a code block.
	HasCode bool

	// CodeReferences lists file paths and function calls mentioned in
	// the chunk content. Best effort; empty lists are normal.
	CodeReferences CodeReferences

	// SemanticTags is the set of category tags derived from the section
	// name and severity.
	SemanticTags []string

	// PotentialQuestions is the ordered, bounded list of questions the
	// chunk could answer, used to improve embedding recall.
	PotentialQuestions []string

	// WindowContext is a bounded excerpt from the adjacent sibling
	// chunk(s), so a chunk read in isolation keeps short-range context.
	WindowContext string
}

// CodeReferences holds file-path-like and function-call-like tokens
// scanned out of chunk content.
type CodeReferences struct {
	Files     []string
	Functions []string
}

// Empty reports whether no references were found.
func (r CodeReferences) Empty() bool {
	return len(r.Files) == 0 && len(r.Functions) == 0
}

// HasTag reports whether the chunk carries the given semantic tag.
func (m *ChunkMetadata) HasTag(tag string) bool {
	for _, t := range m.SemanticTags {
		if t == tag {
			return true
		}
	}
	return false
}
