// Package chunker provides the hierarchical, boundary-respecting
// chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DefaultMaxChunkSize is the default maximum chunk size in characters.
const DefaultMaxChunkSize = 1500

// DefaultMinChunkSize is the default minimum chunk size in characters.
// Chunks below it are coalesced with siblings into group chunks.
const DefaultMinChunkSize = 200

// DefaultOverlap is the default number of trailing characters of a chunk
// carried into the next sibling's window context.
const DefaultOverlap = 150

// Processor splits a structured document into a shallow tree of
// size-bounded chunks. It implements the PostProcessor interface.
//
// The overview chunk is always emitted first. Sections that fit within
// the maximum size become single section chunks; larger sections are
// split at item boundaries, never inside a code fence. Items below the
// minimum size are coalesced with siblings into group chunks. Overlap is
// tracked as window context metadata only, never duplicated in content.
type Processor struct {
	maxSize int
	minSize int
	overlap int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.maxSize = size
		}
	}
}

// WithMinSize sets the minimum chunk size in characters.
func WithMinSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.minSize = size
		}
	}
}

// WithOverlap sets the window overlap between sibling chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxSize: DefaultMaxChunkSize,
		minSize: DefaultMinChunkSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Keep the bounds sane relative to each other.
	if p.minSize >= p.maxSize {
		p.minSize = p.maxSize / 4
	}
	if p.overlap >= p.maxSize {
		p.overlap = p.maxSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process creates chunks from the structured document.
// Input chunks are ignored; this processor creates new chunks.
func (p *Processor) Process(_ context.Context, doc *domain.StructuredDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	overview := p.buildOverview(doc)
	chunks := []domain.Chunk{overview}

	// Depth-first walk; sections arrive in document order.
	for i := range doc.Sections {
		section := &doc.Sections[i]
		if section.Empty() && section.Title == "" {
			continue
		}
		chunks = append(chunks, p.chunkSection(doc, section, overview.ID, len(chunks))...)
	}

	fillSiblingCounts(chunks)

	return chunks, nil
}

// buildOverview emits the document-level summary chunk. An empty
// document still yields this chunk (with empty content) so query
// surfaces always have something to anchor on.
func (p *Processor) buildOverview(doc *domain.StructuredDocument) domain.Chunk {
	chunk := domain.Chunk{
		ID:         uuid.New().String(),
		DocumentID: doc.DocumentID,
		Type:       domain.ChunkTypeOverview,
		ChunkIndex: 0,
		Metadata: domain.ChunkMetadata{
			SectionTitle: doc.Title,
			Severity:     domain.SeverityNone,
		},
	}

	if doc.Empty() {
		return chunk
	}

	var b strings.Builder
	if doc.Title != "" {
		b.WriteString(doc.Title)
		b.WriteString("\n")
	}
	if doc.RepositoryID != "" {
		fmt.Fprintf(&b, "Repository: %s\n", doc.RepositoryID)
	}
	if score, ok := doc.Metadata["overall_score"]; ok {
		fmt.Fprintf(&b, "Overall score: %v\n", score)
	}

	var titles []string
	for i := range doc.Sections {
		if t := doc.Sections[i].Title; t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) > 0 {
		fmt.Fprintf(&b, "Sections: %s\n", strings.Join(titles, ", "))
	}

	chunk.Content = strings.TrimRight(b.String(), "\n")
	return chunk
}

// chunkSection turns one section into chunks starting at chunk index next.
func (p *Processor) chunkSection(doc *domain.StructuredDocument, section *domain.Section, parentID string, next int) []domain.Chunk {
	full := renderSection(section)

	// Kept whole when it fits, including the exactly-at-max case: bias
	// toward fewer, larger chunks over fragmentation.
	if len(full) <= p.maxSize {
		return []domain.Chunk{p.newChunk(doc, section, parentID, domain.ChunkTypeSection, full, next)}
	}

	pieces := p.splitItems(section)
	pieces = p.coalesce(pieces)

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunkType := domain.ChunkTypeItem
		if piece.grouped {
			chunkType = domain.ChunkTypeGroup
		}
		chunk := p.newChunk(doc, section, parentID, chunkType, piece.text, next+i)
		if i > 0 {
			// Overlap lives in the window, never in content.
			chunk.Metadata.WindowContext = tail(pieces[i-1].text, p.overlap)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// piece is an intermediate chunk body during splitting.
type piece struct {
	text    string
	hasCode bool
	grouped bool
}

// splitItems renders each section item into pieces no larger than the
// maximum size. Code blocks are atomic: an oversize code block becomes a
// single oversize piece rather than a split fence.
func (p *Processor) splitItems(section *domain.Section) []piece {
	var pieces []piece

	for _, item := range section.Items {
		if idx, ok := domain.IsCodeBlockPlaceholder(item); ok {
			if idx < len(section.CodeBlocks) {
				pieces = append(pieces, piece{
					text:    renderCodeBlock(&section.CodeBlocks[idx]),
					hasCode: true,
				})
			}
			continue
		}

		if len(item) <= p.maxSize {
			pieces = append(pieces, piece{text: item})
			continue
		}

		for _, part := range splitText(item, p.maxSize) {
			pieces = append(pieces, piece{text: part})
		}
	}

	return pieces
}

// coalesce merges adjacent pieces below the minimum size into group
// pieces, stopping when the minimum is met, the next merge would exceed
// the maximum, or no siblings remain.
func (p *Processor) coalesce(pieces []piece) []piece {
	var out []piece

	for _, next := range pieces {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if len(last.text) < p.minSize && len(last.text)+len(next.text)+1 <= p.maxSize {
				last.text = last.text + "\n" + next.text
				last.hasCode = last.hasCode || next.hasCode
				last.grouped = true
				continue
			}
		}
		out = append(out, next)
	}

	return out
}

// newChunk builds a chunk with the shared fields populated.
func (p *Processor) newChunk(doc *domain.StructuredDocument, section *domain.Section, parentID string, chunkType domain.ChunkType, content string, index int) domain.Chunk {
	parent := parentID
	return domain.Chunk{
		ID:         uuid.New().String(),
		DocumentID: doc.DocumentID,
		ParentID:   &parent,
		Type:       chunkType,
		Content:    content,
		ChunkIndex: index,
		Metadata: domain.ChunkMetadata{
			SectionTitle: section.Title,
			Severity:     domain.SeverityNone,
			HasCode:      strings.Contains(content, "```"),
		},
	}
}

// renderSection rebuilds a section's text with its code blocks inlined
// at their placeholders, fences restored.
func renderSection(section *domain.Section) string {
	var b strings.Builder
	if section.Title != "" {
		b.WriteString(section.Title)
		b.WriteString("\n")
	}
	for _, item := range section.Items {
		if idx, ok := domain.IsCodeBlockPlaceholder(item); ok {
			if idx < len(section.CodeBlocks) {
				b.WriteString(renderCodeBlock(&section.CodeBlocks[idx]))
				b.WriteString("\n")
			}
			continue
		}
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderCodeBlock restores a code block with matched fences.
func renderCodeBlock(block *domain.CodeBlock) string {
	return "```" + block.Language + "\n" + block.Text + "\n```"
}

// splitText splits plain text into parts no longer than limit,
// preferring the last space before the limit. Cuts land on rune
// boundaries.
func splitText(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], " ")
		if cut <= 0 {
			// No space to break on: cut at the limit, extended to the
			// next rune boundary.
			cut = limit
			for cut < len(text) && !utf8.RuneStart(text[cut]) {
				cut++
			}
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// tail returns the last n bytes of s, trimmed forward to the nearest
// rune boundary.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

// fillSiblingCounts sets SiblingCount to the number of chunks sharing
// each chunk's parent.
func fillSiblingCounts(chunks []domain.Chunk) {
	counts := make(map[string]int)
	for i := range chunks {
		counts[parentKey(&chunks[i])]++
	}
	for i := range chunks {
		chunks[i].SiblingCount = counts[parentKey(&chunks[i])]
	}
}

func parentKey(c *domain.Chunk) string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}
