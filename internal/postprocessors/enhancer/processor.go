// Package enhancer provides the context-aware content enrichment
// processor. It runs after the chunker and populates each chunk's
// enhanced content, semantic tags, potential questions, code references
// and window context.
package enhancer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// MaxQuestions caps the potential questions generated per chunk.
const MaxQuestions = 5

// DefaultWindowSize bounds the window context excerpt in characters.
const DefaultWindowSize = 200

// tagCategories maps keyword stems to the semantic tag they imply.
// Matching is deterministic, against the section title and content.
var tagCategories = map[string][]string{
	"security":      {"security", "vulnerab", "injection", "xss", "csrf", "auth", "exploit", "cve"},
	"performance":   {"performance", "latency", "slow", "alloc", "memory leak", "bottleneck", "n+1"},
	"dependencies":  {"dependenc", "package", "version", "outdated", "upgrade"},
	"architecture":  {"architect", "structure", "design", "coupling", "layering"},
	"testing":       {"test", "coverage", "assertion", "flaky"},
	"documentation": {"documentation", "readme", "docs", "comment"},
	"code-quality":  {"quality", "lint", "complexity", "duplication", "smell"},
}

var severityMarkers = map[domain.Severity][]string{
	domain.SeverityCritical: {"critical", "[critical]"},
	domain.SeverityHigh:     {"high severity", "[high]", "severity: high"},
	domain.SeverityMedium:   {"medium severity", "[medium]", "severity: medium"},
	domain.SeverityLow:      {"low severity", "[low]", "severity: low"},
}

var (
	filePathRe = regexp.MustCompile(`[\w./-]+\.(?:go|ts|js|tsx|jsx|py|rb|java|rs|c|cc|cpp|h|sql|yaml|yml|json|toml|md)\b`)
	funcCallRe = regexp.MustCompile(`\b([A-Za-z_][\w.]*)\(`)
)

// Processor enriches chunks in place. It implements the PostProcessor
// interface and is a pure in-memory transform: it never fails a chunk,
// zero matches are normal.
type Processor struct {
	context    domain.EnhancementContext
	windowSize int
}

// Option configures the enhancer processor.
type Option func(*Processor)

// WithContext sets the document-level enhancement context.
func WithContext(ec domain.EnhancementContext) Option {
	return func(p *Processor) {
		p.context = ec
	}
}

// WithWindowSize bounds the window context excerpt length.
func WithWindowSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.windowSize = size
		}
	}
}

// New creates a new enhancer processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		windowSize: DefaultWindowSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "enhancer"
}

// Process enriches the chunk list produced by the chunker.
func (p *Processor) Process(_ context.Context, doc *domain.StructuredDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		chunk := &chunks[i]

		chunk.Metadata.Severity = detectSeverity(chunk.Content)
		chunk.Metadata.SemanticTags = deriveTags(chunk)
		chunk.Metadata.PotentialQuestions = deriveQuestions(chunk)
		chunk.Metadata.CodeReferences = scanCodeReferences(chunk.Content)

		if chunk.Metadata.WindowContext == "" {
			chunk.Metadata.WindowContext = p.windowContext(chunks, i)
		}

		chunk.EnhancedContent = p.enhance(doc, chunk)
	}
	return chunks, nil
}

// enhance builds the enriched text that gets embedded: a context header
// followed by the raw content. Content itself is never replaced, so the
// enhanced text is always at least as long.
func (p *Processor) enhance(doc *domain.StructuredDocument, chunk *domain.Chunk) string {
	var b strings.Builder

	repo := p.context.RepositoryID
	if repo == "" && doc != nil {
		repo = doc.RepositoryID
	}
	if repo != "" {
		fmt.Fprintf(&b, "Repository: %s\n", repo)
	}
	if chunk.Metadata.SectionTitle != "" {
		fmt.Fprintf(&b, "Section: %s\n", chunk.Metadata.SectionTitle)
	}
	if p.context.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", p.context.Language)
	}
	if len(chunk.Metadata.SemanticTags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(chunk.Metadata.SemanticTags, ", "))
	}
	if chunk.Metadata.WindowContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", chunk.Metadata.WindowContext)
	}
	if len(chunk.Metadata.PotentialQuestions) > 0 {
		fmt.Fprintf(&b, "Answers: %s\n", strings.Join(chunk.Metadata.PotentialQuestions, " "))
	}

	b.WriteString(chunk.Content)
	return b.String()
}

// windowContext pulls bounded excerpts from the adjacent sibling chunks.
func (p *Processor) windowContext(chunks []domain.Chunk, i int) string {
	var parts []string
	if i > 0 && chunks[i-1].Type != domain.ChunkTypeOverview {
		parts = append(parts, tail(chunks[i-1].Content, p.windowSize/2))
	}
	if i+1 < len(chunks) {
		parts = append(parts, head(chunks[i+1].Content, p.windowSize/2))
	}
	return strings.TrimSpace(strings.Join(parts, " ... "))
}

// detectSeverity scans content for severity markers, keeping the most
// severe match.
func detectSeverity(content string) domain.Severity {
	lower := strings.ToLower(content)
	for _, sev := range []domain.Severity{
		domain.SeverityCritical, domain.SeverityHigh,
		domain.SeverityMedium, domain.SeverityLow,
	} {
		for _, marker := range severityMarkers[sev] {
			if strings.Contains(lower, marker) {
				return sev
			}
		}
	}
	return domain.SeverityNone
}

// deriveTags matches the chunk's section title and content against the
// keyword categories and appends the severity tag when one was found.
func deriveTags(chunk *domain.Chunk) []string {
	haystack := strings.ToLower(chunk.Metadata.SectionTitle + " " + chunk.Content)

	var tags []string
	for _, category := range []string{
		"security", "performance", "dependencies", "architecture",
		"testing", "documentation", "code-quality",
	} {
		for _, keyword := range tagCategories[category] {
			if strings.Contains(haystack, keyword) {
				tags = append(tags, category)
				break
			}
		}
	}

	switch chunk.Metadata.Severity {
	case domain.SeverityCritical:
		tags = append(tags, "critical")
	case domain.SeverityHigh:
		tags = append(tags, "high-severity")
	case domain.SeverityMedium, domain.SeverityLow, domain.SeverityNone:
	}

	if chunk.Type == domain.ChunkTypeOverview {
		tags = append(tags, "overview")
	}

	return tags
}

// deriveQuestions templates potential questions from the chunk type and
// section, bounded by MaxQuestions.
func deriveQuestions(chunk *domain.Chunk) []string {
	title := chunk.Metadata.SectionTitle
	var questions []string

	switch chunk.Type {
	case domain.ChunkTypeOverview:
		questions = append(questions,
			"What is the overall state of this repository?",
			"What does this analysis cover?",
		)
	case domain.ChunkTypeSection, domain.ChunkTypeItem, domain.ChunkTypeGroup:
		if title != "" {
			questions = append(questions,
				fmt.Sprintf("What did the analysis find about %s?", strings.ToLower(title)),
			)
			if chunk.Metadata.HasTag("security") || strings.Contains(strings.ToLower(title), "security") {
				questions = append(questions,
					fmt.Sprintf("What is the impact of the %s findings?", strings.ToLower(title)),
					fmt.Sprintf("How do I fix the %s issues?", strings.ToLower(title)),
				)
			}
		}
		if chunk.Metadata.HasCode {
			questions = append(questions, "What does this code do?")
		}
	}

	if len(questions) > MaxQuestions {
		questions = questions[:MaxQuestions]
	}
	return questions
}

// scanCodeReferences extracts file-path-like and function-call-like
// tokens from content. Best effort; empty results are fine.
func scanCodeReferences(content string) domain.CodeReferences {
	var refs domain.CodeReferences

	seenFile := make(map[string]bool)
	for _, m := range filePathRe.FindAllString(content, -1) {
		if !seenFile[m] {
			seenFile[m] = true
			refs.Files = append(refs.Files, m)
		}
	}

	seenFn := make(map[string]bool)
	for _, m := range funcCallRe.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if !seenFn[name] {
			seenFn[name] = true
			refs.Functions = append(refs.Functions, name)
		}
	}

	return refs
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// head returns the first n characters of s.
func head(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
