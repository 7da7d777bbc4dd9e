package preprocessors

import (
	"context"
	"regexp"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure PRAnalysis implements the interface.
var _ driven.Preprocessor = (*PRAnalysis)(nil)

var prNumberRe = regexp.MustCompile(`(?i)(?:pull\s+request|PR)\s*#?(\d+)`)

// PRAnalysis preprocesses pull request analysis reports.
type PRAnalysis struct{}

// NewPRAnalysis creates the PR analysis preprocessor.
func NewPRAnalysis() *PRAnalysis {
	return &PRAnalysis{}
}

// ContentTypes returns the content types this preprocessor handles.
func (p *PRAnalysis) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypePRAnalysis}
}

// Preprocess parses the report into its section hierarchy, surfacing the
// PR number when the report mentions one.
func (p *PRAnalysis) Preprocess(_ context.Context, doc *domain.Document) (*domain.StructuredDocument, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	sections := parseStructure(doc.Content)

	metadata := make(map[string]any)
	if m := prNumberRe.FindStringSubmatch(doc.Content); m != nil {
		metadata["pr_number"] = m[1]
	}

	return &domain.StructuredDocument{
		Title:        extractTitle(sections, "PR Analysis"),
		ContentType:  doc.ContentType,
		RepositoryID: doc.RepositoryID,
		Sections:     sections,
		Metadata:     metadata,
	}, nil
}
