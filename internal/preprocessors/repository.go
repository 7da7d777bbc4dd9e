package preprocessors

import (
	"context"
	"regexp"
	"strconv"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure RepositoryAnalysis implements the interface.
var _ driven.Preprocessor = (*RepositoryAnalysis)(nil)

var overallScoreRe = regexp.MustCompile(`(?i)overall\s+score[:\s]+([0-9]+(?:\.[0-9]+)?)`)

// RepositoryAnalysis preprocesses full repository analysis reports.
// Beyond the shared structure parsing it surfaces the report's overall
// score so the overview chunk can carry it.
type RepositoryAnalysis struct{}

// NewRepositoryAnalysis creates the repository analysis preprocessor.
func NewRepositoryAnalysis() *RepositoryAnalysis {
	return &RepositoryAnalysis{}
}

// ContentTypes returns the content types this preprocessor handles.
func (p *RepositoryAnalysis) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeRepositoryAnalysis}
}

// Preprocess parses the report into its section hierarchy.
func (p *RepositoryAnalysis) Preprocess(_ context.Context, doc *domain.Document) (*domain.StructuredDocument, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	sections := parseStructure(doc.Content)

	metadata := make(map[string]any)
	if m := overallScoreRe.FindStringSubmatch(doc.Content); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			metadata["overall_score"] = score
		}
	}

	return &domain.StructuredDocument{
		Title:        extractTitle(sections, "Repository Analysis"),
		ContentType:  doc.ContentType,
		RepositoryID: doc.RepositoryID,
		Sections:     sections,
		Metadata:     metadata,
	}, nil
}
