package preprocessors

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Generic implements the interface.
var _ driven.Preprocessor = (*Generic)(nil)

// Generic preprocesses documentation and any analysis text without a
// specialised preprocessor. It is the registry fallback.
type Generic struct {
	fallbackTitle string
}

// NewGeneric creates the generic preprocessor.
func NewGeneric() *Generic {
	return &Generic{fallbackTitle: "Analysis"}
}

// NewDocumentation creates the documentation preprocessor. It shares the
// generic parsing but titles untitled documents as documentation.
func NewDocumentation() *Generic {
	return &Generic{fallbackTitle: "Documentation"}
}

// ContentTypes returns the content types this preprocessor handles.
func (p *Generic) ContentTypes() []domain.ContentType {
	if p.fallbackTitle == "Documentation" {
		return []domain.ContentType{domain.ContentTypeDocumentation}
	}
	return []domain.ContentType{domain.ContentTypeGenericAnalysis}
}

// Preprocess parses the text into its section hierarchy.
func (p *Generic) Preprocess(_ context.Context, doc *domain.Document) (*domain.StructuredDocument, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	sections := parseStructure(doc.Content)

	return &domain.StructuredDocument{
		Title:        extractTitle(sections, p.fallbackTitle),
		ContentType:  doc.ContentType,
		RepositoryID: doc.RepositoryID,
		Sections:     sections,
		Metadata:     make(map[string]any),
	}, nil
}
