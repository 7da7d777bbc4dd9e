package driven

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Preprocessor normalises raw document text into a structured document
// for one or more content types.
//
// Preprocessing never fails a document: unparseable structure degrades
// to a single top-level section containing the whole input.
type Preprocessor interface {
	// ContentTypes returns the content types this preprocessor handles.
	ContentTypes() []domain.ContentType

	// Preprocess converts the document into its section hierarchy. The
	// returned structure preserves all non-code source text across its
	// sections and lifts fenced code blocks out verbatim.
	Preprocess(ctx context.Context, doc *domain.Document) (*domain.StructuredDocument, error)
}

// PreprocessorRegistry selects the preprocessor for a content type.
type PreprocessorRegistry interface {
	// Get returns the preprocessor for the content type, falling back to
	// the generic preprocessor for unknown types.
	Get(contentType domain.ContentType) Preprocessor
}
