package preprocessors

import (
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.PreprocessorRegistry = (*Registry)(nil)

// Registry selects a preprocessor by content type, falling back to the
// generic preprocessor for unknown types.
type Registry struct {
	byType  map[domain.ContentType]driven.Preprocessor
	generic driven.Preprocessor
}

// NewRegistry creates an empty registry with the given fallback.
func NewRegistry(fallback driven.Preprocessor) *Registry {
	return &Registry{
		byType:  make(map[domain.ContentType]driven.Preprocessor),
		generic: fallback,
	}
}

// NewDefaultRegistry wires up the preprocessors for every known
// content type.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(NewGeneric())
	r.Register(NewRepositoryAnalysis())
	r.Register(NewPRAnalysis())
	r.Register(NewDocumentation())
	r.Register(NewGeneric())
	return r
}

// Register adds a preprocessor for each content type it declares.
func (r *Registry) Register(p driven.Preprocessor) {
	for _, ct := range p.ContentTypes() {
		r.byType[ct] = p
	}
}

// Get returns the preprocessor for the content type.
func (r *Registry) Get(contentType domain.ContentType) driven.Preprocessor {
	if p, ok := r.byType[contentType]; ok {
		return p
	}
	return r.generic
}
