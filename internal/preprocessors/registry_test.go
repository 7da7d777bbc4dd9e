package preprocessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestDefaultRegistrySelection(t *testing.T) {
	r := NewDefaultRegistry()

	assert.IsType(t, &RepositoryAnalysis{}, r.Get(domain.ContentTypeRepositoryAnalysis))
	assert.IsType(t, &PRAnalysis{}, r.Get(domain.ContentTypePRAnalysis))
	assert.IsType(t, &Generic{}, r.Get(domain.ContentTypeDocumentation))
	assert.IsType(t, &Generic{}, r.Get(domain.ContentTypeGenericAnalysis))
}

func TestRegistryFallback(t *testing.T) {
	r := NewDefaultRegistry()

	p := r.Get(domain.ContentType("unknown"))
	require.NotNil(t, p)
	assert.IsType(t, &Generic{}, p)
}
