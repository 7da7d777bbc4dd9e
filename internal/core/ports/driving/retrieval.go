package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// RetrievalService answers similarity queries with automatically tuned
// thresholds.
type RetrievalService interface {
	// Search embeds the query text, selects a threshold (automatic,
	// named, numeric or adaptive sweep per opts) and returns ranked,
	// de-duplicated results with the decision trail. Backend failures
	// are returned as errors wrapping domain.ErrSearchBackend; an empty
	// result set with a nil error always means "no matches".
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// SearchVector runs the same search with a caller-supplied query
	// vector, skipping embedding. Threshold auto-selection falls back to
	// the default class since there is no query text to classify.
	SearchVector(ctx context.Context, vector []float32, opts domain.SearchOptions) (*domain.SearchResponse, error)
}
