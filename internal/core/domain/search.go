package domain

import "time"

// ThresholdClass is a named similarity cutoff. Classes form a strict
// total order from most to least selective:
//
//	strict > high > default > medium > low
//
// The numeric cutoffs below preserve that order. The source material
// placed medium above default in one spot and below it in another; the
// order here is the documented one, with medium's cutoff adjusted to sit
// between default and low. See DESIGN.md.
type ThresholdClass string

const (
	ThresholdStrict  ThresholdClass = "strict"
	ThresholdHigh    ThresholdClass = "high"
	ThresholdDefault ThresholdClass = "default"
	ThresholdMedium  ThresholdClass = "medium"
	ThresholdLow     ThresholdClass = "low"
)

// thresholdCutoffs maps each class to its minimum cosine similarity.
var thresholdCutoffs = map[ThresholdClass]float64{
	ThresholdStrict:  0.6,
	ThresholdHigh:    0.5,
	ThresholdDefault: 0.35,
	ThresholdMedium:  0.3,
	ThresholdLow:     0.2,
}

// Cutoff returns the minimum cosine similarity for the class.
// Unknown classes fall back to the default cutoff.
func (t ThresholdClass) Cutoff() float64 {
	if v, ok := thresholdCutoffs[t]; ok {
		return v
	}
	return thresholdCutoffs[ThresholdDefault]
}

// Valid reports whether the class is one of the known values.
func (t ThresholdClass) Valid() bool {
	_, ok := thresholdCutoffs[t]
	return ok
}

// ThresholdClasses returns all classes ordered strict to low.
func ThresholdClasses() []ThresholdClass {
	return []ThresholdClass{
		ThresholdStrict, ThresholdHigh, ThresholdDefault, ThresholdMedium, ThresholdLow,
	}
}

// QueryContext carries caller hints that steer threshold selection.
type QueryContext struct {
	// ContentType hints at the kind of material wanted
	// (e.g. "security", "documentation").
	ContentType string

	// Urgency marks the query as time-critical when set to "critical".
	Urgency string

	// Precision is "broad" to favour recall or "specific" to favour
	// precision. Empty means no preference.
	Precision string
}

// SearchFilters narrows a search to records matching fixed metadata.
type SearchFilters struct {
	// ContentTypes restricts results to documents of these types.
	ContentTypes []ContentType

	// Severities restricts results to chunks carrying these severities.
	Severities []Severity

	// Tags requires every listed semantic tag to be present.
	Tags []string

	// HasCode, when non-nil, requires the chunk's code flag to match.
	HasCode *bool
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return len(f.ContentTypes) == 0 && len(f.Severities) == 0 &&
		len(f.Tags) == 0 && f.HasCode == nil
}

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// RepositoryID scopes the search to one repository. Empty searches
	// the whole corpus.
	RepositoryID string

	// MaxResults bounds the result count. Zero uses the engine default.
	MaxResults int

	// Threshold selects a named cutoff explicitly. Empty means automatic
	// selection from the query text and context.
	Threshold ThresholdClass

	// ThresholdValue overrides both Threshold and automatic selection
	// with an exact numeric cutoff.
	ThresholdValue *float64

	// Adaptive runs the search at every threshold class and returns the
	// best-scoring set plus the full per-threshold map.
	Adaptive bool

	// Context carries caller hints for automatic threshold selection.
	Context QueryContext

	// Filters narrows results by chunk metadata.
	Filters SearchFilters

	// SkipCache bypasses the result cache for this query.
	SkipCache bool
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Content is the chunk's raw text.
	Content string

	// Metadata is the chunk's enrichment metadata.
	Metadata ChunkMetadata

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64

	// RepositoryID is the owning repository.
	RepositoryID string

	// CreatedAt orders ties at equal similarity (most recent first).
	CreatedAt time.Time
}

// SearchResponse is the full retrieval answer, including the threshold
// decision trail for observability.
type SearchResponse struct {
	// Results is ranked descending by similarity.
	Results []SearchResult

	// SelectedClass is the threshold class that produced Results.
	SelectedClass ThresholdClass

	// SelectedThreshold is the numeric cutoff actually applied.
	SelectedThreshold float64

	// Reasoning explains why the threshold was chosen.
	Reasoning string

	// Confidence is the classifier's confidence in [0, 1]. Explicit
	// thresholds force 1.0.
	Confidence float64

	// Cached reports whether the response was served from the result cache.
	Cached bool

	// Sweep holds the per-threshold result sets when Adaptive was set.
	Sweep map[ThresholdClass][]SearchResult
}
