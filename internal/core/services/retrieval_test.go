package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// unitVec returns a 3-dimensional unit vector whose cosine similarity
// to (1, 0, 0) is exactly sim.
func unitVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

func seedRecord(t *testing.T, store *memory.VectorStore, id string, sim float64, content string) {
	t.Helper()
	vec := unitVec(sim)
	err := store.UpsertRecords(context.Background(), []domain.StoredRecord{{
		Chunk: domain.Chunk{ID: id, Content: content},
		Embedding: domain.Embedding{
			ChunkID:   id,
			ModelID:   "test-model",
			Dimension: len(vec),
			Vector:    vec,
		},
		RepositoryID: "acme/payments",
		SourceType:   "analysis",
		SourceID:     "seed",
		ContentType:  domain.ContentTypeRepositoryAnalysis,
		StorageType:  domain.StoragePermanent,
		CreatedAt:    time.Now(),
	}})
	require.NoError(t, err)
}

// newTestRetrieval seeds a corpus whose similarities to the query
// vector (1, 0, 0) straddle every threshold class cutoff.
func newTestRetrieval(t *testing.T, query string) (*RetrievalService, *memory.VectorStore, *stubEmbedder) {
	t.Helper()
	embedder := newStubEmbedder("test-model", 3)
	embedder.vectors[query] = []float32{1, 0, 0}

	store := memory.NewVectorStore()
	seedRecord(t, store, "r-high", 0.95, "retry logic swallows charge failures")
	seedRecord(t, store, "r-mid", 0.55, "refund path lacks integration tests")
	seedRecord(t, store, "r-low", 0.40, "webhook handler validates signatures")
	seedRecord(t, store, "r-weak", 0.25, "dashboard renders charge history")
	seedRecord(t, store, "r-none", 0.05, "release notes for the mobile app")

	return NewRetrievalService(embedder, store), store, embedder
}

func TestSearch_ThresholdMonotonicity(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	want := map[domain.ThresholdClass]int{
		domain.ThresholdStrict:  1,
		domain.ThresholdHigh:    2,
		domain.ThresholdDefault: 3,
		domain.ThresholdMedium:  3,
		domain.ThresholdLow:     4,
	}

	prev := 0
	for _, class := range []domain.ThresholdClass{
		domain.ThresholdLow, domain.ThresholdMedium, domain.ThresholdDefault,
		domain.ThresholdHigh, domain.ThresholdStrict,
	} {
		resp, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
			Threshold: class,
			SkipCache: true,
		})
		require.NoError(t, err)
		assert.Len(t, resp.Results, want[class], "class %s", class)
		assert.Equal(t, class, resp.SelectedClass)
		assert.Equal(t, class.Cutoff(), resp.SelectedThreshold)
		assert.Equal(t, 1.0, resp.Confidence)

		// Raising the cutoff never adds results.
		if prev > 0 {
			assert.LessOrEqual(t, len(resp.Results), prev)
		}
		prev = len(resp.Results)
	}
}

func TestSearch_ResultsRankedDescending(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	resp, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
		Threshold: domain.ThresholdLow,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Similarity, resp.Results[i].Similarity)
	}
	assert.Equal(t, "r-high", resp.Results[0].ChunkID)
}

func TestSearch_NumericThresholdOverride(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	cutoff := 0.5
	resp, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
		ThresholdValue: &cutoff,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 0.5, resp.SelectedThreshold)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.Empty(t, resp.SelectedClass)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	_, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_MaxResults(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	resp, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
		Threshold:  domain.ThresholdLow,
		MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, "r-high", resp.Results[0].ChunkID)
	assert.Equal(t, "r-mid", resp.Results[1].ChunkID)
}

func TestSearch_Dedupe(t *testing.T) {
	embedder := newStubEmbedder("test-model", 3)
	embedder.vectors["retry"] = []float32{1, 0, 0}
	store := memory.NewVectorStore()

	// Same leading content modulo case and whitespace; the higher
	// ranked copy must win.
	seedRecord(t, store, "dup-a", 0.9, "Retry logic   swallows charge failures")
	seedRecord(t, store, "dup-b", 0.7, "retry logic swallows charge failures")
	seedRecord(t, store, "other", 0.8, "refund path lacks integration tests")

	svc := NewRetrievalService(embedder, store)
	resp, err := svc.Search(context.Background(), "retry", domain.SearchOptions{
		Threshold: domain.ThresholdLow,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "dup-a", resp.Results[0].ChunkID)
	assert.Equal(t, "other", resp.Results[1].ChunkID)
}

func TestSearch_ResultCache(t *testing.T) {
	svc, store, _ := newTestRetrieval(t, "payment failures")
	ctx := context.Background()
	opts := domain.SearchOptions{Threshold: domain.ThresholdHigh}

	first, err := svc.Search(ctx, "payment failures", opts)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Mutating the store between calls proves the second answer came
	// from the cache, not the store.
	seedRecord(t, store, "r-new", 0.99, "newly ingested charge analysis")

	second, err := svc.Search(ctx, "payment failures", opts)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Len(t, second.Results, len(first.Results))

	opts.SkipCache = true
	third, err := svc.Search(ctx, "payment failures", opts)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Results, len(first.Results)+1)
}

func TestSearch_CacheKeyedByOptions(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")
	ctx := context.Background()

	_, err := svc.Search(ctx, "payment failures", domain.SearchOptions{Threshold: domain.ThresholdHigh})
	require.NoError(t, err)

	// Different threshold, same query: must not hit the cache.
	resp, err := svc.Search(ctx, "payment failures", domain.SearchOptions{Threshold: domain.ThresholdLow})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Results, 4)
}

func TestSearch_AdaptiveSweep(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "payment failures")

	resp, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
		Adaptive: true,
	})
	require.NoError(t, err)

	require.Len(t, resp.Sweep, len(domain.ThresholdClasses()))
	for _, class := range domain.ThresholdClasses() {
		_, ok := resp.Sweep[class]
		assert.True(t, ok, "sweep missing class %s", class)
	}
	assert.Equal(t, resp.Sweep[resp.SelectedClass], resp.Results)
	assert.Equal(t, resp.SelectedClass.Cutoff(), resp.SelectedThreshold)
	assert.Equal(t, 1.0, resp.Confidence)
	assert.NotEmpty(t, resp.Reasoning)
}

func TestSearch_TouchesAccessedRecords(t *testing.T) {
	svc, store, _ := newTestRetrieval(t, "payment failures")

	_, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{
		Threshold: domain.ThresholdStrict,
	})
	require.NoError(t, err)

	records, err := store.ListRecords(context.Background(), 0, 100)
	require.NoError(t, err)
	for _, rec := range records {
		if rec.ID == "r-high" {
			assert.Equal(t, 1, rec.AccessCount)
		} else {
			assert.Zero(t, rec.AccessCount)
		}
	}
}

func TestSearch_ClosedStore(t *testing.T) {
	svc, store, _ := newTestRetrieval(t, "payment failures")
	require.NoError(t, store.Close())

	_, err := svc.Search(context.Background(), "payment failures", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrSearchBackend)
}

func TestSearchVector(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "unused")

	resp, err := svc.SearchVector(context.Background(), []float32{1, 0, 0}, domain.SearchOptions{
		Threshold: domain.ThresholdHigh,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	_, err = svc.SearchVector(context.Background(), nil, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		qctx       domain.QueryContext
		wantClass  domain.ThresholdClass
		confidence float64
	}{
		{
			name:       "security term",
			query:      "SQL injection in login",
			wantClass:  domain.ThresholdStrict,
			confidence: 0.9,
		},
		{
			name:       "security content type",
			query:      "review the token refresh flow",
			qctx:       domain.QueryContext{ContentType: "security"},
			wantClass:  domain.ThresholdStrict,
			confidence: 0.9,
		},
		{
			name:       "security outranks urgency",
			query:      "critical auth bypass vulnerability",
			qctx:       domain.QueryContext{Urgency: "critical"},
			wantClass:  domain.ThresholdStrict,
			confidence: 0.9,
		},
		{
			name:       "critical urgency",
			query:      "where does the charge retry happen",
			qctx:       domain.QueryContext{Urgency: "critical"},
			wantClass:  domain.ThresholdHigh,
			confidence: 0.8,
		},
		{
			name:       "urgency term",
			query:      "checkout outage after the deploy",
			wantClass:  domain.ThresholdHigh,
			confidence: 0.8,
		},
		{
			name:       "technical term",
			query:      "error handling in the refund worker",
			wantClass:  domain.ThresholdHigh,
			confidence: 0.7,
		},
		{
			name:       "function identifier",
			query:      "callers of ProcessPayment()",
			wantClass:  domain.ThresholdHigh,
			confidence: 0.7,
		},
		{
			name:       "specific precision",
			query:      "where does the charge retry happen",
			qctx:       domain.QueryContext{Precision: "specific"},
			wantClass:  domain.ThresholdHigh,
			confidence: 0.7,
		},
		{
			name:       "broad precision overrides technical term",
			query:      "error handling in the refund worker",
			qctx:       domain.QueryContext{Precision: "broad"},
			wantClass:  domain.ThresholdLow,
			confidence: 0.7,
		},
		{
			name:       "exploratory question",
			query:      "how does the refund pipeline work",
			wantClass:  domain.ThresholdLow,
			confidence: 0.7,
		},
		{
			name:       "documentation term",
			query:      "readme for the billing service",
			wantClass:  domain.ThresholdMedium,
			confidence: 0.6,
		},
		{
			name:       "documentation content type",
			query:      "billing service setup",
			qctx:       domain.QueryContext{ContentType: "documentation"},
			wantClass:  domain.ThresholdMedium,
			confidence: 0.6,
		},
		{
			name:       "no strong signal",
			query:      "problems in the payment reconciliation report",
			wantClass:  domain.ThresholdDefault,
			confidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, reasoning, confidence := classifyQuery(tt.query, tt.qctx)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.confidence, confidence)
			assert.NotEmpty(t, reasoning)
		})
	}
}

func TestClassifyQuery_SecurityReasoning(t *testing.T) {
	class, reasoning, _ := classifyQuery("SQL injection in login", domain.QueryContext{})

	assert.Equal(t, domain.ThresholdStrict, class)
	assert.Contains(t, reasoning, "security")
}

func TestSelectThreshold_UnknownClassFallsBack(t *testing.T) {
	svc, _, _ := newTestRetrieval(t, "unused")

	class, cutoff, reasoning, confidence := svc.selectThreshold("query", domain.SearchOptions{
		Threshold: "superstrict",
	})
	assert.Equal(t, domain.ThresholdDefault, class)
	assert.Equal(t, domain.ThresholdDefault.Cutoff(), cutoff)
	assert.Contains(t, reasoning, "superstrict")
	assert.Equal(t, 0.5, confidence)
}

func TestSweepScore(t *testing.T) {
	mkResults := func(sims ...float64) []domain.SearchResult {
		out := make([]domain.SearchResult, len(sims))
		for i, s := range sims {
			out[i] = domain.SearchResult{Similarity: s}
		}
		return out
	}

	assert.Zero(t, sweepScore(nil))

	// Five results at moderate similarity is the sweet spot.
	ideal := sweepScore(mkResults(0.6, 0.55, 0.5, 0.5, 0.45))
	assert.Equal(t, 1.0, ideal)

	// Too few, too many, or saturated similarity all score lower.
	assert.Less(t, sweepScore(mkResults(0.5)), ideal)
	assert.Less(t, sweepScore(mkResults(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5)), ideal)
	assert.Less(t, sweepScore(mkResults(0.95, 0.95, 0.95)), ideal)
}

func TestResultCache_TTLAndEviction(t *testing.T) {
	cache := newResultCache(2, 20*time.Millisecond)

	cache.put("a", domain.SearchResponse{Reasoning: "a"})
	cache.put("b", domain.SearchResponse{Reasoning: "b"})

	// Touch "a" so "b" is the eviction candidate.
	_, ok := cache.get("a")
	require.True(t, ok)

	cache.put("c", domain.SearchResponse{Reasoning: "c"})
	_, ok = cache.get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.get("a")
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = cache.get("a")
	assert.False(t, ok, "expired entry should not be served")
}

func TestLooksLikeCode(t *testing.T) {
	for _, q := range []string{"ProcessPayment()", "see handler.go", "https://example.com/docs", "max_retry_count", "pkg::Handler"} {
		assert.True(t, looksLikeCode(q), fmt.Sprintf("%q should look like code", q))
	}
	for _, q := range []string{"how payments work", "refund overview"} {
		assert.False(t, looksLikeCode(q), fmt.Sprintf("%q should not look like code", q))
	}
}

func TestDedupeKeyRuneSafe(t *testing.T) {
	// 3-byte runes force the prefix cut into the middle of a rune.
	content := strings.Repeat("界", 67)
	key := dedupeKey(content)
	assert.True(t, utf8.ValidString(key))
	assert.True(t, strings.HasPrefix(content, key))
}
