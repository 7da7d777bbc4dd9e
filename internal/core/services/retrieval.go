package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

const (
	// DefaultMaxResults bounds the result count when the caller sets none.
	DefaultMaxResults = 10

	// dedupePrefixLen is how much leading content participates in
	// duplicate detection.
	dedupePrefixLen = 100

	// resultCacheCapacity bounds the search result cache.
	resultCacheCapacity = 100

	// resultCacheTTL expires cached search responses.
	resultCacheTTL = 5 * time.Minute
)

// RetrievalService answers similarity queries with automatically tuned
// thresholds.
type RetrievalService struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	cache    *resultCache
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(embedder driven.EmbeddingService, store driven.VectorStore) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		cache:    newResultCache(resultCacheCapacity, resultCacheTTL),
	}
}

// Search embeds the query, selects a threshold and returns ranked,
// de-duplicated results with the decision trail.
func (s *RetrievalService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	cacheKey := s.cacheKey(query, opts)
	if !opts.SkipCache {
		if cached, ok := s.cache.get(cacheKey); ok {
			logger.Debug("Result cache hit")
			response := cached
			response.Cached = true
			return &response, nil
		}
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	response, err := s.search(ctx, vector, query, opts)
	if err != nil {
		return nil, err
	}

	if !opts.SkipCache {
		s.cache.put(cacheKey, *response)
	}
	return response, nil
}

// SearchVector runs the search with a caller-supplied vector. Automatic
// threshold selection degrades to the default class since there is no
// query text to classify.
func (s *RetrievalService) SearchVector(
	ctx context.Context, vector []float32, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	return s.search(ctx, vector, "", opts)
}

// search is the shared engine behind Search and SearchVector.
func (s *RetrievalService) search(
	ctx context.Context, vector []float32, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	if opts.Adaptive {
		return s.adaptiveSearch(ctx, vector, opts, limit)
	}

	class, cutoff, reasoning, confidence := s.selectThreshold(query, opts)
	logger.Debug("Threshold %s (%.2f): %s", class, cutoff, reasoning)

	results, err := s.runQuery(ctx, vector, opts, limit, cutoff)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResponse{
		Results:           results,
		SelectedClass:     class,
		SelectedThreshold: cutoff,
		Reasoning:         reasoning,
		Confidence:        confidence,
	}, nil
}

// runQuery executes one similarity query and post-processes the results.
func (s *RetrievalService) runQuery(
	ctx context.Context, vector []float32, opts domain.SearchOptions, limit int, cutoff float64,
) ([]domain.SearchResult, error) {
	// Over-fetch so deduplication cannot leave the page short.
	raw, err := s.store.Search(ctx, driven.SimilarityQuery{
		Embedding:     vector,
		RepositoryID:  opts.RepositoryID,
		Limit:         limit * 2,
		MinSimilarity: cutoff,
		Filters:       opts.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchBackend, err)
	}

	results := dedupeResults(raw)
	if len(results) > limit {
		results = results[:limit]
	}

	if len(results) > 0 {
		ids := make([]string, len(results))
		for i := range results {
			ids[i] = results[i].ChunkID
		}
		if err := s.store.TouchAccess(ctx, ids); err != nil {
			logger.Debug("Access tracking failed: %v", err)
		}
	}
	return results, nil
}

// adaptiveSearch sweeps every threshold class and returns the
// best-scoring result set plus the full per-class map.
func (s *RetrievalService) adaptiveSearch(
	ctx context.Context, vector []float32, opts domain.SearchOptions, limit int,
) (*domain.SearchResponse, error) {
	sweep := make(map[domain.ThresholdClass][]domain.SearchResult)

	var (
		bestClass domain.ThresholdClass
		bestScore = -1.0
	)
	for _, class := range domain.ThresholdClasses() {
		results, err := s.runQuery(ctx, vector, opts, limit, class.Cutoff())
		if err != nil {
			return nil, err
		}
		sweep[class] = results

		score := sweepScore(results)
		logger.Debug("Sweep %s: %d results, score %.2f", class, len(results), score)
		if score > bestScore {
			bestScore = score
			bestClass = class
		}
	}

	return &domain.SearchResponse{
		Results:           sweep[bestClass],
		SelectedClass:     bestClass,
		SelectedThreshold: bestClass.Cutoff(),
		Reasoning: fmt.Sprintf("adaptive sweep selected %s (%d results, score %.2f)",
			bestClass, len(sweep[bestClass]), bestScore),
		Confidence: 1.0,
		Sweep:      sweep,
	}, nil
}

// sweepScore grades one threshold's result set. A useful set has a
// handful of results (3 to 8) with solid but not saturated mean
// similarity (0.4 to 0.7).
func sweepScore(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}

	countScore := 1.0
	switch {
	case len(results) < 3:
		countScore = float64(len(results)) / 3.0
	case len(results) > 8:
		countScore = 8.0 / float64(len(results))
	}

	var sum float64
	for i := range results {
		sum += results[i].Similarity
	}
	mean := sum / float64(len(results))

	simScore := 1.0
	switch {
	case mean < 0.4:
		simScore = mean / 0.4
	case mean > 0.7:
		simScore = 0.7 / mean
	}

	return countScore*0.5 + simScore*0.5
}

// selectThreshold picks the similarity cutoff for one query. Explicit
// caller choices always win with full confidence; otherwise a rule
// classifier reads the query text and context hints.
func (s *RetrievalService) selectThreshold(
	query string, opts domain.SearchOptions,
) (domain.ThresholdClass, float64, string, float64) {
	if opts.ThresholdValue != nil {
		return "", *opts.ThresholdValue, "explicit numeric threshold", 1.0
	}
	if opts.Threshold != "" {
		class := opts.Threshold
		if !class.Valid() {
			class = domain.ThresholdDefault
			return class, class.Cutoff(),
				fmt.Sprintf("unknown threshold class %q, using default", opts.Threshold), 0.5
		}
		return class, class.Cutoff(), "explicit threshold class", 1.0
	}

	class, reasoning, confidence := classifyQuery(query, opts.Context)
	return class, class.Cutoff(), reasoning, confidence
}

// Term lists for query classification. Matching is substring-based on
// the lower-cased query, mirroring what each rule is after rather than
// exact tokenisation.
var (
	securityTerms = []string{
		"security", "vulnerab", "injection", "xss", "csrf", "exploit",
		"cve-", "privilege escalation", "sanitis", "sanitiz",
	}
	urgencyTerms = []string{
		"urgent", "critical", "immediately", "asap", "outage", "incident",
	}
	technicalTerms = []string{
		"function", "class", "method", "error", "exception", "interface",
		"struct", "endpoint", "panic", "stack trace",
	}
	exploratoryTerms = []string{
		"how to", "how do", "how does", "overview", "explain", "what is",
		"introduction", "getting started",
	}
	documentationTerms = []string{
		"documentation", "docs", "readme", "guide", "tutorial",
	}
)

// classifyQuery maps query text and context hints to a threshold class.
// Rules apply in order; the first match wins.
func classifyQuery(query string, qctx domain.QueryContext) (domain.ThresholdClass, string, float64) {
	lower := strings.ToLower(query)

	// Security questions pay for false positives, so precision wins.
	if strings.EqualFold(qctx.ContentType, "security") || containsAny(lower, securityTerms) {
		return domain.ThresholdStrict, "security subject matter favours precision over recall", 0.9
	}

	if strings.EqualFold(qctx.Urgency, "critical") || containsAny(lower, urgencyTerms) {
		return domain.ThresholdHigh, "urgent query favours precise, actionable matches", 0.8
	}

	broad := strings.EqualFold(qctx.Precision, "broad")
	specific := strings.EqualFold(qctx.Precision, "specific")
	if !broad && (specific || containsAny(lower, technicalTerms) || looksLikeCode(query)) {
		return domain.ThresholdHigh, "specific technical terms suggest a precise target", 0.7
	}

	if broad || containsAny(lower, exploratoryTerms) {
		return domain.ThresholdLow, "exploratory question favours wide recall", 0.7
	}

	if strings.EqualFold(qctx.ContentType, "documentation") || containsAny(lower, documentationTerms) {
		return domain.ThresholdMedium, "documentation lookup tolerates moderate matches", 0.6
	}

	return domain.ThresholdDefault, "no strong signal, using default threshold", 0.5
}

// containsAny reports whether the lower-cased query contains any term.
func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// looksLikeCode reports whether the query carries code identifiers.
func looksLikeCode(query string) bool {
	if strings.Contains(query, "()") || strings.Contains(query, "://") {
		return true
	}
	for _, ext := range []string{".go", ".py", ".ts", ".js", ".sql", ".rs", ".java"} {
		if strings.Contains(query, ext) {
			return true
		}
	}
	for _, word := range strings.Fields(query) {
		if strings.Contains(word, "_") || strings.Contains(word, "::") {
			return true
		}
	}
	return false
}

// dedupeResults removes near-duplicate results, keeping the highest
// ranked occurrence. Two results are duplicates when their leading
// content matches after case folding and whitespace collapsing.
func dedupeResults(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := dedupeKey(r.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// dedupeKey normalises the leading content of one result.
func dedupeKey(content string) string {
	folded := strings.ToLower(content)
	folded = strings.Join(strings.Fields(folded), " ")
	if len(folded) > dedupePrefixLen {
		cut := dedupePrefixLen
		for cut > 0 && !utf8.RuneStart(folded[cut]) {
			cut--
		}
		folded = folded[:cut]
	}
	return folded
}

// cacheKey derives the result cache key from the query and every option
// that changes the answer.
func (s *RetrievalService) cacheKey(query string, opts domain.SearchOptions) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteByte('|')
	b.WriteString(opts.RepositoryID)
	fmt.Fprintf(&b, "|%d|%s|%v|%v", opts.MaxResults, opts.Threshold, opts.ThresholdValue != nil, opts.Adaptive)
	if opts.ThresholdValue != nil {
		fmt.Fprintf(&b, "|%.4f", *opts.ThresholdValue)
	}
	fmt.Fprintf(&b, "|%s|%s|%s", opts.Context.ContentType, opts.Context.Urgency, opts.Context.Precision)
	for _, ct := range opts.Filters.ContentTypes {
		b.WriteString("|ct:" + string(ct))
	}
	for _, sev := range opts.Filters.Severities {
		b.WriteString("|sev:" + string(sev))
	}
	for _, tag := range opts.Filters.Tags {
		b.WriteString("|tag:" + tag)
	}
	if opts.Filters.HasCode != nil {
		fmt.Fprintf(&b, "|code:%v", *opts.Filters.HasCode)
	}
	return b.String()
}

// resultCache is a small LRU cache of search responses with TTL expiry.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*cacheEntry
}

type cacheEntry struct {
	response domain.SearchResponse
	storedAt time.Time
	lastUsed time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry),
	}
}

// get returns a copy of the cached response when present and fresh.
func (c *resultCache) get(key string) (domain.SearchResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.SearchResponse{}, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return domain.SearchResponse{}, false
	}
	entry.lastUsed = time.Now()
	return entry.response, true
}

// put stores a response, evicting the least recently used entry at
// capacity.
func (c *resultCache) put(key string, response domain.SearchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	now := time.Now()
	c.entries[key] = &cacheEntry{response: response, storedAt: now, lastUsed: now}
}

// evictLocked removes the least recently used entry. Caller holds mu.
func (c *resultCache) evictLocked() {
	var (
		oldestKey  string
		oldestUsed time.Time
		first      = true
	)
	for key, entry := range c.entries {
		if first || entry.lastUsed.Before(oldestUsed) {
			oldestKey = key
			oldestUsed = entry.lastUsed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
