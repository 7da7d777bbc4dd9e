// Package cache provides a memoizing decorator around any embedding
// service. Lookups are keyed by (model, content hash) so a model change
// never serves stale vectors, and the map is bounded with
// oldest-inserted eviction.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// DefaultCapacity is the default maximum number of cached vectors.
const DefaultCapacity = 10000

// Service wraps an EmbeddingService with a bounded concurrent cache.
//
// Two concurrent misses for the same key may both call the provider;
// one winner's vector ends up cached. That duplication is rare and
// harmless, and avoiding it would serialize unrelated batches.
type Service struct {
	inner    driven.EmbeddingService
	capacity int

	mu      sync.RWMutex
	entries map[string][]float32
	order   []string // insertion order, for eviction

	hits   int
	misses int
}

// Option configures the cache.
type Option func(*Service)

// WithCapacity bounds the number of cached vectors.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// New wraps the given embedding service.
func New(inner driven.EmbeddingService, opts ...Option) *Service {
	s := &Service{
		inner:    inner,
		capacity: DefaultCapacity,
		entries:  make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key builds the cache key from the model identity and content hash.
func (s *Service) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return s.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or generates and caches a new one.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch serves cached vectors and calls the provider only for the
// missing texts, writing the results through the cache before returning.
// Results keep the input order. A provider failure surfaces with its
// failed indices translated back into the caller's input space.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missing []int

	s.mu.RLock()
	for i, text := range texts {
		if vec, ok := s.entries[s.key(text)]; ok {
			results[i] = vec
		} else {
			missing = append(missing, i)
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	s.hits += len(texts) - len(missing)
	s.misses += len(missing)
	s.mu.Unlock()

	if len(missing) == 0 {
		return results, nil
	}

	missingTexts := make([]string, len(missing))
	for i, idx := range missing {
		missingTexts[i] = texts[idx]
	}

	vectors, err := s.inner.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, translateIndices(err, missing)
	}

	s.mu.Lock()
	for i, idx := range missing {
		results[idx] = vectors[i]
		s.insertLocked(s.key(texts[idx]), vectors[i])
	}
	s.mu.Unlock()

	return results, nil
}

// insertLocked stores a vector, evicting the oldest entry at capacity.
// Callers must hold mu.
func (s *Service) insertLocked(key string, vec []float32) {
	if _, exists := s.entries[key]; exists {
		return
	}
	for len(s.entries) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[key] = vec
	s.order = append(s.order, key)
}

// translateIndices rewrites the failed indices of an embedding error
// from the miss-only batch back into the caller's input positions.
func translateIndices(err error, missing []int) error {
	var embErr *domain.EmbeddingError
	if !errors.As(err, &embErr) {
		return err
	}
	translated := make([]int, 0, len(embErr.FailedIndices))
	for _, idx := range embErr.FailedIndices {
		if idx >= 0 && idx < len(missing) {
			translated = append(translated, missing[idx])
		}
	}
	return &domain.EmbeddingError{
		ModelID:       embErr.ModelID,
		FailedIndices: translated,
		Err:           embErr.Err,
	}
}

// Stats returns cache hit/miss counters, for logging.
func (s *Service) Stats() (hits, misses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses
}

// Len returns the number of cached vectors.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimensions returns the wrapped service's vector size.
func (s *Service) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *Service) ModelName() string {
	return s.inner.ModelName()
}

// Ping delegates to the wrapped service.
func (s *Service) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close delegates to the wrapped service.
func (s *Service) Close() error {
	return s.inner.Close()
}
