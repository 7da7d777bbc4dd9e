package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure CleanupService implements the interface.
var _ driving.CleanupService = (*CleanupService)(nil)

// CleanupService periodically sweeps expired cached and temporary
// records out of the vector store.
type CleanupService struct {
	config domain.CleanupConfig
	store  driven.VectorStore

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewCleanupService creates a cleanup service with configuration.
func NewCleanupService(config domain.CleanupConfig, store driven.VectorStore) *CleanupService {
	return &CleanupService{
		config: config,
		store:  store,
	}
}

// Start begins the sweep loop. This method blocks until Stop is called
// or the context is cancelled. When the config disables cleanup it
// returns immediately.
func (s *CleanupService) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Debug("Cleanup disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	// Sweep once on startup so a long interval never delays the first pass.
	if _, err := s.RunOnce(ctx); err != nil {
		logger.Warn("Initial cleanup sweep failed: %v", err)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.wg.Add(1)
			if _, err := s.RunOnce(ctx); err != nil {
				logger.Warn("Cleanup sweep failed: %v", err)
			}
			s.wg.Done()
		}
	}
}

// Stop gracefully shuts down the sweep loop.
func (s *CleanupService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for an in-flight sweep to complete
	s.wg.Wait()
	return nil
}

// RunOnce performs a single sweep immediately.
func (s *CleanupService) RunOnce(ctx context.Context) (*domain.SweepResult, error) {
	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}

	result := &domain.SweepResult{StartedAt: time.Now()}
	deleted, err := s.store.DeleteExpired(ctx, result.StartedAt)
	result.EndedAt = time.Now()
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted

	if deleted > 0 {
		logger.Info("Cleanup removed %d expired records", deleted)
	} else {
		logger.Debug("Cleanup found no expired records")
	}
	return result, nil
}
