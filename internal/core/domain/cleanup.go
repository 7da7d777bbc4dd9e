package domain

import "time"

// CleanupConfig holds TTL sweep configuration.
type CleanupConfig struct {
	// Enabled is the master switch for the periodic sweep.
	Enabled bool

	// Interval defines how often expired records are swept.
	Interval time.Duration
}

// DefaultCleanupConfig returns sensible defaults for the sweeper.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:  true,
		Interval: 1 * time.Hour,
	}
}

// SweepResult represents the outcome of one cleanup pass.
type SweepResult struct {
	// StartedAt is when the sweep started.
	StartedAt time.Time

	// EndedAt is when the sweep completed.
	EndedAt time.Time

	// Deleted is the number of expired records removed.
	Deleted int
}
