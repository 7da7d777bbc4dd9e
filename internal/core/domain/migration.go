package domain

import "time"

// MigrationState is a phase of the embedding model migration state machine.
// Phases run in order; rollback is reachable from any phase before
// cutover commits.
type MigrationState string

const (
	MigrationStatePending  MigrationState = "pending"
	MigrationStateValidate MigrationState = "validate"
	MigrationStateStage    MigrationState = "stage"
	MigrationStateBackfill MigrationState = "backfill"
	MigrationStateVerify   MigrationState = "verify"
	MigrationStateCutover  MigrationState = "cutover"
	MigrationStateComplete MigrationState = "complete"
	MigrationStateRolledBack MigrationState = "rolled_back"
)

// MigrationProgress reports backfill progress.
type MigrationProgress struct {
	// State is the current phase.
	State MigrationState

	// Processed is the number of chunks re-embedded so far.
	Processed int

	// Total is the number of chunks to migrate.
	Total int

	// Percentage is Processed/Total as a value in [0, 100].
	Percentage float64

	// ETA estimates the remaining backfill time from the observed rate.
	ETA time.Duration
}
