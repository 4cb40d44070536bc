package storage

import (
	"context"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// RecordStorage defines interface for canonical record persistence.
// The canonical record is owned by the commit coordinator and mutated
// only through version-gated conditional updates.
type RecordStorage interface {
	// GetRecord retrieves the canonical record for (kind, recordID)
	// Returns ErrRecordNotFound if the record does not exist
	GetRecord(ctx context.Context, kind models.EntityKind, recordID string) (*models.CanonicalRecord, error)

	// InsertRecord creates a new canonical record at version 1
	// Returns ErrRecordAlreadyExists if a concurrent insert won the race
	InsertRecord(ctx context.Context, record *models.CanonicalRecord) error

	// CommitRecord performs the compare-and-swap commit: replaces the record
	// fields and provenance and bumps version by one, but only while the
	// stored version still equals expectedVersion. The ledger entries (if any)
	// are appended in the same transaction so that an auto-resolved conflict
	// can never land in the canonical record without its audit trail.
	// Returns the new version, or ErrVersionMismatch if another writer
	// committed in between (zero rows matched, nothing is written).
	CommitRecord(ctx context.Context, record *models.CanonicalRecord, expectedVersion int64, entries []models.ConflictLedgerEntry) (int64, error)
}
