package storage

import (
	"context"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// LedgerStorage defines interface for the append-only conflict ledger.
// Entries are never deleted; a resolved entry is immutable.
type LedgerStorage interface {
	// AppendConflicts durably records detected conflicts (escalation path,
	// resolved=false). Appending is all-or-nothing across the batch.
	AppendConflicts(ctx context.Context, entries []models.ConflictLedgerEntry) error

	// GetConflict retrieves a single ledger entry by id
	// Returns ErrConflictNotFound if the entry does not exist
	GetConflict(ctx context.Context, id string) (*models.ConflictLedgerEntry, error)

	// PendingConflicts returns unresolved entries for an organization,
	// safety-critical first, then oldest first within each tier
	PendingConflicts(ctx context.Context, orgID string) ([]models.ConflictLedgerEntry, error)

	// ResolveConflict applies a manual resolution: flips the ledger entry to
	// resolved and patches the resolved value into the canonical record
	// (version+1) in a single transaction.
	// Returns ErrConflictNotFound if the entry does not exist and
	// ErrAlreadyResolved if it was resolved before — a client retry must not
	// masquerade as a second, different decision.
	ResolveConflict(ctx context.Context, id string, value any, resolvedBy string) (*models.ConflictLedgerEntry, error)
}
