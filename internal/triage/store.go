package triage

import "context"

// Store is the durable on-device persistence interface for assessments.
// It is the single source of truth on the edge node.
//
// Concurrency contract: the triage service owns record creation (Upsert);
// the sync engine owns the SyncStatus field thereafter (UpdateSyncStatus).
// The two write sets never overlap on a field, so per-row atomicity is all
// an implementation must provide.
type Store interface {
	// Upsert inserts or fully replaces the record by ID (last write wins).
	// Atomic: no reader observes a partially written record. Durable: once
	// Upsert returns nil the record survives a process crash.
	Upsert(ctx context.Context, a *Assessment) error

	// GetByID retrieves one assessment. ok is false when absent.
	GetByID(ctx context.Context, id string) (a *Assessment, ok bool, err error)

	// List returns all assessments ordered by creation timestamp descending.
	List(ctx context.Context) ([]*Assessment, error)

	// ListPending returns the sync candidates: every record whose status is
	// not SYNCED (PENDING, plus FAILED left over from exhausted runs),
	// oldest first so delivery order follows creation order.
	ListPending(ctx context.Context) ([]*Assessment, error)

	// UpdateSyncStatus changes only the sync status of one record, leaving
	// every other field untouched.
	UpdateSyncStatus(ctx context.Context, id string, status SyncStatus) error
}
