package ingest

import (
	"context"
	"time"

	"github.com/linnemanlabs/outpost/internal/remote"
)

// StoredRecord is an accepted assessment as the central system keeps it: the
// wire record plus ingest bookkeeping.
type StoredRecord struct {
	remote.Record
	ReceivedAt time.Time `json:"receivedAt"`
}

// Store is the central system's persistence interface.
//
// Delivery from edge nodes is at-least-once, so the store provides the
// exactly-once-effective half of the contract: inserting an id that already
// exists is a no-op, never an overwrite. The first received version of a
// record wins.
type Store interface {
	// InsertIfAbsent stores the record unless its id already exists.
	// Returns true when the record was inserted, false for a duplicate.
	InsertIfAbsent(ctx context.Context, rec *StoredRecord) (bool, error)

	// GetByID retrieves one record. ok is false when absent.
	GetByID(ctx context.Context, id string) (rec *StoredRecord, ok bool, err error)

	// List returns all records ordered by original assessment timestamp
	// descending.
	List(ctx context.Context) ([]*StoredRecord, error)
}
