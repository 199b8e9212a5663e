package gallery

import (
	"context"
)

// Reader provides read-only access to the gallery.
type Reader interface {
	// ScanAll returns every record in ascending id order, read from one consistent snapshot.
	ScanAll(ctx context.Context) ([]IdentityRecord, error)
	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
	// List returns all records without embeddings, in ascending id order
	List(ctx context.Context) ([]IdentitySummary, error)
	// Get returns a single record summary, or ErrNotFound
	Get(ctx context.Context, id int64) (*IdentitySummary, error)
}

// Store is the durable, append-only identity store.
type Store interface {
	Reader

	// Insert validates and atomically appends a record, returning it with its assigned id.
	// Concurrent inserts are serialized so ids are unique and strictly increasing.
	Insert(ctx context.Context, identity NewIdentity) (IdentityRecord, error)

	// Close releases the underlying connection.
	Close() error
}
