package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// insertLockKey is the advisory lock that serializes inserts across processes.
const insertLockKey = 0x66616365 // "face"

// Store provides PostgreSQL-backed identity storage.
type Store struct {
	pool    *Pool
	writeMu sync.Mutex
}

var _ gallery.Store = (*Store)(nil)

// NewStore creates a store on an already migrated pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Insert validates and appends a new identity. Inserts take a transaction-scoped advisory
// lock so ids become visible in the order they were assigned.
func (s *Store) Insert(ctx context.Context, identity gallery.NewIdentity) (gallery.IdentityRecord, error) {
	if err := gallery.ValidateNew(identity); err != nil {
		return gallery.IdentityRecord{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return gallery.IdentityRecord{}, storageErr("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", insertLockKey); err != nil {
		return gallery.IdentityRecord{}, storageErr("lock identities", err)
	}

	rec := gallery.IdentityRecord{
		Name:      identity.Name,
		Embedding: append([]float32(nil), identity.Embedding...),
		ImageRef:  identity.ImageRef,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO identities (name, embedding, image_ref, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`, identity.Name, pgvector.NewVector(identity.Embedding), identity.ImageRef).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return gallery.IdentityRecord{}, storageErr("insert identity", err)
	}

	if err := tx.Commit(); err != nil {
		return gallery.IdentityRecord{}, storageErr("commit insert", err)
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// ScanAll returns every identity in ascending id order from a single statement snapshot.
func (s *Store) ScanAll(ctx context.Context) ([]gallery.IdentityRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, name, embedding, image_ref, created_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("query identities", err)
	}
	defer rows.Close()

	var records []gallery.IdentityRecord
	for rows.Next() {
		var (
			rec gallery.IdentityRecord
			vec pgvector.Vector
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &vec, &rec.ImageRef, &rec.CreatedAt); err != nil {
			return nil, storageErr("scan identity", err)
		}
		rec.Embedding = vec.Slice()
		if len(rec.Embedding) != embedding.Dim {
			return nil, fmt.Errorf("identity %d: %w: %d values", rec.ID, embedding.ErrMalformedEmbedding, len(rec.Embedding))
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate identities", err)
	}
	return records, nil
}

// Count returns the total number of identities stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, storageErr("count identities", err)
	}
	return count, nil
}

// List returns all identities without embeddings.
func (s *Store) List(ctx context.Context) ([]gallery.IdentitySummary, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, name, image_ref, created_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("list identities", err)
	}
	defer rows.Close()

	var out []gallery.IdentitySummary
	for rows.Next() {
		var sum gallery.IdentitySummary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.ImageRef, &sum.CreatedAt); err != nil {
			return nil, storageErr("scan identity summary", err)
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate identity summaries", err)
	}
	return out, nil
}

// Get returns one identity summary by id.
func (s *Store) Get(ctx context.Context, id int64) (*gallery.IdentitySummary, error) {
	var sum gallery.IdentitySummary
	err := s.pool.db.QueryRowContext(ctx,
		"SELECT id, name, image_ref, created_at FROM identities WHERE id = $1", id,
	).Scan(&sum.ID, &sum.Name, &sum.ImageRef, &sum.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gallery.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get identity", err)
	}
	sum.CreatedAt = sum.CreatedAt.UTC()
	return &sum, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
