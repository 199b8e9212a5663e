// Package sqlite implements gallery.Store on a local SQLite database.
//
// Embeddings are stored as the canonical blob from package embedding
// (512 little-endian float32 values, 2048 bytes).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed gallery store.
type Store struct {
	db *sql.DB
	// writeMu serializes inserts within this process; busy_timeout covers other processes.
	writeMu sync.Mutex
	now     func() time.Time
}

var _ gallery.Store = (*Store)(nil)

// dsn builds a modernc.org/sqlite connection string with WAL and a busy timeout.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (or creates) the gallery database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is required", gallery.ErrStorageUnavailable)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite db: %w", gallery.ErrStorageUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging sqlite db: %w", gallery.ErrStorageUnavailable, err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrating sqlite db: %w", gallery.ErrStorageUnavailable, err)
	}

	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// storageErr wraps a database error. Context errors pass through unchanged so callers
// can tell a deadline from an unreachable medium.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", gallery.ErrStorageUnavailable, op, err)
}

// Insert validates and appends a new identity in a single transaction.
func (s *Store) Insert(ctx context.Context, identity gallery.NewIdentity) (gallery.IdentityRecord, error) {
	if err := gallery.ValidateNew(identity); err != nil {
		return gallery.IdentityRecord{}, err
	}

	blob, err := embedding.Encode(identity.Embedding)
	if err != nil {
		return gallery.IdentityRecord{}, fmt.Errorf("%w: %w", gallery.ErrValidation, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	createdAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gallery.IdentityRecord{}, storageErr("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO identities (name, embedding, image_ref, created_at) VALUES (?, ?, ?, ?)`,
		identity.Name, blob, identity.ImageRef, createdAt.Format(timeLayout),
	)
	if err != nil {
		return gallery.IdentityRecord{}, storageErr("insert identity", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return gallery.IdentityRecord{}, storageErr("read inserted id", err)
	}

	if err := tx.Commit(); err != nil {
		return gallery.IdentityRecord{}, storageErr("commit insert", err)
	}

	return gallery.IdentityRecord{
		ID:        id,
		Name:      identity.Name,
		Embedding: append([]float32(nil), identity.Embedding...),
		ImageRef:  identity.ImageRef,
		CreatedAt: createdAt,
	}, nil
}

// ScanAll returns every record in ascending id order. The single SELECT reads one
// WAL snapshot, so a concurrent insert is either fully visible or not at all.
func (s *Store) ScanAll(ctx context.Context) ([]gallery.IdentityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, embedding, image_ref, created_at FROM identities ORDER BY id`)
	if err != nil {
		return nil, storageErr("query identities", err)
	}
	defer rows.Close()

	var records []gallery.IdentityRecord
	for rows.Next() {
		var (
			rec       gallery.IdentityRecord
			blob      []byte
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &blob, &rec.ImageRef, &createdAt); err != nil {
			return nil, storageErr("scan identity", err)
		}
		rec.Embedding, err = embedding.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("identity %d: %w", rec.ID, err)
		}
		rec.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("identity %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate identities", err)
	}
	return records, nil
}

// Count returns the number of stored identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, storageErr("count identities", err)
	}
	return count, nil
}

// List returns all identities without their embeddings.
func (s *Store) List(ctx context.Context) ([]gallery.IdentitySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, image_ref, created_at FROM identities ORDER BY id`)
	if err != nil {
		return nil, storageErr("list identities", err)
	}
	defer rows.Close()

	var out []gallery.IdentitySummary
	for rows.Next() {
		var (
			sum       gallery.IdentitySummary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.ImageRef, &createdAt); err != nil {
			return nil, storageErr("scan identity summary", err)
		}
		if sum.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("identity %d: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate identity summaries", err)
	}
	return out, nil
}

// Get returns one identity summary by id.
func (s *Store) Get(ctx context.Context, id int64) (*gallery.IdentitySummary, error) {
	var (
		sum       gallery.IdentitySummary
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, image_ref, created_at FROM identities WHERE id = ?`, id,
	).Scan(&sum.ID, &sum.Name, &sum.ImageRef, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gallery.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get identity", err)
	}
	if sum.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("identity %d: %w", sum.ID, err)
	}
	return &sum, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite db: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
