// Package mock provides an in-memory gallery.Store for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// MockStore is an in-memory implementation of gallery.Store
type MockStore struct {
	mu      sync.RWMutex
	records []gallery.IdentityRecord
	nextID  int64
	now     func() time.Time
	closed  bool

	// Error injection
	InsertError  error
	ScanAllError error
	CountError   error
	ListError    error
	GetError     error
	CloseError   error
}

var _ gallery.Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddRecord stores a record as-is, bypassing validation. Records with ID 0 get the next id.
func (m *MockStore) AddRecord(rec gallery.IdentityRecord) gallery.IdentityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = m.nextID
	}
	if rec.ID >= m.nextID {
		m.nextID = rec.ID + 1
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.records = append(m.records, rec)
	slices.SortFunc(m.records, func(a, b gallery.IdentityRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return rec
}

// Insert validates and appends a record
func (m *MockStore) Insert(ctx context.Context, identity gallery.NewIdentity) (gallery.IdentityRecord, error) {
	if err := gallery.ValidateNew(identity); err != nil {
		return gallery.IdentityRecord{}, err
	}
	if m.InsertError != nil {
		return gallery.IdentityRecord{}, m.InsertError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := gallery.IdentityRecord{
		ID:        m.nextID,
		Name:      identity.Name,
		Embedding: slices.Clone(identity.Embedding),
		ImageRef:  identity.ImageRef,
		CreatedAt: m.now(),
	}
	m.nextID++
	m.records = append(m.records, rec)
	return rec, nil
}

// ScanAll returns a copy of all records
func (m *MockStore) ScanAll(ctx context.Context) ([]gallery.IdentityRecord, error) {
	if m.ScanAllError != nil {
		return nil, m.ScanAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]gallery.IdentityRecord, len(m.records))
	for i, r := range m.records {
		r.Embedding = slices.Clone(r.Embedding)
		out[i] = r
	}
	return out, nil
}

// Count returns the number of records
func (m *MockStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// List returns record summaries
func (m *MockStore) List(ctx context.Context) ([]gallery.IdentitySummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]gallery.IdentitySummary, len(m.records))
	for i, r := range m.records {
		out[i] = r.Summary()
	}
	return out, nil
}

// Get returns one record summary
func (m *MockStore) Get(ctx context.Context, id int64) (*gallery.IdentitySummary, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			s := r.Summary()
			return &s, nil
		}
	}
	return nil, gallery.ErrNotFound
}

// Close marks the store closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseError
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
