package gallery_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/gallery/mock"
)

type fakeImages struct {
	mu        sync.Mutex
	saved     map[string][]byte
	n         int
	saveErr   error
	deleteErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{saved: make(map[string][]byte)}
}

func (f *fakeImages) Save(ctx context.Context, name string, data []byte) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	ref := name + "_" + string(rune('a'+f.n)) + ".jpg"
	f.saved[ref] = data
	return ref, nil
}

func (f *fakeImages) Delete(ctx context.Context, ref string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, ref)
	return nil
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func testVector(seed float32) []float32 {
	vec := make([]float32, embedding.Dim)
	for i := range vec {
		vec[i] = seed + float32(i%7)
	}
	return vec
}

func TestWriter_Register(t *testing.T) {
	store := mock.NewMockStore()
	images := newFakeImages()
	w := gallery.NewWriter(store, images, nil)

	rec, err := w.Register(context.Background(), "  Alice  ", testVector(1), []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "Alice", rec.Name)
	assert.NotEmpty(t, rec.ImageRef)
	assert.InDelta(t, 1.0, embedding.Norm(rec.Embedding), 1e-6, "stored embedding must be unit length")
	assert.Equal(t, 1, images.count())

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriter_Register_NoImage(t *testing.T) {
	store := mock.NewMockStore()
	images := newFakeImages()
	w := gallery.NewWriter(store, images, nil)

	rec, err := w.Register(context.Background(), "Bob", testVector(2), nil)
	require.NoError(t, err)
	assert.Empty(t, rec.ImageRef)
	assert.Equal(t, 0, images.count())
}

func TestWriter_Register_ValidationNoPartialWrite(t *testing.T) {
	tests := []struct {
		name  string
		input string
		vec   []float32
	}{
		{"empty name", "", testVector(1)},
		{"whitespace name", "   ", testVector(1)},
		{"short embedding", "Carol", make([]float32, 128)},
		{"long embedding", "Carol", make([]float32, embedding.Dim+1)},
		{"zero embedding", "Carol", make([]float32, embedding.Dim)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewMockStore()
			images := newFakeImages()
			w := gallery.NewWriter(store, images, nil)

			_, err := w.Register(context.Background(), tc.input, tc.vec, []byte("jpeg"))
			require.ErrorIs(t, err, gallery.ErrValidation)

			n, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Equal(t, 0, images.count(), "no image may be written for a rejected registration")
		})
	}
}

func TestWriter_Register_InsertFailureRollsBackImage(t *testing.T) {
	store := mock.NewMockStore()
	store.InsertError = gallery.ErrStorageUnavailable
	images := newFakeImages()
	w := gallery.NewWriter(store, images, nil)

	_, err := w.Register(context.Background(), "Dave", testVector(3), []byte("jpeg"))
	require.ErrorIs(t, err, gallery.ErrStorageUnavailable)
	assert.Equal(t, 0, images.count())
}

func TestWriter_Register_RollbackFailureLogsOrphan(t *testing.T) {
	store := mock.NewMockStore()
	store.InsertError = errors.New("disk full")
	images := newFakeImages()
	images.deleteErr = errors.New("permission denied")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	w := gallery.NewWriter(store, images, logger)

	_, err := w.Register(context.Background(), "Eve", testVector(4), []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, images.count())
	assert.Contains(t, logs.String(), "orphaned gallery image")
}

func TestWriter_Register_ImageSaveFailure(t *testing.T) {
	store := mock.NewMockStore()
	images := newFakeImages()
	images.saveErr = errors.New("bucket missing")
	w := gallery.NewWriter(store, images, nil)

	_, err := w.Register(context.Background(), "Frank", testVector(5), []byte("jpeg"))
	require.Error(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriter_Register_RollbackRunsOnCancelledContext(t *testing.T) {
	store := mock.NewMockStore()
	store.InsertError = context.Canceled
	images := newFakeImages()
	w := gallery.NewWriter(store, images, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Register(ctx, "Grace", testVector(6), []byte("jpeg"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, images.count())
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, gallery.ValidateName("Ann"))
	assert.ErrorIs(t, gallery.ValidateName(""), gallery.ErrValidation)
	assert.ErrorIs(t, gallery.ValidateName(string(make([]byte, gallery.MaxNameLength+1))), gallery.ErrValidation)
}
