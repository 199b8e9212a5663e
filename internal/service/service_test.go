package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/faceembed"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/gallery/mock"
	"github.com/kozaktomas/face-gallery/internal/imagestore"
	"github.com/kozaktomas/face-gallery/internal/logging"
	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/similarity"
)

// fakeEmbedder maps image bytes to a prepared face.
type fakeEmbedder struct {
	mu    sync.Mutex
	faces map[string]faceembed.Face
	calls atomic.Int32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{faces: make(map[string]faceembed.Face)}
}

func (f *fakeEmbedder) add(image []byte, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces[string(image)] = faceembed.Face{Embedding: vec, DetScore: 0.99, FacesCount: 1}
}

func (f *fakeEmbedder) Embed(ctx context.Context, image []byte) (faceembed.Face, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	face, ok := f.faces[string(image)]
	if !ok {
		return faceembed.Face{}, faceembed.ErrNoFaceDetected
	}
	return face, nil
}

// testImage returns a distinct valid PNG per seed.
func testImage(t *testing.T, seed int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, seed+1, 1))))
	return buf.Bytes()
}

func testVector(seed int) []float32 {
	vec := make([]float32, embedding.Dim)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed*97+i))) * 3
	}
	return vec
}

type fixture struct {
	svc      *Service
	store    *mock.MockStore
	embedder *fakeEmbedder
	images   *imagestore.LocalStore
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := mock.NewMockStore()
	embedder := newFakeEmbedder()
	images, err := imagestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	engine, err := similarity.NewEngine(similarity.Cosine)
	require.NoError(t, err)

	if opts.TopK == 0 {
		opts.TopK = 5
	}
	if opts.Threshold == 0 {
		opts.Threshold = 0.55
	}
	opts.Logger = logging.Discard()

	svc, err := New(store, embedder, images, engine, opts)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, embedder: embedder, images: images}
}

func TestRegister_StoresNormalizedEmbeddingAndImage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	img := testImage(t, 1)
	f.embedder.add(img, testVector(1))

	reg, err := f.svc.Register(ctx, "  Alice  ", img)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reg.ID)
	assert.Equal(t, "Alice", reg.Name)
	assert.NotEmpty(t, reg.ImageRef)
	assert.Equal(t, 0.99, reg.DetScore)

	records, err := f.store.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 1.0, embedding.Norm(records[0].Embedding), 1e-5)

	rc, summary, err := f.svc.OpenImage(ctx, reg.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "Alice", summary.Name)
}

func TestRegister_NoFaceLeavesGalleryUnchanged(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Bob", testImage(t, 2))
	assert.ErrorIs(t, err, faceembed.ErrNoFaceDetected)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRegister_ValidationBeforeEmbedding(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "   ", testImage(t, 1))
	assert.ErrorIs(t, err, gallery.ErrValidation)

	_, err = f.svc.Register(ctx, "Bob", []byte("definitely not an image"))
	assert.ErrorIs(t, err, gallery.ErrValidation)

	_, err = f.svc.Register(ctx, "Bob", nil)
	assert.ErrorIs(t, err, gallery.ErrValidation)

	assert.Zero(t, f.embedder.calls.Load())
}

func TestRegister_StoreFailureRollsBackImage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	img := testImage(t, 1)
	f.embedder.add(img, testVector(1))
	f.store.InsertError = fmt.Errorf("%w: disk full", gallery.ErrStorageUnavailable)

	_, err := f.svc.Register(ctx, "Alice", img)
	assert.ErrorIs(t, err, gallery.ErrStorageUnavailable)

	dir, err := readDir(f.images.Dir())
	require.NoError(t, err)
	assert.Empty(t, dir, "image must be removed when the insert fails")
}

func TestRecognize_IdentifiesRegisteredFace(t *testing.T) {
	f := newFixture(t, Options{RequireRegistered: true})
	ctx := context.Background()

	for i, name := range []string{"Alice", "Bob", "Carol"} {
		img := testImage(t, i+1)
		f.embedder.add(img, testVector(i+1))
		_, err := f.svc.Register(ctx, name, img)
		require.NoError(t, err)
	}

	probe := testImage(t, 10)
	f.embedder.add(probe, testVector(2))

	rec, err := f.svc.Recognize(ctx, probe, 0)
	require.NoError(t, err)
	require.NotNil(t, rec.BestMatch)
	assert.Equal(t, "Bob", rec.BestMatch.Name)
	assert.InDelta(t, 1.0, rec.BestMatch.Score, 1e-5)
	assert.Len(t, rec.Candidates, 3)
	assert.Equal(t, 3, rec.Scanned)
	assert.Equal(t, similarity.Cosine, rec.Convention)
	assert.Equal(t, 1, rec.FacesDetected)

	rec, err = f.svc.Recognize(ctx, probe, 1)
	require.NoError(t, err)
	assert.Len(t, rec.Candidates, 1)
}

func TestRecognize_NoMatchAboveThreshold(t *testing.T) {
	f := newFixture(t, Options{Threshold: 0.99})
	ctx := context.Background()

	img := testImage(t, 1)
	f.embedder.add(img, testVector(1))
	_, err := f.svc.Register(ctx, "Alice", img)
	require.NoError(t, err)

	probe := testImage(t, 2)
	f.embedder.add(probe, testVector(2))

	rec, err := f.svc.Recognize(ctx, probe, 0)
	require.NoError(t, err)
	assert.Nil(t, rec.BestMatch)
	require.Len(t, rec.Candidates, 1)
	assert.False(t, rec.Candidates[0].Accepted)
}

func TestRecognize_EmptyGallery(t *testing.T) {
	ctx := context.Background()
	probe := testImage(t, 1)

	strict := newFixture(t, Options{RequireRegistered: true})
	strict.embedder.add(probe, testVector(1))
	_, err := strict.svc.Recognize(ctx, probe, 0)
	assert.ErrorIs(t, err, matcher.ErrEmptyGallery)

	lenient := newFixture(t, Options{})
	lenient.embedder.add(probe, testVector(1))
	rec, err := lenient.svc.Recognize(ctx, probe, 0)
	require.NoError(t, err)
	assert.Nil(t, rec.BestMatch)
	assert.Empty(t, rec.Candidates)
}

func TestRecognize_NoFace(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Recognize(context.Background(), testImage(t, 1), 0)
	assert.ErrorIs(t, err, faceembed.ErrNoFaceDetected)
}

func TestListIdentities_Filter(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.AddRecord(gallery.IdentityRecord{Name: "Jiří Novák", Embedding: testVector(1)})
	f.store.AddRecord(gallery.IdentityRecord{Name: "Petr Svoboda", Embedding: testVector(2)})
	f.store.AddRecord(gallery.IdentityRecord{Name: "Jiří Dvořák", Embedding: testVector(3)})

	all, err := f.svc.ListIdentities(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	jiri, err := f.svc.ListIdentities(ctx, "jiri")
	require.NoError(t, err)
	require.Len(t, jiri, 2)
	assert.Equal(t, int64(1), jiri[0].ID)
	assert.Equal(t, int64(3), jiri[1].ID)

	none, err := f.svc.ListIdentities(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenImage_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.AddRecord(gallery.IdentityRecord{Name: "No Image", Embedding: testVector(1)})

	_, _, err := f.svc.OpenImage(ctx, 1)
	assert.ErrorIs(t, err, ErrNoImage)

	_, _, err = f.svc.OpenImage(ctx, 42)
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	f.store.AddRecord(gallery.IdentityRecord{Name: "Gone", Embedding: testVector(2), ImageRef: "gone_1.png"})
	_, _, err = f.svc.OpenImage(ctx, 2)
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
}

func TestRegister_Concurrent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	const k = 20

	imgs := make([][]byte, k)
	for i := range k {
		imgs[i] = testImage(t, i+1)
		f.embedder.add(imgs[i], testVector(i+1))
	}

	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := range k {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(ctx, fmt.Sprintf("person-%d", i), imgs[i])
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := f.svc.ListIdentities(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, k)
	seen := make(map[int64]bool)
	for _, identity := range list {
		assert.False(t, seen[identity.ID], "duplicate id %d", identity.ID)
		seen[identity.ID] = true
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	engine, err := similarity.NewEngine(similarity.Euclidean)
	require.NoError(t, err)
	store := mock.NewMockStore()

	_, err = New(store, newFakeEmbedder(), nil, engine, Options{TopK: 5, Threshold: -0.1})
	assert.ErrorIs(t, err, matcher.ErrInvalidThreshold)

	_, err = New(store, newFakeEmbedder(), nil, engine, Options{TopK: 0, Threshold: 0.8})
	assert.ErrorIs(t, err, matcher.ErrInvalidTopK)

	svc, err := New(store, newFakeEmbedder(), nil, engine, Options{TopK: 5, Threshold: 0.8})
	require.NoError(t, err)
	assert.Equal(t, similarity.Euclidean, svc.Convention())
}
