package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/faceembed"
	"github.com/kozaktomas/face-gallery/internal/gallery/mock"
	"github.com/kozaktomas/face-gallery/internal/imagestore"
	"github.com/kozaktomas/face-gallery/internal/logging"
	"github.com/kozaktomas/face-gallery/internal/service"
	"github.com/kozaktomas/face-gallery/internal/similarity"
)

// fakeEmbedder returns prepared faces keyed by image bytes; unknown images have no face.
type fakeEmbedder struct {
	mu    sync.Mutex
	faces map[string][]float32
	err   error
}

func (f *fakeEmbedder) add(image []byte, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces[string(image)] = vec
}

func (f *fakeEmbedder) Embed(ctx context.Context, image []byte) (faceembed.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return faceembed.Face{}, f.err
	}
	vec, ok := f.faces[string(image)]
	if !ok {
		return faceembed.Face{}, faceembed.ErrNoFaceDetected
	}
	return faceembed.Face{Embedding: vec, DetScore: 0.9, FacesCount: 1}, nil
}

type testEnv struct {
	svc      *service.Service
	store    *mock.MockStore
	embedder *fakeEmbedder
}

// newTestEnv builds a real service over a mock store, a fake embedder and a temp image directory.
func newTestEnv(t *testing.T, requireRegistered bool) *testEnv {
	t.Helper()
	store := mock.NewMockStore()
	embedder := &fakeEmbedder{faces: make(map[string][]float32)}
	images, err := imagestore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create image store: %v", err)
	}
	engine, err := similarity.NewEngine(similarity.Cosine)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	svc, err := service.New(store, embedder, images, engine, service.Options{
		TopK:              5,
		Threshold:         0.55,
		RequireRegistered: requireRegistered,
		Logger:            logging.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return &testEnv{svc: svc, store: store, embedder: embedder}
}

// pngImage returns a distinct valid PNG per seed.
func pngImage(t *testing.T, seed int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, seed+1, 2))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func faceVector(seed int) []float32 {
	vec := make([]float32, embedding.Dim)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed*97 + i)))
	}
	return vec
}

// multipartRequest builds a multipart POST with the given text fields and an optional "file" part.
func multipartRequest(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "face.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(file)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
