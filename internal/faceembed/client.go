// Package faceembed talks to the face embedding server: one image in, one face embedding out.
package faceembed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/imagefmt"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	facePath            = "/embed/face"
	defaultTimeout      = 60 * time.Second
)

var (
	// ErrNoFaceDetected is returned when the server found no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrUnavailable is returned when the embedding server cannot be reached or fails.
	ErrUnavailable = errors.New("embedding server unavailable")

	// ErrDimensionMismatch is returned when the server's embedding has the wrong length.
	ErrDimensionMismatch = embedding.ErrDimensionMismatch
)

// Face is the embedding of the most confident face in an image.
type Face struct {
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2]
	DetScore  float64
	Model     string
	// FacesCount is how many faces the server detected in total.
	FacesCount int
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new embedding client. An empty baseURL uses http://localhost:8000.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// Embed detects faces in image and returns the embedding of the highest-scoring one.
func (c *Client) Embed(ctx context.Context, image []byte) (Face, error) {
	if len(image) == 0 {
		return Face{}, fmt.Errorf("%w: empty image", imagefmt.ErrUnsupportedFormat)
	}

	body, err := c.postMultipartImage(ctx, facePath, image)
	if err != nil {
		return Face{}, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Face{}, fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}

	if resp.FacesCount == 0 || len(resp.Faces) == 0 {
		return Face{}, ErrNoFaceDetected
	}

	best := resp.Faces[0]
	for _, f := range resp.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}

	if len(best.Embedding) != embedding.Dim {
		return Face{}, fmt.Errorf("%w: server returned %d values, want %d", ErrDimensionMismatch, len(best.Embedding), embedding.Dim)
	}

	return Face{
		Embedding:  best.Embedding,
		BBox:       best.BBox,
		DetScore:   best.DetScore,
		Model:      resp.Model,
		FacesCount: max(resp.FacesCount, len(resp.Faces)),
	}, nil
}

// postMultipartImage posts the image as the "file" form part with its sniffed Content-Type.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", imagefmt.MIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
