// Package service wires embedding extraction, the gallery writer and the matcher into the
// three operations the API and the CLI expose: register, recognize and list.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-gallery/internal/faceembed"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/imagefmt"
	"github.com/kozaktomas/face-gallery/internal/imagestore"
	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/names"
	"github.com/kozaktomas/face-gallery/internal/similarity"
)

// ErrNoImage is returned by OpenImage when the identity has no stored image.
var ErrNoImage = errors.New("identity has no stored image")

// Embedder extracts one face embedding from an encoded image.
type Embedder interface {
	Embed(ctx context.Context, image []byte) (faceembed.Face, error)
}

// Options configures matching defaults.
type Options struct {
	// TopK is used when Recognize is called with topK <= 0.
	TopK int
	// Threshold is the acceptance threshold on the engine's scale.
	Threshold float64
	// RequireRegistered makes Recognize fail with matcher.ErrEmptyGallery on an empty gallery.
	RequireRegistered bool
	Logger            *slog.Logger
}

// Registration is the outcome of a successful Register call.
type Registration struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageRef  string    `json:"image_reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	DetScore  float64   `json:"det_score"`
}

// Recognition is the outcome of a Recognize call. BestMatch is nil when nobody passed the threshold.
type Recognition struct {
	BestMatch     *matcher.Candidate    `json:"best_match"`
	Candidates    []matcher.Candidate   `json:"candidates"`
	Convention    similarity.Convention `json:"convention"`
	Threshold     float64               `json:"threshold"`
	Scanned       int                   `json:"scanned"`
	FacesDetected int                   `json:"faces_detected"`
}

// Service is safe for concurrent use; all state lives in its collaborators.
type Service struct {
	store    gallery.Store
	embedder Embedder
	images   imagestore.Store
	writer   *gallery.Writer
	matcher  *matcher.Matcher
	opts     Options
	logger   *slog.Logger
}

// New builds a service. images may be nil, in which case registrations keep no image.
func New(store gallery.Store, embedder Embedder, images imagestore.Store, engine *similarity.Engine, opts Options) (*Service, error) {
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: default top_k %d", matcher.ErrInvalidTopK, opts.TopK)
	}
	if !engine.ValidThreshold(opts.Threshold) {
		return nil, fmt.Errorf("%w: %v for %s", matcher.ErrInvalidThreshold, opts.Threshold, engine.Convention())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var matcherOpts []matcher.Option
	if opts.RequireRegistered {
		matcherOpts = append(matcherOpts, matcher.WithRequireNonEmpty())
	}

	var writerImages gallery.ImageStore
	if images != nil {
		writerImages = images
	}

	return &Service{
		store:    store,
		embedder: embedder,
		images:   images,
		writer:   gallery.NewWriter(store, writerImages, logger),
		matcher:  matcher.New(store, engine, matcherOpts...),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Convention returns the similarity convention results are reported in.
func (s *Service) Convention() similarity.Convention {
	return s.matcher.Engine().Convention()
}

// Register extracts the face embedding from image and appends a new identity under name.
func (s *Service) Register(ctx context.Context, name string, image []byte) (*Registration, error) {
	if err := gallery.ValidateName(name); err != nil {
		return nil, err
	}
	if err := checkImage(image); err != nil {
		return nil, err
	}

	face, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embedding face: %w", err)
	}

	record, err := s.writer.Register(ctx, name, face.Embedding, image)
	if err != nil {
		return nil, err
	}

	return &Registration{
		ID:        record.ID,
		Name:      record.Name,
		ImageRef:  record.ImageRef,
		CreatedAt: record.CreatedAt,
		DetScore:  face.DetScore,
	}, nil
}

// Recognize extracts the face embedding from image and ranks the gallery against it.
// topK <= 0 uses the configured default.
func (s *Service) Recognize(ctx context.Context, image []byte, topK int) (*Recognition, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	if err := checkImage(image); err != nil {
		return nil, err
	}

	face, err := s.embedder.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embedding face: %w", err)
	}

	result, err := s.matcher.Match(ctx, face.Embedding, topK, s.opts.Threshold)
	if err != nil {
		return nil, err
	}

	rec := &Recognition{
		BestMatch:     result.Best,
		Candidates:    result.Candidates,
		Convention:    result.Convention,
		Threshold:     result.Threshold,
		Scanned:       result.Scanned,
		FacesDetected: face.FacesCount,
	}
	if rec.BestMatch != nil {
		s.logger.Debug("face recognized", "id", rec.BestMatch.ID, "name", rec.BestMatch.Name, "score", rec.BestMatch.Score)
	} else {
		s.logger.Debug("no match above threshold", "candidates", len(rec.Candidates), "threshold", rec.Threshold)
	}
	return rec, nil
}

// ListIdentities returns every identity in id order, optionally filtered by a
// diacritics-insensitive name substring.
func (s *Service) ListIdentities(ctx context.Context, nameFilter string) ([]gallery.IdentitySummary, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	if nameFilter == "" {
		return all, nil
	}

	filtered := make([]gallery.IdentitySummary, 0, len(all))
	for _, identity := range all {
		if names.Matches(identity.Name, nameFilter) {
			filtered = append(filtered, identity)
		}
	}
	return filtered, nil
}

// GetIdentity returns one identity, or gallery.ErrNotFound.
func (s *Service) GetIdentity(ctx context.Context, id int64) (*gallery.IdentitySummary, error) {
	return s.store.Get(ctx, id)
}

// Count returns the number of registered identities.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// OpenImage opens the stored reference image of an identity. The caller closes the reader.
func (s *Service) OpenImage(ctx context.Context, id int64) (io.ReadCloser, *gallery.IdentitySummary, error) {
	identity, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if identity.ImageRef == "" || s.images == nil {
		return nil, nil, ErrNoImage
	}
	rc, err := s.images.Open(ctx, identity.ImageRef)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image for identity %d: %w", id, err)
	}
	return rc, identity, nil
}

// checkImage rejects empty uploads and data that is not a recognized image container.
func checkImage(image []byte) error {
	if _, err := imagefmt.Detect(image); err != nil {
		return fmt.Errorf("%w: %w", gallery.ErrValidation, err)
	}
	return nil
}
