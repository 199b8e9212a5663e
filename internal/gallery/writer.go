package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/embedding"
)

// ImageStore persists the source image of a registration.
type ImageStore interface {
	// Save stores data and returns an opaque reference.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Delete removes a previously saved image.
	Delete(ctx context.Context, ref string) error
}

// Writer registers new identities: it validates, stores the image, then inserts the record.
//
// If the insert fails after the image was saved, the image is deleted again. When that
// delete also fails the image is logged as an orphan for out-of-band cleanup and the
// insert error is returned.
type Writer struct {
	store  Store
	images ImageStore
	logger *slog.Logger
}

// NewWriter creates a writer. images may be nil, in which case no image is kept.
func NewWriter(store Store, images ImageStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, images: images, logger: logger}
}

// Register validates and appends a new identity.
func (w *Writer) Register(ctx context.Context, name string, vec []float32, image []byte) (IdentityRecord, error) {
	name = strings.TrimSpace(name)
	if err := ValidateNew(NewIdentity{Name: name, Embedding: vec}); err != nil {
		return IdentityRecord{}, err
	}

	normalized, err := embedding.Normalize(vec)
	if err != nil {
		return IdentityRecord{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var ref string
	if len(image) > 0 && w.images != nil {
		ref, err = w.images.Save(ctx, name, image)
		if err != nil {
			return IdentityRecord{}, fmt.Errorf("saving image: %w", err)
		}
	}

	record, err := w.store.Insert(ctx, NewIdentity{
		Name:      name,
		Embedding: normalized,
		ImageRef:  ref,
	})
	if err != nil {
		if ref != "" {
			w.rollbackImage(ctx, ref)
		}
		return IdentityRecord{}, fmt.Errorf("inserting identity: %w", err)
	}

	w.logger.Info("identity registered", "id", record.ID, "name", record.Name, "image_ref", record.ImageRef)
	return record, nil
}

func (w *Writer) rollbackImage(ctx context.Context, ref string) {
	// The request context may already be cancelled; the cleanup still has to run.
	if err := w.images.Delete(context.WithoutCancel(ctx), ref); err != nil {
		w.logger.Error("orphaned gallery image", "image_ref", ref, "error", err)
		return
	}
	w.logger.Debug("rolled back gallery image", "image_ref", ref)
}
