// Package imagestore keeps the reference image of each registered identity, either in a local
// directory or in a MinIO/S3 bucket.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-gallery/internal/imagefmt"
	"github.com/kozaktomas/face-gallery/internal/names"
)

var (
	// ErrNotFound is returned when a reference does not point to a stored image.
	ErrNotFound = errors.New("image not found")

	// ErrInvalidReference is returned for references that could escape the store.
	ErrInvalidReference = errors.New("invalid image reference")
)

// Store saves, opens and deletes images by opaque reference.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// objectName builds a unique "<slug>_<uuid><ext>" name. The extension comes from the sniffed
// format; unknown formats are stored without one.
func objectName(name string, data []byte) string {
	ext := ""
	if f, err := imagefmt.Detect(data); err == nil {
		ext = f.Ext
	}
	return fmt.Sprintf("%s_%s%s", names.Slug(name), uuid.NewString(), ext)
}
