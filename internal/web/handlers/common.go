package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/service"
)

// GalleryService is the subset of service.Service the handlers use.
type GalleryService interface {
	Register(ctx context.Context, name string, image []byte) (*service.Registration, error)
	Recognize(ctx context.Context, image []byte, topK int) (*service.Recognition, error)
	ListIdentities(ctx context.Context, nameFilter string) ([]gallery.IdentitySummary, error)
	GetIdentity(ctx context.Context, id int64) (*gallery.IdentitySummary, error)
	OpenImage(ctx context.Context, id int64) (io.ReadCloser, *gallery.IdentitySummary, error)
	Count(ctx context.Context) (int, error)
}

var _ GalleryService = (*service.Service)(nil)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
