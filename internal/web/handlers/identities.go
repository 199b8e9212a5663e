package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/imagefmt"
)

// IdentitiesHandler handles registration and listing of gallery identities.
type IdentitiesHandler struct {
	svc    GalleryService
	logger *slog.Logger
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(svc GalleryService, logger *slog.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{svc: svc, logger: logger}
}

// IdentitiesResponse wraps a listing.
type IdentitiesResponse struct {
	Identities []gallery.IdentitySummary `json:"identities"`
	Count      int                       `json:"count"`
}

// Create registers a new identity from a multipart form with "name" and "file".
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	image, err := readImageUpload(w, r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	reg, err := h.svc.Register(r.Context(), r.FormValue("name"), image)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/identities/%d", reg.ID))
	respondJSON(w, http.StatusCreated, reg)
}

// List returns all identities, optionally filtered by ?name=.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.svc.ListIdentities(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{Identities: identities, Count: len(identities)})
}

// Get returns a single identity.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	identity, err := h.svc.GetIdentity(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, identity)
}

// Image streams the stored reference image of an identity.
func (h *IdentitiesHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rc, identity, err := h.svc.OpenImage(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if f, ok := imagefmt.ByExtension(filepath.Ext(identity.ImageRef)); ok {
		contentType = f.MIME
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "streaming image failed", "id", id, "error", err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "invalid identity id")
		return 0, false
	}
	return id, true
}
