package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-gallery/internal/similarity"
)

// HealthHandler reports liveness and whether the gallery store is reachable.
type HealthHandler struct {
	svc        GalleryService
	convention similarity.Convention
	logger     *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc GalleryService, convention similarity.Convention, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, convention: convention, logger: logger}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status     string                `json:"status"`
	Identities int                   `json:"identities"`
	Convention similarity.Convention `json:"convention"`
}

// Check handles the health check endpoint.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.Count(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Identities: count,
		Convention: h.convention,
	})
}
