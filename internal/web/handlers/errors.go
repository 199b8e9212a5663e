package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-gallery/internal/faceembed"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/imagestore"
	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/service"
)

const errInternal = "internal server error"

// statusForError maps service errors to HTTP status codes. A missing match is not an error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, faceembed.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gallery.ErrValidation),
		errors.Is(err, matcher.ErrInvalidTopK),
		errors.Is(err, matcher.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, matcher.ErrEmptyGallery):
		return http.StatusConflict
	case errors.Is(err, gallery.ErrNotFound),
		errors.Is(err, service.ErrNoImage),
		errors.Is(err, imagestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gallery.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, faceembed.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the mapped status. Server-side failures are logged and
// reported without detail.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", sanitizeForLog(r.URL.Path),
			"status", status,
			"error", err,
		)
	}
	switch status {
	case http.StatusInternalServerError:
		respondError(w, status, errInternal)
	case http.StatusServiceUnavailable:
		respondError(w, status, "gallery storage unavailable")
	case http.StatusBadGateway:
		respondError(w, status, "embedding server unavailable")
	default:
		respondError(w, status, err.Error())
	}
}
