package handlers

import (
	"log/slog"
	"net/http"
)

// RecognizeHandler answers "who is this?" for an uploaded image.
type RecognizeHandler struct {
	svc    GalleryService
	logger *slog.Logger
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(svc GalleryService, logger *slog.Logger) *RecognizeHandler {
	return &RecognizeHandler{svc: svc, logger: logger}
}

// Recognize takes a multipart "file" and an optional "top_k" (form field or query parameter).
// A face that matches nobody is a 200 with a null best_match.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	image, err := readImageUpload(w, r)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	topK, err := parseTopK(r.FormValue("top_k"))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	result, err := h.svc.Recognize(r.Context(), image, topK)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
