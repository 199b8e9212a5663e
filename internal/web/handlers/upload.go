package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// readImageUpload parses a multipart form and returns the bytes of its "file" part.
func readImageUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: upload exceeds %d bytes", gallery.ErrValidation, constants.MaxUploadSize)
		}
		return nil, fmt.Errorf("%w: failed to parse multipart form", gallery.ErrValidation)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", gallery.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file", gallery.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", gallery.ErrValidation)
	}
	return data, nil
}

// parseTopK reads an optional positive top_k no larger than constants.MaxTopK. 0 means unset.
func parseTopK(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > constants.MaxTopK {
		return 0, fmt.Errorf("%w: top_k must be between 1 and %d", gallery.ErrValidation, constants.MaxTopK)
	}
	return n, nil
}
