package gallery

import "errors"

var (
	// ErrValidation is returned when a name or embedding is rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable is returned when the durable medium cannot be opened or reached.
	ErrStorageUnavailable = errors.New("gallery storage unavailable")

	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("identity not found")
)
