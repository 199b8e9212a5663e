// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// MaxTopK bounds the number of candidates a single recognition may return
	MaxTopK = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxMultipartMemory is how much of a multipart form is buffered in memory before spilling to disk
	MaxMultipartMemory = 8 << 20
)

// Processing constants
const (
	// DefaultImportWorkers is the default number of parallel registrations during import
	DefaultImportWorkers = 4
)

// Server constants
const (
	// RequestTimeout bounds a single API request, including the embedding round trip
	RequestTimeout = 2 * time.Minute

	// ShutdownTimeout is how long in-flight requests get on shutdown
	ShutdownTimeout = 30 * time.Second
)
