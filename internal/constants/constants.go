// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Registration constants
const (
	// MaxReferenceImageSize is the maximum size of a registered reference photo (5MB)
	MaxReferenceImageSize = 5 << 20

	// MaxImageSize is the maximum dimension (width or height) for images sent to face backends
	MaxImageSize = 1920
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart request size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxPhotosPerRequest is the maximum number of classroom photos in one attendance run
	MaxPhotosPerRequest = 20
)

// Dashboard constants
const (
	// DefaultSessionListLimit is the default number of sessions returned by list endpoints
	DefaultSessionListLimit = 50

	// PercentageDecimals is the number of decimals kept in attendance percentages
	PercentageDecimals = 1
)

// Job constants
const (
	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100

	// JobRetention is how long finished attendance jobs stay queryable
	JobRetention = 30 * time.Minute
)
