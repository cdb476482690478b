// Package storage keeps reference photos, reports and the student registry
// in an object store: S3 in production, a local directory for development.
package storage

import (
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Content types used for stored objects.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)
