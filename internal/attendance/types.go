// Package attendance resolves who attended a class from group photos.
package attendance

import (
	"context"

	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/quality"
	"github.com/kozaktomas/roll-call/internal/vision"
)

// DefaultThreshold is the minimum similarity (0-100) for a face match.
const DefaultThreshold = 80.0

// FaceDetector finds faces in an image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, image []byte) ([]vision.DetectedFace, error)
}

// FaceComparer finds faces in target that match the face in source.
type FaceComparer interface {
	CompareFaces(ctx context.Context, source, target []byte, threshold float64) ([]vision.FaceMatch, error)
}

// FaceIndexer adds a stored reference image to a face collection.
type FaceIndexer interface {
	IndexFace(ctx context.Context, collectionID, key, externalID string) error
}

// ObjectReader reads reference images and enumerates keys.
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectStore is an ObjectReader that can also store objects.
type ObjectStore interface {
	ObjectReader
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(key string) string
}

// RosterEntry is one reference image of an enrolled student.
type RosterEntry struct {
	identity.StudentIdentity
	SourceKey string `json:"source_key"`
}

// NewRoster parses roster keys into entries, preserving order.
func NewRoster(keys []string) []RosterEntry {
	roster := make([]RosterEntry, 0, len(keys))
	for _, k := range keys {
		roster = append(roster, RosterEntry{StudentIdentity: identity.Parse(k), SourceKey: k})
	}
	return roster
}

// Result is the outcome of resolving attendance for one set of photos.
// Every roster student appears in exactly one of Present or Absent.
type Result struct {
	Present        []identity.StudentIdentity `json:"present"`
	Absent         []identity.StudentIdentity `json:"absent"`
	QualityReports []quality.Report           `json:"quality_reports"`
}

// Progress phases. Every photo reports PhaseAssessing, then PhaseMatching once it
// was compared against the roster or PhaseSkipped when it had no usable faces.
const (
	PhaseAssessing = "assessing"
	PhaseMatching  = "matching"
	PhaseSkipped   = "skipped"
)

// ProgressInfo contains progress information for callbacks.
type ProgressInfo struct {
	Phase   string // PhaseAssessing, PhaseMatching or PhaseSkipped
	Current int    // 1-based photo index
	Total   int    // number of photos
	Present int    // students matched so far
	Message string
}

// Done reports whether the photo at Current is finished.
func (p ProgressInfo) Done() bool {
	return p.Phase == PhaseMatching || p.Phase == PhaseSkipped
}
