// Package vision holds the face data shared by the detection backends and
// the attendance pipeline.
package vision

import "errors"

// ErrIndexingUnsupported is returned by backends that cannot keep a face collection.
var ErrIndexingUnsupported = errors.New("face indexing not supported by this backend")

// BoundingBox is a face rectangle in fractions (0-1) of the frame.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the fraction of the frame covered by the box.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// DetectedFace is a single face found in an image.
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"` // 0-100
}

// FaceMatch is a face in the target image that matched the source face.
type FaceMatch struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Similarity  float64     `json:"similarity"` // 0-100
}
