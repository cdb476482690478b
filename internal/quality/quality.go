// Package quality scores how usable a classroom photo is for face matching.
package quality

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/kozaktomas/roll-call/internal/vision"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Lighting is the brightness verdict for a photo.
type Lighting string

const (
	LightingGood      Lighting = "Good"
	LightingTooDark   Lighting = "TooDark"
	LightingTooBright Lighting = "TooBright"
)

// Messages surfaced to users.
const (
	ErrCouldNotDecode   = "Could not decode image"
	ErrNoFacesDetected  = "No faces detected"
	SuggestMoreLight    = "Increase lighting or turn on flash."
	SuggestLessLight    = "Reduce exposure or avoid direct backlight."
	SuggestMoveCloser   = "Faces are too small or far away. Move closer."
	detectionFailedText = "Face detection failed: "
)

// Thresholds control the verdicts produced by an Assessor.
type Thresholds struct {
	Blur        float64 `yaml:"blur" json:"blur"`                 // Laplacian variance below this is blurry
	Dark        float64 `yaml:"dark" json:"dark"`                 // mean intensity below this is too dark
	Bright      float64 `yaml:"bright" json:"bright"`             // mean intensity above this is too bright
	MinCoverage float64 `yaml:"min_coverage" json:"min_coverage"` // face coverage percentage below this asks to move closer
}

// DefaultThresholds are the values used by Assess.
var DefaultThresholds = Thresholds{
	Blur:        100.0,
	Dark:        60.0,
	Bright:      220.0,
	MinCoverage: 1.0,
}

// Report describes one submitted photo. Face fields stay zero until ApplyFaces is called.
type Report struct {
	ImageIndex        int      `json:"image_index"`
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	Resolution        string   `json:"resolution,omitempty"`
	BlurScore         float64  `json:"blur_score"`
	IsBlurry          bool     `json:"is_blurry"`
	Brightness        float64  `json:"brightness"`
	LightingStatus    Lighting `json:"lighting_status,omitempty"`
	Contrast          float64  `json:"contrast"`
	Suggestion        string   `json:"suggestion"`
	FaceDetected      bool     `json:"face_detected"`
	FaceCount         int      `json:"face_count"`
	AvgFaceConfidence float64  `json:"avg_face_confidence"`
	FaceCoveragePct   float64  `json:"face_coverage_pct"`
	Error             string   `json:"error,omitempty"`
}

// Usable reports whether the photo decoded and contained at least one face.
func (r *Report) Usable() bool {
	return r.Error == "" && r.FaceDetected
}

// AppendSuggestion adds remediation text after any existing suggestion.
func (r *Report) AppendSuggestion(s string) {
	if r.Suggestion == "" {
		r.Suggestion = s
		return
	}
	r.Suggestion = strings.TrimRight(r.Suggestion, " ") + " " + s
}

// ApplyFaces merges detection results into the report.
// Zero faces marks the photo as faceless; otherwise count, confidence and coverage
// are filled in and a move-closer suggestion is appended when coverage is below minCoverage.
func (r *Report) ApplyFaces(faces []vision.DetectedFace, minCoverage float64) {
	if len(faces) == 0 {
		r.FaceDetected = false
		r.FaceCount = 0
		r.AvgFaceConfidence = 0
		r.FaceCoveragePct = 0
		r.Error = ErrNoFacesDetected
		return
	}

	coverage := vision.Coverage(faces)
	r.FaceDetected = true
	r.FaceCount = len(faces)
	r.AvgFaceConfidence = round2(vision.AverageConfidence(faces))
	r.FaceCoveragePct = round2(coverage)

	if coverage < minCoverage {
		r.AppendSuggestion(SuggestMoveCloser)
	}
}

// DetectionFailed records a detection error on the report.
func (r *Report) DetectionFailed(err error) {
	r.Error = detectionFailedText + err.Error()
}

// Assessor computes quality reports using a fixed set of thresholds.
type Assessor struct {
	Thresholds Thresholds
}

// NewAssessor creates an assessor, falling back to DefaultThresholds for unset values.
func NewAssessor(t Thresholds) *Assessor {
	if t.Blur <= 0 {
		t.Blur = DefaultThresholds.Blur
	}
	if t.Dark <= 0 {
		t.Dark = DefaultThresholds.Dark
	}
	if t.Bright <= 0 {
		t.Bright = DefaultThresholds.Bright
	}
	if t.MinCoverage <= 0 {
		t.MinCoverage = DefaultThresholds.MinCoverage
	}
	return &Assessor{Thresholds: t}
}

// Assess scores an encoded image with DefaultThresholds.
func Assess(imageData []byte) Report {
	return NewAssessor(DefaultThresholds).Assess(imageData)
}

// Assess decodes the image and computes blur, brightness and contrast.
// An undecodable image yields a report carrying only ErrCouldNotDecode.
func (a *Assessor) Assess(imageData []byte) Report {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Report{Error: ErrCouldNotDecode}
	}

	gray := toGray(img)
	bounds := gray.Bounds()
	brightness, contrast := meanStdDev(gray)
	blur := laplacianVariance(gray)

	r := Report{
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Resolution:     fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		BlurScore:      round2(blur),
		IsBlurry:       blur < a.Thresholds.Blur,
		Brightness:     round2(brightness),
		LightingStatus: LightingGood,
		Contrast:       round2(contrast),
	}

	switch {
	case brightness < a.Thresholds.Dark:
		r.LightingStatus = LightingTooDark
		r.Suggestion = SuggestMoreLight
	case brightness > a.Thresholds.Bright:
		r.LightingStatus = LightingTooBright
		r.Suggestion = SuggestLessLight
	}

	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
