// Package embedding implements face detection and comparison on top of a
// self-hosted face embedding server (InsightFace behind /embed/face).
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/roll-call/internal/vision"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	client  *http.Client

	// Last embedded photo, reused while one photo is compared against a roster.
	mu   sync.Mutex
	last *embeddedPhoto
}

type embeddedPhoto struct {
	sum    [sha256.Size]byte
	width  int
	height int
	resp   *FaceResponse
}

// New creates a new embedding client.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// FaceDetection represents a single detected face.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as a multipart form to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", http.DetectContentType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// embedPhoto returns the embeddings of a group photo, served from the cache when
// the same bytes were embedded last.
func (c *Client) embedPhoto(ctx context.Context, image []byte) (*embeddedPhoto, error) {
	sum := sha256.Sum256(image)
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last != nil && last.sum == sum {
		return last, nil
	}

	width, height, err := vision.Dimensions(image)
	if err != nil {
		return nil, err
	}
	resp, err := c.ComputeFaceEmbeddings(ctx, image)
	if err != nil {
		return nil, err
	}

	photo := &embeddedPhoto{sum: sum, width: width, height: height, resp: resp}
	c.mu.Lock()
	c.last = photo
	c.mu.Unlock()
	return photo, nil
}

// DetectFaces returns the faces found by the embedding server with relative boxes.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]vision.DetectedFace, error) {
	photo, err := c.embedPhoto(ctx, image)
	if err != nil {
		return nil, err
	}

	faces := make([]vision.DetectedFace, 0, len(photo.resp.Faces))
	for _, f := range photo.resp.Faces {
		faces = append(faces, vision.DetectedFace{
			BoundingBox: vision.BoxFromPixels(f.BBox, photo.width, photo.height),
			Confidence:  math.Min(f.DetScore*100, 100),
		})
	}
	return faces, nil
}

// CompareFaces matches the most confident face of source against every face in target.
// Similarity is the cosine similarity of the embeddings scaled to 0-100.
// The target's embeddings are reused across calls while the target stays the same.
func (c *Client) CompareFaces(ctx context.Context, source, target []byte, threshold float64) ([]vision.FaceMatch, error) {
	src, err := c.ComputeFaceEmbeddings(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("source image: %w", err)
	}
	ref, ok := bestFace(src.Faces)
	if !ok {
		return nil, fmt.Errorf("source image: %w", errNoSourceFace)
	}

	dst, err := c.embedPhoto(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("target image: %w", err)
	}

	var matches []vision.FaceMatch
	for _, f := range dst.resp.Faces {
		similarity := max(CosineSimilarity(ref.Embedding, f.Embedding), 0) * 100
		if similarity >= threshold {
			matches = append(matches, vision.FaceMatch{
				BoundingBox: vision.BoxFromPixels(f.BBox, dst.width, dst.height),
				Similarity:  similarity,
			})
		}
	}
	return matches, nil
}

// IndexFace is not available: the embedding server keeps no collections.
func (c *Client) IndexFace(ctx context.Context, collectionID, key, externalID string) error {
	return vision.ErrIndexingUnsupported
}

var errNoSourceFace = errors.New("no face in reference image")

func bestFace(faces []FaceDetection) (FaceDetection, bool) {
	if len(faces) == 0 {
		return FaceDetection{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	return best, true
}

// CosineSimilarity computes the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
