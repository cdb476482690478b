package attendance

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/roll-call/internal/storage"
	"github.com/kozaktomas/roll-call/internal/vision"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
	listErr error
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), gets: make(map[string]int)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets[key]++
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) URL(key string) string {
	return "mem://" + key
}

// fakeVision detects faces and compares them by image content.
type fakeVision struct {
	faces     map[string][]vision.DetectedFace // photo content -> faces
	detectErr map[string]error                 // photo content -> error
	matches   map[string]bool                  // reference content + "|" + photo content
	cmpErr    map[string]error                 // reference content -> error

	detectCalls  int
	compareCalls int
	thresholds   []float64
}

func newFakeVision() *fakeVision {
	return &fakeVision{
		faces:     make(map[string][]vision.DetectedFace),
		detectErr: make(map[string]error),
		matches:   make(map[string]bool),
		cmpErr:    make(map[string]error),
	}
}

func (f *fakeVision) DetectFaces(ctx context.Context, img []byte) ([]vision.DetectedFace, error) {
	f.detectCalls++
	if err := f.detectErr[string(img)]; err != nil {
		return nil, err
	}
	return f.faces[string(img)], nil
}

func (f *fakeVision) CompareFaces(ctx context.Context, source, target []byte, threshold float64) ([]vision.FaceMatch, error) {
	f.compareCalls++
	f.thresholds = append(f.thresholds, threshold)
	if err := f.cmpErr[string(source)]; err != nil {
		return nil, err
	}
	if f.matches[string(source)+"|"+string(target)] {
		return []vision.FaceMatch{{Similarity: 99}}, nil
	}
	return nil, nil
}

// oneFace is a single face covering 4% of the photo.
var oneFace = []vision.DetectedFace{{Confidence: 99.9, BoundingBox: vision.BoundingBox{Width: 0.2, Height: 0.2}}}

// smallFaces cover 0.5% of the photo.
var smallFaces = []vision.DetectedFace{{Confidence: 95, BoundingBox: vision.BoundingBox{Width: 0.05, Height: 0.1}}}

// grayPNG encodes a small uniform image; distinct levels give distinct bytes.
func grayPNG(t *testing.T, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error)                  { return 0, errors.New("disk gone") }
func (failingReader) Seek(offset int64, whence int) (int64, error) { return 0, nil }
