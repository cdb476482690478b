package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/dashboard"
	"github.com/kozaktomas/roll-call/internal/database/mock"
	"github.com/kozaktomas/roll-call/internal/registry"
	"github.com/kozaktomas/roll-call/internal/storage"
	"github.com/kozaktomas/roll-call/internal/vision"
)

// fakeVision finds faces and matches references by image content.
type fakeVision struct {
	mu      sync.Mutex
	faces   map[string][]vision.DetectedFace
	matches map[string]bool // reference content + "|" + photo content
	block   chan struct{}   // when set, DetectFaces waits on it or ctx
}

func newFakeVision() *fakeVision {
	return &fakeVision{
		faces:   make(map[string][]vision.DetectedFace),
		matches: make(map[string]bool),
	}
}

func (f *fakeVision) DetectFaces(ctx context.Context, img []byte) ([]vision.DetectedFace, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faces[string(img)], nil
}

func (f *fakeVision) CompareFaces(ctx context.Context, source, target []byte, threshold float64) ([]vision.FaceMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.matches[string(source)+"|"+string(target)] {
		return []vision.FaceMatch{{Similarity: 99}}, nil
	}
	return nil, nil
}

var oneFace = []vision.DetectedFace{{Confidence: 99.9, BoundingBox: vision.BoundingBox{Width: 0.2, Height: 0.2}}}

// testEnv wires real services over a temporary directory store and fakes.
type testEnv struct {
	store      *storage.DirStore
	vision     *fakeVision
	sessions   *mock.MockSessionRepository
	students   *mock.MockStudentRepository
	attendance *attendance.Service
	registry   *registry.Service
	dashboard  *dashboard.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore() error: %v", err)
	}
	fv := newFakeVision()
	env := &testEnv{
		store:    store,
		vision:   fv,
		sessions: mock.NewMockSessionRepository(),
		students: mock.NewMockStudentRepository(),
	}
	env.attendance = attendance.NewService(store, attendance.NewResolver(fv, fv, store, nil), env.sessions, "reports/")
	env.registry = registry.NewService(store, nil, env.students, "students")
	env.dashboard = dashboard.NewService(store, "reports/")
	return env
}

// put stores an object or fails the test.
func (e *testEnv) put(t *testing.T, key string, data []byte) {
	t.Helper()
	if err := e.store.Put(context.Background(), key, data, ""); err != nil {
		t.Fatalf("Put(%s) error: %v", key, err)
	}
}

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

// multipartRequest builds a POST request with form fields and "files" parts.
// Files are added in name order.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(files[name]); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
