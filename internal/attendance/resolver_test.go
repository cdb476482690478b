package attendance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/quality"
	"github.com/kozaktomas/roll-call/internal/vision"
)

func TestResolve_PresentAndAbsent(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	store.objects["CS/2_Bob.jpg"] = []byte("ref-bob")

	classPhoto := grayPNG(t, 128)
	emptyRoom := grayPNG(t, 129)

	fv := newFakeVision()
	fv.faces[string(classPhoto)] = oneFace
	fv.matches["ref-alice|"+string(classPhoto)] = true

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(),
		[]string{"CS/1_Alice.jpg", "CS/2_Bob.jpg"},
		[]io.ReadSeeker{bytes.NewReader(classPhoto), bytes.NewReader(emptyRoom)},
		80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	wantPresent := []identity.StudentIdentity{{StudentID: "1", DisplayName: "Alice"}}
	wantAbsent := []identity.StudentIdentity{{StudentID: "2", DisplayName: "Bob"}}
	if len(result.Present) != 1 || result.Present[0] != wantPresent[0] {
		t.Errorf("Present = %+v, want %+v", result.Present, wantPresent)
	}
	if len(result.Absent) != 1 || result.Absent[0] != wantAbsent[0] {
		t.Errorf("Absent = %+v, want %+v", result.Absent, wantAbsent)
	}

	if len(result.QualityReports) != 2 {
		t.Fatalf("expected 2 quality reports, got %d", len(result.QualityReports))
	}
	first, second := result.QualityReports[0], result.QualityReports[1]
	if first.ImageIndex != 1 || !first.FaceDetected || first.FaceCount != 1 || first.Error != "" {
		t.Errorf("unexpected first report %+v", first)
	}
	if first.FaceCoveragePct != 4 {
		t.Errorf("FaceCoveragePct = %v, want 4", first.FaceCoveragePct)
	}
	if second.ImageIndex != 2 || second.FaceDetected || second.Error != quality.ErrNoFacesDetected {
		t.Errorf("unexpected second report %+v", second)
	}

	// Only the photo with faces is compared against both references.
	if fv.compareCalls != 2 {
		t.Errorf("expected 2 comparisons, got %d", fv.compareCalls)
	}
}

func TestResolve_TwoFacesOnlyAliceMatches(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	store.objects["CS/2_Bob.jpg"] = []byte("ref-bob")

	classPhoto := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(classPhoto)] = []vision.DetectedFace{
		{Confidence: 99.0, BoundingBox: vision.BoundingBox{Width: 0.2, Height: 0.2}},
		{Confidence: 97.0, BoundingBox: vision.BoundingBox{X: 0.5, Width: 0.2, Height: 0.2}},
	}
	fv.matches["ref-alice|"+string(classPhoto)] = true

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(),
		[]string{"CS/1_Alice.jpg", "CS/2_Bob.jpg"},
		[]io.ReadSeeker{bytes.NewReader(classPhoto)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	wantPresent := []identity.StudentIdentity{{StudentID: "1", DisplayName: "Alice"}}
	wantAbsent := []identity.StudentIdentity{{StudentID: "2", DisplayName: "Bob"}}
	if !reflect.DeepEqual(result.Present, wantPresent) {
		t.Errorf("Present = %+v, want %+v", result.Present, wantPresent)
	}
	if !reflect.DeepEqual(result.Absent, wantAbsent) {
		t.Errorf("Absent = %+v, want %+v", result.Absent, wantAbsent)
	}

	if len(result.QualityReports) != 1 {
		t.Fatalf("expected 1 quality report, got %d", len(result.QualityReports))
	}
	report := result.QualityReports[0]
	if report.FaceCount != 2 {
		t.Errorf("FaceCount = %d, want 2", report.FaceCount)
	}
	if report.AvgFaceConfidence != 98 {
		t.Errorf("AvgFaceConfidence = %v, want 98", report.AvgFaceConfidence)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	store.objects["CS/2_Bob.jpg"] = []byte("ref-bob")
	store.objects["CS/3_Carol.jpg"] = []byte("ref-carol")

	first := grayPNG(t, 128)
	second := grayPNG(t, 140)
	faceless := grayPNG(t, 150)

	fv := newFakeVision()
	fv.faces[string(first)] = oneFace
	fv.faces[string(second)] = oneFace
	fv.matches["ref-carol|"+string(first)] = true
	fv.matches["ref-alice|"+string(second)] = true

	r := NewResolver(fv, fv, store, nil)
	keys := []string{"CS/1_Alice.jpg", "CS/2_Bob.jpg", "CS/3_Carol.jpg"}
	run := func() *Result {
		result, err := r.Resolve(context.Background(), keys,
			[]io.ReadSeeker{bytes.NewReader(first), bytes.NewReader(faceless), bytes.NewReader(second)}, 80)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		return result
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ between runs:\n%+v\n%+v", a, b)
	}
}

func TestResolve_DetectionFailureSkipsPhoto(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")

	broken := grayPNG(t, 10)
	good := grayPNG(t, 128)

	fv := newFakeVision()
	fv.detectErr[string(broken)] = errors.New("throttled")
	fv.faces[string(good)] = oneFace
	fv.matches["ref-alice|"+string(good)] = true

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(), []string{"CS/1_Alice.jpg"},
		[]io.ReadSeeker{bytes.NewReader(broken), bytes.NewReader(good)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if got := result.QualityReports[0].Error; got != "Face detection failed: throttled" {
		t.Errorf("Error = %q", got)
	}
	// Lighting metrics survive a detection failure.
	if result.QualityReports[0].LightingStatus != quality.LightingTooDark {
		t.Errorf("LightingStatus = %q, want TooDark", result.QualityReports[0].LightingStatus)
	}
	if len(result.Present) != 1 {
		t.Errorf("expected Alice present from the second photo, got %+v", result.Present)
	}
}

func TestResolve_ComparisonFailureIsNoMatch(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	store.objects["CS/2_Bob.jpg"] = []byte("ref-bob")

	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace
	fv.cmpErr["ref-alice"] = errors.New("InvalidParameterException")
	fv.matches["ref-bob|"+string(photo)] = true

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(), []string{"CS/1_Alice.jpg", "CS/2_Bob.jpg"},
		[]io.ReadSeeker{bytes.NewReader(photo)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(result.Present) != 1 || result.Present[0].StudentID != "2" {
		t.Errorf("Present = %+v, want only Bob", result.Present)
	}
	if len(result.Absent) != 1 || result.Absent[0].StudentID != "1" {
		t.Errorf("Absent = %+v, want only Alice", result.Absent)
	}
}

func TestResolve_MissingReferenceIsNoMatch(t *testing.T) {
	store := newMemStore()
	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(), []string{"CS/9_Ghost.jpg"},
		[]io.ReadSeeker{bytes.NewReader(photo)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(result.Absent) != 1 || fv.compareCalls != 0 {
		t.Errorf("expected Ghost absent without comparisons, got %+v (%d calls)", result.Absent, fv.compareCalls)
	}
}

func TestResolve_ReferenceImagesFetchedOnce(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	store.objects["CS/2_Bob.jpg"] = []byte("ref-bob")

	p1, p2, p3 := grayPNG(t, 100), grayPNG(t, 110), grayPNG(t, 120)
	fv := newFakeVision()
	for _, p := range [][]byte{p1, p2, p3} {
		fv.faces[string(p)] = oneFace
	}

	r := NewResolver(fv, fv, store, nil)
	_, err := r.Resolve(context.Background(), []string{"CS/1_Alice.jpg", "CS/2_Bob.jpg"},
		[]io.ReadSeeker{bytes.NewReader(p1), bytes.NewReader(p2), bytes.NewReader(p3)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	for key, n := range store.gets {
		if n != 1 {
			t.Errorf("reference %s fetched %d times, want 1", key, n)
		}
	}
	if fv.compareCalls != 6 {
		t.Errorf("expected 6 comparisons, got %d", fv.compareCalls)
	}
}

func TestResolve_DuplicateStudentIDs(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice_1.jpg"] = []byte("ref-alice-1")
	store.objects["CS/1_Alice_2.jpg"] = []byte("ref-alice-2")
	store.objects["CS/2_Bob_1.jpg"] = []byte("ref-bob-1")
	store.objects["CS/2_Bob_2.jpg"] = []byte("ref-bob-2")
	keys := []string{"CS/1_Alice_1.jpg", "CS/1_Alice_2.jpg", "CS/2_Bob_1.jpg", "CS/2_Bob_2.jpg"}

	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace
	fv.matches["ref-alice-1|"+string(photo)] = true
	fv.matches["ref-alice-2|"+string(photo)] = true

	r := NewResolver(fv, fv, store, nil)
	result, err := r.Resolve(context.Background(), keys, []io.ReadSeeker{bytes.NewReader(photo)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if len(result.Present) != 1 || result.Present[0].StudentID != "1" {
		t.Errorf("Present = %+v, want Alice once", result.Present)
	}
	if result.Present[0].DisplayName != "Alice 1" {
		t.Errorf("first matching reference should win, got %q", result.Present[0].DisplayName)
	}
	if len(result.Absent) != 1 || result.Absent[0].StudentID != "2" {
		t.Errorf("Absent = %+v, want Bob once", result.Absent)
	}
}

func TestResolve_DefaultThreshold(t *testing.T) {
	store := newMemStore()
	store.objects["CS/1_Alice.jpg"] = []byte("ref-alice")
	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace

	r := NewResolver(fv, fv, store, nil)
	if _, err := r.Resolve(context.Background(), []string{"CS/1_Alice.jpg"}, []io.ReadSeeker{bytes.NewReader(photo)}, 0); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(fv.thresholds) != 1 || fv.thresholds[0] != DefaultThreshold {
		t.Errorf("thresholds = %v, want [%v]", fv.thresholds, DefaultThreshold)
	}
}

func TestResolve_EmptyRoster(t *testing.T) {
	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace

	r := NewResolver(fv, fv, newMemStore(), nil)
	result, err := r.Resolve(context.Background(), nil, []io.ReadSeeker{bytes.NewReader(photo)}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(result.Present) != 0 || len(result.Absent) != 0 || len(result.QualityReports) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Present == nil || result.Absent == nil {
		t.Error("present and absent should be empty, not nil")
	}
}

func TestResolve_PhotosAreRewound(t *testing.T) {
	photo := grayPNG(t, 128)
	reader := bytes.NewReader(photo)
	fv := newFakeVision()

	r := NewResolver(fv, fv, newMemStore(), nil)
	if _, err := r.Resolve(context.Background(), nil, []io.ReadSeeker{reader}, 80); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	again, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(again, photo) {
		t.Error("photo stream was not rewound")
	}
}

func TestResolve_ReadFailure(t *testing.T) {
	fv := newFakeVision()
	r := NewResolver(fv, fv, newMemStore(), nil)
	if _, err := r.Resolve(context.Background(), nil, []io.ReadSeeker{failingReader{}}, 80); err == nil {
		t.Error("expected error for unreadable photo")
	}
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fv := newFakeVision()
	r := NewResolver(fv, fv, newMemStore(), nil)
	_, err := r.Resolve(ctx, nil, []io.ReadSeeker{bytes.NewReader(grayPNG(t, 128))}, 80)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
	if fv.detectCalls != 0 {
		t.Errorf("expected no detection calls, got %d", fv.detectCalls)
	}
}

func TestResolve_Undecodable(t *testing.T) {
	fv := newFakeVision()
	r := NewResolver(fv, fv, newMemStore(), nil)
	result, err := r.Resolve(context.Background(), nil, []io.ReadSeeker{bytes.NewReader([]byte("garbage"))}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	// Detection still runs and reports no faces.
	if fv.detectCalls != 1 {
		t.Errorf("expected 1 detection call, got %d", fv.detectCalls)
	}
	if got := result.QualityReports[0]; got.Resolution != "" || got.Error != quality.ErrNoFacesDetected {
		t.Errorf("unexpected report %+v", got)
	}
}

func TestResolve_Progress(t *testing.T) {
	photo := grayPNG(t, 128)
	fv := newFakeVision()
	fv.faces[string(photo)] = oneFace

	var phases []string
	r := NewResolver(fv, fv, newMemStore(), nil)
	r.OnProgress = func(p ProgressInfo) {
		if p.Total != 2 {
			t.Errorf("Total = %d, want 2", p.Total)
		}
		phases = append(phases, p.Phase)
	}
	_, err := r.Resolve(context.Background(), nil,
		[]io.ReadSeeker{bytes.NewReader(photo), bytes.NewReader(grayPNG(t, 1))}, 80)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := []string{PhaseAssessing, PhaseMatching, PhaseAssessing, PhaseSkipped}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %q, want %q", i, phases[i], want[i])
		}
	}
}

func TestNewRoster(t *testing.T) {
	roster := NewRoster([]string{"CS/101_Jane_Doe.png", "CS/solo.jpg"})
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	if roster[0].StudentID != "101" || roster[0].DisplayName != "Jane Doe" || roster[0].SourceKey != "CS/101_Jane_Doe.png" {
		t.Errorf("unexpected entry %+v", roster[0])
	}
	if roster[1].StudentID != "solo" || roster[1].DisplayName != "solo" {
		t.Errorf("unexpected entry %+v", roster[1])
	}
}
