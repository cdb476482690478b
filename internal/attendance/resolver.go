package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/quality"
)

// Resolver matches group photos against a roster. A Resolver holds no per-call
// state and processes photos and comparisons strictly one at a time.
type Resolver struct {
	detector   FaceDetector
	comparer   FaceComparer
	references ObjectReader
	assessor   *quality.Assessor

	// OnProgress is called after each photo phase; optional.
	OnProgress func(ProgressInfo)
}

// NewResolver creates a resolver. A nil assessor uses quality.DefaultThresholds.
func NewResolver(detector FaceDetector, comparer FaceComparer, references ObjectReader, assessor *quality.Assessor) *Resolver {
	if assessor == nil {
		assessor = quality.NewAssessor(quality.DefaultThresholds)
	}
	return &Resolver{
		detector:   detector,
		comparer:   comparer,
		references: references,
		assessor:   assessor,
	}
}

// presentSet keeps the first identity seen per student id, in match order.
type presentSet struct {
	byID  map[string]struct{}
	order []identity.StudentIdentity
}

func (p *presentSet) add(s identity.StudentIdentity) {
	if _, ok := p.byID[s.StudentID]; ok {
		return
	}
	p.byID[s.StudentID] = struct{}{}
	p.order = append(p.order, s)
}

func (p *presentSet) has(id string) bool {
	_, ok := p.byID[id]
	return ok
}

// Resolve runs the per-photo sweep: quality assessment, face detection, then a
// comparison of every roster reference image against the photo.
//
// Per-photo failures (undecodable image, no faces, detection or comparison errors)
// are recorded in the quality reports and never abort the batch. Resolve only fails
// when a photo stream cannot be read or ctx is done.
func (r *Resolver) Resolve(ctx context.Context, rosterKeys []string, photos []io.ReadSeeker, threshold float64) (*Result, error) {
	return r.ResolveWithProgress(ctx, rosterKeys, photos, threshold, r.OnProgress)
}

// ResolveWithProgress is Resolve reporting to onProgress instead of OnProgress.
func (r *Resolver) ResolveWithProgress(ctx context.Context, rosterKeys []string, photos []io.ReadSeeker, threshold float64, onProgress func(ProgressInfo)) (*Result, error) {
	progress := func(p ProgressInfo) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	roster := NewRoster(rosterKeys)
	present := &presentSet{byID: make(map[string]struct{})}
	reports := make([]quality.Report, 0, len(photos))
	refs := make(map[string][]byte, len(roster))

	for i, photo := range photos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := i + 1

		data, err := readAndRewind(photo)
		if err != nil {
			return nil, fmt.Errorf("read photo %d: %w", index, err)
		}

		report := r.assessor.Assess(data)
		report.ImageIndex = index
		progress(ProgressInfo{Phase: PhaseAssessing, Current: index, Total: len(photos), Present: len(present.order)})

		faces, err := r.detector.DetectFaces(ctx, data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warning("face detection failed, skipping photo",
				logger.LoggerOptions{Key: "photo", Data: index},
				logger.LoggerOptions{Key: "error", Data: err})
			report.DetectionFailed(err)
			reports = append(reports, report)
			progress(ProgressInfo{Phase: PhaseSkipped, Current: index, Total: len(photos), Present: len(present.order), Message: report.Error})
			continue
		}

		report.ApplyFaces(faces, r.assessor.Thresholds.MinCoverage)
		reports = append(reports, report)
		if len(faces) == 0 {
			logger.Info("no faces detected, skipping photo", logger.LoggerOptions{Key: "photo", Data: index})
			progress(ProgressInfo{Phase: PhaseSkipped, Current: index, Total: len(photos), Present: len(present.order), Message: report.Error})
			continue
		}

		for _, entry := range roster {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if r.matches(ctx, entry, data, threshold, refs) {
				present.add(entry.StudentIdentity)
			}
		}
		progress(ProgressInfo{
			Phase:   PhaseMatching,
			Current: index,
			Total:   len(photos),
			Present: len(present.order),
			Message: fmt.Sprintf("%d faces", len(faces)),
		})
	}

	result := &Result{
		Present:        present.order,
		Absent:         absentFrom(roster, present),
		QualityReports: reports,
	}
	if result.Present == nil {
		result.Present = []identity.StudentIdentity{}
	}
	return result, nil
}

// matches compares one roster reference image against the photo. Any failure is
// logged and counts as no match.
func (r *Resolver) matches(ctx context.Context, entry RosterEntry, photo []byte, threshold float64, refs map[string][]byte) bool {
	ref, ok := refs[entry.SourceKey]
	if !ok {
		data, err := r.references.Get(ctx, entry.SourceKey)
		if err != nil {
			logger.Warning("failed to load reference image",
				logger.LoggerOptions{Key: "key", Data: entry.SourceKey},
				logger.LoggerOptions{Key: "error", Data: err})
			return false
		}
		refs[entry.SourceKey] = data
		ref = data
	}

	found, err := r.comparer.CompareFaces(ctx, ref, photo, threshold)
	if err != nil {
		logger.Warning("face comparison failed",
			logger.LoggerOptions{Key: "key", Data: entry.SourceKey},
			logger.LoggerOptions{Key: "error", Data: err})
		return false
	}
	return len(found) > 0
}

// absentFrom lists roster students that were not matched, once per student id, in roster order.
func absentFrom(roster []RosterEntry, present *presentSet) []identity.StudentIdentity {
	absent := []identity.StudentIdentity{}
	seen := make(map[string]struct{}, len(roster))
	for _, entry := range roster {
		if present.has(entry.StudentID) {
			continue
		}
		if _, dup := seen[entry.StudentID]; dup {
			continue
		}
		seen[entry.StudentID] = struct{}{}
		absent = append(absent, entry.StudentIdentity)
	}
	return absent
}

// readAndRewind reads the whole stream and seeks back so callers can reuse it.
func readAndRewind(rs io.ReadSeeker) ([]byte, error) {
	if rs == nil {
		return nil, errors.New("nil photo stream")
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}
	return data, nil
}
