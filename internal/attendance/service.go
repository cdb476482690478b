package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/quality"
	"github.com/kozaktomas/roll-call/internal/report"
	"github.com/kozaktomas/roll-call/internal/storage"
)

var (
	ErrNoPhotos     = errors.New("at least one photo is required")
	ErrMissingField = errors.New("batch, class and subject are required")
)

// MarkRequest describes one attendance run.
type MarkRequest struct {
	Batch     string
	Class     string
	Subject   string
	Photos    []io.ReadSeeker
	Threshold float64   // 0 uses DefaultThreshold
	TakenAt   time.Time // zero uses the current time

	// Progress receives per-photo updates; optional.
	Progress func(ProgressInfo)
}

// MarkResult is the outcome of Mark.
type MarkResult struct {
	*Result
	Session   report.Session `json:"session"`
	SessionID string         `json:"session_id,omitempty"`
	ReportKey string         `json:"report_key"`
	ReportURL string         `json:"report_url"`
}

// Service ties the resolver to roster storage, report output and session history.
type Service struct {
	store         ObjectStore
	resolver      *Resolver
	assessor      *quality.Assessor
	detector      FaceDetector
	sessions      database.SessionWriter
	reportsPrefix string
	now           func() time.Time
}

// NewService creates an attendance service. sessions may be nil, in which case
// runs are only recorded as report workbooks.
func NewService(store ObjectStore, resolver *Resolver, sessions database.SessionWriter, reportsPrefix string) *Service {
	return &Service{
		store:         store,
		resolver:      resolver,
		assessor:      resolver.assessor,
		detector:      resolver.detector,
		sessions:      sessions,
		reportsPrefix: reportsPrefix,
		now:           time.Now,
	}
}

// Resolver returns the underlying resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Mark resolves attendance for a batch, writes the attendance workbook to the
// store and records the session when a session writer is configured.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (*MarkResult, error) {
	req.Batch = strings.TrimSpace(req.Batch)
	req.Class = strings.TrimSpace(req.Class)
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Batch == "" || req.Class == "" || req.Subject == "" {
		return nil, ErrMissingField
	}
	if len(req.Photos) == 0 {
		return nil, ErrNoPhotos
	}
	if req.Threshold <= 0 {
		req.Threshold = DefaultThreshold
	}
	if req.TakenAt.IsZero() {
		req.TakenAt = s.now()
	}

	rosterKeys, err := LoadRoster(ctx, s.store, req.Batch)
	if err != nil {
		return nil, err
	}
	logger.Info("resolving attendance",
		logger.LoggerOptions{Key: "batch", Data: req.Batch},
		logger.LoggerOptions{Key: "roster", Data: len(rosterKeys)},
		logger.LoggerOptions{Key: "photos", Data: len(req.Photos)})

	onProgress := req.Progress
	if onProgress == nil {
		onProgress = s.resolver.OnProgress
	}
	result, err := s.resolver.ResolveWithProgress(ctx, rosterKeys, req.Photos, req.Threshold, onProgress)
	if err != nil {
		return nil, fmt.Errorf("resolve attendance: %w", err)
	}

	session := report.Session{Batch: req.Batch, Class: req.Class, Subject: req.Subject, TakenAt: req.TakenAt}
	workbook, err := report.WriteAttendance(session, result.Present, result.Absent)
	if err != nil {
		return nil, fmt.Errorf("write attendance report: %w", err)
	}

	key := report.Key(s.reportsPrefix, session)
	if err := s.store.Put(ctx, key, workbook, storage.ContentTypeXLSX); err != nil {
		return nil, fmt.Errorf("upload attendance report: %w", err)
	}

	out := &MarkResult{
		Result:    result,
		Session:   session,
		ReportKey: key,
		ReportURL: s.store.URL(key),
	}

	if s.sessions != nil {
		rec := sessionRecord(session, key, req.Threshold, result)
		if err := s.sessions.SaveSession(ctx, rec); err != nil {
			// History is best effort once the workbook is stored.
			logger.Error("failed to record attendance session",
				logger.LoggerOptions{Key: "report_key", Data: key},
				logger.LoggerOptions{Key: "error", Data: err})
		} else {
			out.SessionID = rec.ID.String()
		}
	}

	logger.Info("attendance marked",
		logger.LoggerOptions{Key: "report_key", Data: key},
		logger.LoggerOptions{Key: "present", Data: len(result.Present)},
		logger.LoggerOptions{Key: "absent", Data: len(result.Absent)})
	return out, nil
}

// CheckQuality assesses photos and counts their faces without matching anyone.
func (s *Service) CheckQuality(ctx context.Context, photos []io.ReadSeeker) ([]quality.Report, error) {
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}

	reports := make([]quality.Report, 0, len(photos))
	for i, photo := range photos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readAndRewind(photo)
		if err != nil {
			return nil, fmt.Errorf("read photo %d: %w", i+1, err)
		}

		r := s.assessor.Assess(data)
		r.ImageIndex = i + 1
		faces, err := s.detector.DetectFaces(ctx, data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.DetectionFailed(err)
		} else {
			r.ApplyFaces(faces, s.assessor.Thresholds.MinCoverage)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func sessionRecord(session report.Session, key string, threshold float64, result *Result) *database.AttendanceSession {
	rec := &database.AttendanceSession{
		ID:             database.NewSessionID(),
		Batch:          session.Batch,
		Class:          session.Class,
		Subject:        session.Subject,
		TakenAt:        session.TakenAt,
		ReportKey:      key,
		Threshold:      threshold,
		QualityReports: result.QualityReports,
		PresentCount:   len(result.Present),
		AbsentCount:    len(result.Absent),
	}
	for _, st := range result.Present {
		rec.Records = append(rec.Records, database.AttendanceRecord{
			StudentID: st.StudentID, StudentName: st.DisplayName, Status: string(report.StatusPresent),
		})
	}
	for _, st := range result.Absent {
		rec.Records = append(rec.Records, database.AttendanceRecord{
			StudentID: st.StudentID, StudentName: st.DisplayName, Status: string(report.StatusAbsent),
		})
	}
	return rec
}
