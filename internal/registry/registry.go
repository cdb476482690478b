// Package registry enrolls students: it stores their reference photos, indexes
// them for face search and keeps the students workbook and database in sync.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/report"
	"github.com/kozaktomas/roll-call/internal/storage"
	"github.com/kozaktomas/roll-call/internal/vision"
)

var (
	ErrNoImages      = errors.New("at least one image is required")
	ErrNoValidImages = errors.New("no valid images were uploaded")
	ErrMissingField  = errors.New("batch, er_number and name are required")
)

// Upload is one submitted reference photo.
type Upload struct {
	Filename string
	Data     []byte
}

// RegisterRequest describes a student enrollment.
type RegisterRequest struct {
	Batch       string
	StudentID   string
	Name        string
	ParentPhone string
	Images      []Upload
}

// Rejection explains why an upload was skipped.
type Rejection struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	Student  database.Student `json:"student"`
	Uploaded []string         `json:"uploaded"`
	Rejected []Rejection      `json:"rejected"`
	Indexed  int              `json:"indexed"`
}

// Service registers students.
type Service struct {
	store      attendance.ObjectStore
	indexer    attendance.FaceIndexer // may be nil
	students   database.StudentWriter // may be nil
	collection string
	now        func() time.Time
}

// NewService creates a registration service. indexer and students are optional.
func NewService(store attendance.ObjectStore, indexer attendance.FaceIndexer, students database.StudentWriter, collection string) *Service {
	return &Service{
		store:      store,
		indexer:    indexer,
		students:   students,
		collection: collection,
		now:        time.Now,
	}
}

var allowedExtensions = map[string]string{
	".jpg":  storage.ContentTypeJPEG,
	".jpeg": storage.ContentTypeJPEG,
	".png":  storage.ContentTypePNG,
}

// validateUpload returns the lowercase extension and content type, or a rejection reason.
func validateUpload(u Upload) (string, string, string) {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(u.Filename, `\`, "/")))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", "unsupported file type"
	}
	if len(u.Data) == 0 {
		return "", "", "empty file"
	}
	if len(u.Data) > constants.MaxReferenceImageSize {
		return "", "", "too large"
	}
	return ext, contentType, ""
}

// Register uploads each valid image as <batch>/<id>_<name>_<n>.<ext>, indexes it,
// then upserts the student and rewrites the students workbook.
// Invalid images are reported in the result and skipped.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Batch = strings.TrimSpace(req.Batch)
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	req.ParentPhone = strings.TrimSpace(req.ParentPhone)
	if req.Batch == "" || req.StudentID == "" || req.Name == "" {
		return nil, ErrMissingField
	}
	if len(req.Images) == 0 {
		return nil, ErrNoImages
	}

	result := &RegisterResult{Uploaded: []string{}, Rejected: []Rejection{}}
	externalID := identity.ExternalID(req.StudentID, req.Name)

	for i, img := range req.Images {
		ext, contentType, reason := validateUpload(img)
		if reason != "" {
			result.Rejected = append(result.Rejected, Rejection{Filename: img.Filename, Reason: reason})
			continue
		}

		key := identity.ReferenceKey(req.Batch, req.StudentID, req.Name, i+1, ext)
		if err := s.store.Put(ctx, key, img.Data, contentType); err != nil {
			return result, fmt.Errorf("upload %s: %w", key, err)
		}
		result.Uploaded = append(result.Uploaded, key)

		if s.indexer == nil {
			continue
		}
		err := s.indexer.IndexFace(ctx, s.collection, key, externalID)
		switch {
		case errors.Is(err, vision.ErrIndexingUnsupported):
			logger.Info("face indexing not supported by backend, skipping", logger.LoggerOptions{Key: "key", Data: key})
		case err != nil:
			return result, fmt.Errorf("index %s: %w", key, err)
		default:
			result.Indexed++
		}
	}

	if len(result.Uploaded) == 0 {
		return result, ErrNoValidImages
	}

	now := s.now()
	result.Student = database.Student{
		StudentID:    req.StudentID,
		Name:         req.Name,
		Batch:        req.Batch,
		ParentPhone:  req.ParentPhone,
		ReferenceKey: result.Uploaded[len(result.Uploaded)-1],
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.students != nil {
		if err := s.students.UpsertStudent(ctx, &result.Student); err != nil {
			return result, fmt.Errorf("save student: %w", err)
		}
	}

	if err := s.updateWorkbook(ctx, req, now); err != nil {
		return result, err
	}

	logger.Info("student registered",
		logger.LoggerOptions{Key: "er_number", Data: req.StudentID},
		logger.LoggerOptions{Key: "batch", Data: req.Batch},
		logger.LoggerOptions{Key: "uploaded", Data: len(result.Uploaded)},
		logger.LoggerOptions{Key: "rejected", Data: len(result.Rejected)})
	return result, nil
}

func (s *Service) updateWorkbook(ctx context.Context, req RegisterRequest, now time.Time) error {
	existing, err := s.store.Get(ctx, report.RegistryKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load students workbook: %w", err)
	}

	updated, err := report.UpdateRegistry(existing, report.Student{
		Batch:       req.Batch,
		StudentID:   req.StudentID,
		Name:        req.Name,
		ParentPhone: req.ParentPhone,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("update students workbook: %w", err)
	}

	if err := s.store.Put(ctx, report.RegistryKey, updated, storage.ContentTypeXLSX); err != nil {
		return fmt.Errorf("upload students workbook: %w", err)
	}
	return nil
}

// Students lists the roster of a batch from its reference images, one entry per student id.
func (s *Service) Students(ctx context.Context, batch string) ([]attendance.RosterEntry, error) {
	keys, err := attendance.LoadRoster(ctx, s.store, batch)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	entries := []attendance.RosterEntry{}
	for _, entry := range attendance.NewRoster(keys) {
		if _, ok := seen[entry.StudentID]; ok {
			continue
		}
		seen[entry.StudentID] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}
