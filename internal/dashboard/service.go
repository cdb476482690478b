package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/report"
	"github.com/kozaktomas/roll-call/internal/storage"
)

// Service loads attendance reports and the students registry from storage.
type Service struct {
	store         attendance.ObjectReader
	reportsPrefix string
}

// NewService creates a dashboard service reading reports under reportsPrefix.
func NewService(store attendance.ObjectReader, reportsPrefix string) *Service {
	return &Service{store: store, reportsPrefix: reportsPrefix}
}

// Sheets loads every attendance report. Unreadable reports are logged and skipped.
func (s *Service) Sheets(ctx context.Context) ([]report.Sheet, error) {
	keys, err := s.store.List(ctx, s.reportsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var sheets []report.Sheet
	for _, key := range keys {
		if !strings.HasSuffix(strings.ToLower(key), ".xlsx") {
			continue
		}
		data, err := s.store.Get(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warning("failed to load report", logger.LoggerOptions{Key: "key", Data: key}, logger.LoggerOptions{Key: "error", Data: err})
			continue
		}
		rows, err := report.ReadAttendance(data)
		if err != nil {
			logger.Warning("failed to parse report", logger.LoggerOptions{Key: "key", Data: key}, logger.LoggerOptions{Key: "error", Data: err})
			continue
		}
		sheets = append(sheets, report.Sheet{Key: key, Rows: rows})
	}
	return sheets, nil
}

// Rows loads all report rows.
func (s *Service) Rows(ctx context.Context) ([]report.Row, error) {
	sheets, err := s.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	var rows []report.Row
	for _, sh := range sheets {
		rows = append(rows, sh.Rows...)
	}
	return rows, nil
}

// Registry loads the students workbook. A missing or unreadable workbook yields no students.
func (s *Service) Registry(ctx context.Context) ([]report.Student, error) {
	data, err := s.store.Get(ctx, report.RegistryKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warning("failed to load students workbook", logger.LoggerOptions{Key: "error", Data: err})
		return nil, nil
	}
	students, err := report.ReadRegistry(data)
	if err != nil {
		logger.Warning("failed to parse students workbook", logger.LoggerOptions{Key: "error", Data: err})
		return nil, nil
	}
	return students, nil
}

// Overview loads reports and computes the class overview.
func (s *Service) Overview(ctx context.Context) (ClassOverview, error) {
	registry, err := s.Registry(ctx)
	if err != nil {
		return ClassOverview{}, err
	}
	sheets, err := s.Sheets(ctx)
	if err != nil {
		return ClassOverview{}, err
	}
	return Overview(sheets, len(registry)), nil
}

// Students loads reports and computes per-student summaries.
func (s *Service) Students(ctx context.Context) (StudentsReport, error) {
	registry, err := s.Registry(ctx)
	if err != nil {
		return StudentsReport{}, err
	}
	rows, err := s.Rows(ctx)
	if err != nil {
		return StudentsReport{}, err
	}
	return StudentSummaries(rows, registry), nil
}

// History loads reports and returns one student's records, newest first.
func (s *Service) History(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return StudentHistory(rows, strings.TrimSpace(studentID)), nil
}

// Eligibility loads reports and splits students by threshold percent.
func (s *Service) Eligibility(ctx context.Context, threshold float64) (EligibilityReport, error) {
	summaries, err := s.Students(ctx)
	if err != nil {
		return EligibilityReport{}, err
	}
	return Eligibility(summaries.Students, threshold), nil
}
