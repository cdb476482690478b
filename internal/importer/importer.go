// Package importer backfills attendance sessions from report workbooks.
package importer

import (
	"context"
	"time"

	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/report"
)

// Result summarizes one import run.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"` // already recorded or empty
	Failed   int `json:"failed"`
}

// Run records one session per report key not yet present in sessions.
// onSheet is called after each sheet and may be nil.
func Run(ctx context.Context, sheets []report.Sheet, sessions database.SessionWriter, onSheet func()) (Result, error) {
	var result Result
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		imported, err := importSheet(ctx, sheet, sessions)
		switch {
		case err != nil:
			result.Failed++
			logger.Warning("failed to import report",
				logger.LoggerOptions{Key: "key", Data: sheet.Key},
				logger.LoggerOptions{Key: "error", Data: err})
		case imported:
			result.Imported++
		default:
			result.Skipped++
		}
		if onSheet != nil {
			onSheet()
		}
	}
	return result, nil
}

func importSheet(ctx context.Context, sheet report.Sheet, sessions database.SessionWriter) (bool, error) {
	if len(sheet.Rows) == 0 {
		return false, nil
	}
	exists, err := sessions.HasReportKey(ctx, sheet.Key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	s := SessionFromSheet(sheet)
	if err := sessions.SaveSession(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// SessionFromSheet builds a session from the rows of one report. Batch, class,
// subject and time are taken from the first row.
func SessionFromSheet(sheet report.Sheet) *database.AttendanceSession {
	first := sheet.Rows[0]
	s := &database.AttendanceSession{
		Batch:     first.Batch,
		Class:     first.Class,
		Subject:   first.Subject,
		TakenAt:   takenAt(first),
		ReportKey: sheet.Key,
	}

	seen := make(map[string]bool, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row.StudentID == "" || seen[row.StudentID] {
			continue
		}
		seen[row.StudentID] = true

		status := report.StatusAbsent
		if row.Present() {
			status = report.StatusPresent
		}
		s.Records = append(s.Records, database.AttendanceRecord{
			StudentID:   row.StudentID,
			StudentName: row.StudentName,
			Status:      string(status),
		})
	}
	return s
}

func takenAt(row report.Row) time.Time {
	t, err := time.Parse(report.TimeLayout, row.Time)
	if err != nil {
		return row.Date
	}
	return time.Date(row.Date.Year(), row.Date.Month(), row.Date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
