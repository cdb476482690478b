package database

import (
	"context"

	"github.com/google/uuid"
)

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// GetStudent retrieves a student by enrollment number, returns nil if not found
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	// ListStudents returns students ordered by enrollment number; an empty batch lists all
	ListStudents(ctx context.Context, batch string) ([]Student, error)
	// CountStudents returns the total number of students
	CountStudents(ctx context.Context) (int, error)
}

// StudentWriter provides write access to enrolled students
type StudentWriter interface {
	StudentReader

	// UpsertStudent inserts a student or updates name, batch, phone and reference key
	UpsertStudent(ctx context.Context, student *Student) error
}

// SessionReader provides read-only access to attendance sessions
type SessionReader interface {
	// GetSession retrieves a session with its records and quality reports, returns nil if not found
	GetSession(ctx context.Context, id uuid.UUID) (*AttendanceSession, error)
	// ListSessions returns the most recent sessions first; an empty batch lists all
	ListSessions(ctx context.Context, batch string, limit int) ([]AttendanceSession, error)
	// HasReportKey reports whether a session was already recorded for the report
	HasReportKey(ctx context.Context, reportKey string) (bool, error)
}

// SessionWriter provides write access to attendance sessions
type SessionWriter interface {
	SessionReader

	// SaveSession stores a session together with its records and quality reports
	SaveSession(ctx context.Context, session *AttendanceSession) error
}
