package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/roll-call/internal/quality"
)

// Student represents an enrolled student stored in the database
type Student struct {
	StudentID    string    `json:"er_number"`
	Name         string    `json:"name"`
	Batch        string    `json:"batch"`
	ParentPhone  string    `json:"parent_phone,omitempty"`
	ReferenceKey string    `json:"reference_key"` // latest reference image key
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AttendanceRecord is the status of one student in a session
type AttendanceRecord struct {
	StudentID   string `json:"er_number"`
	StudentName string `json:"name"`
	Status      string `json:"status"` // "Present" or "Absent"
}

// AttendanceSession represents one marking run and its outcome
type AttendanceSession struct {
	ID        uuid.UUID `json:"id"`
	Batch     string    `json:"batch"`
	Class     string    `json:"class"`
	Subject   string    `json:"subject"`
	TakenAt   time.Time `json:"taken_at"`
	ReportKey string    `json:"report_key"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`

	// Populated by GetSession only
	Records        []AttendanceRecord `json:"records,omitempty"`
	QualityReports []quality.Report   `json:"quality_reports,omitempty"`

	PresentCount int `json:"present_count"`
	AbsentCount  int `json:"absent_count"`
}

// NewSessionID returns a random session identifier.
func NewSessionID() uuid.UUID {
	return uuid.New()
}
