// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/roll-call/internal/database"
)

// MockStudentRepository is a mock implementation of database.StudentWriter
type MockStudentRepository struct {
	mu       sync.RWMutex
	students map[string]*database.Student

	// Error injection
	GetError    error
	ListError   error
	CountError  error
	UpsertError error
}

// NewMockStudentRepository creates a new mock student repository
func NewMockStudentRepository() *MockStudentRepository {
	return &MockStudentRepository{
		students: make(map[string]*database.Student),
	}
}

// AddStudent adds a student to the mock store
func (m *MockStudentRepository) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.StudentID] = &s
}

// GetStudent retrieves a student by enrollment number
func (m *MockStudentRepository) GetStudent(ctx context.Context, studentID string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// ListStudents returns students sorted by enrollment number
func (m *MockStudentRepository) ListStudents(ctx context.Context, batch string) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.Student
	for _, s := range m.students {
		if batch == "" || s.Batch == batch {
			results = append(results, *s)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

// CountStudents returns the number of students
func (m *MockStudentRepository) CountStudents(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// UpsertStudent inserts or updates a student
func (m *MockStudentRepository) UpsertStudent(ctx context.Context, s *database.Student) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c := *s
	if existing, ok := m.students[s.StudentID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.students[s.StudentID] = &c
	return nil
}

// MockSessionRepository is a mock implementation of database.SessionWriter
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*database.AttendanceSession
	order    []uuid.UUID

	// Error injection
	GetError  error
	ListError error
	SaveError error
}

// NewMockSessionRepository creates a new mock session repository
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[uuid.UUID]*database.AttendanceSession),
	}
}

// SaveSession stores a session, assigning an ID when missing
func (m *MockSessionRepository) SaveSession(ctx context.Context, s *database.AttendanceSession) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = database.NewSessionID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	c := *s
	if _, ok := m.sessions[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.sessions[s.ID] = &c
	return nil
}

// GetSession retrieves a session by ID
func (m *MockSessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*database.AttendanceSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// ListSessions returns sessions newest first, without records
func (m *MockSessionRepository) ListSessions(ctx context.Context, batch string, limit int) ([]database.AttendanceSession, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []database.AttendanceSession
	for i := len(m.order) - 1; i >= 0; i-- {
		s := *m.sessions[m.order[i]]
		if batch != "" && s.Batch != batch {
			continue
		}
		s.Records = nil
		s.QualityReports = nil
		results = append(results, s)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// HasReportKey reports whether any stored session references the report key
func (m *MockSessionRepository) HasReportKey(ctx context.Context, reportKey string) (bool, error) {
	if m.GetError != nil {
		return false, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ReportKey == reportKey {
			return true, nil
		}
	}
	return false, nil
}

// Sessions returns all stored sessions in insertion order
func (m *MockSessionRepository) Sessions() []database.AttendanceSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]database.AttendanceSession, 0, len(m.order))
	for _, id := range m.order {
		results = append(results, *m.sessions[id])
	}
	return results
}
