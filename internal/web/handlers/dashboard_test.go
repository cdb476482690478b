package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/roll-call/internal/dashboard"
	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/kozaktomas/roll-call/internal/report"
)

// seedReports stores two Math sessions: Alice attends both, Bob only the second.
func seedReports(t *testing.T, env *testEnv) {
	t.Helper()
	alice := identity.StudentIdentity{StudentID: "1", DisplayName: "Alice"}
	bob := identity.StudentIdentity{StudentID: "2", DisplayName: "Bob"}

	sessions := []struct {
		day     int
		present []identity.StudentIdentity
		absent  []identity.StudentIdentity
	}{
		{1, []identity.StudentIdentity{alice}, []identity.StudentIdentity{bob}},
		{2, []identity.StudentIdentity{alice, bob}, nil},
	}
	for _, s := range sessions {
		meta := report.Session{Batch: "CS", Class: "A", Subject: "Math", TakenAt: time.Date(2026, 10, s.day, 9, 0, 0, 0, time.UTC)}
		data, err := report.WriteAttendance(meta, s.present, s.absent)
		if err != nil {
			t.Fatalf("WriteAttendance() error: %v", err)
		}
		env.put(t, report.Key("reports/", meta), data)
	}

	var registryData []byte
	var err error
	for _, st := range []report.Student{{Batch: "CS", StudentID: "1", Name: "Alice"}, {Batch: "CS", StudentID: "2", Name: "Bob"}} {
		registryData, err = report.UpdateRegistry(registryData, st)
		if err != nil {
			t.Fatalf("UpdateRegistry() error: %v", err)
		}
	}
	env.put(t, report.RegistryKey, registryData)
}

func TestDashboardHandler_Overview(t *testing.T) {
	env := newTestEnv(t)
	seedReports(t, env)
	handler := NewDashboardHandler(env.dashboard, 75)

	recorder := httptest.NewRecorder()
	handler.Overview(recorder, httptest.NewRequest("GET", "/api/v1/dashboard/overview", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var overview dashboard.ClassOverview
	parseJSONResponse(t, recorder, &overview)
	if overview.TotalStudents != 2 || overview.ActiveSubjects != 1 {
		t.Errorf("unexpected overview %+v", overview)
	}
	if overview.BestSubject == nil || *overview.BestSubject != "Math" {
		t.Errorf("BestSubject = %v, want Math", overview.BestSubject)
	}
}

func TestDashboardHandler_Overview_NoReports(t *testing.T) {
	handler := NewDashboardHandler(newTestEnv(t).dashboard, 75)

	recorder := httptest.NewRecorder()
	handler.Overview(recorder, httptest.NewRequest("GET", "/api/v1/dashboard/overview", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var overview dashboard.ClassOverview
	parseJSONResponse(t, recorder, &overview)
	if overview.BestSubject != nil || overview.AvgAttendance != 0 {
		t.Errorf("expected empty overview, got %+v", overview)
	}
}

func TestDashboardHandler_Students(t *testing.T) {
	env := newTestEnv(t)
	seedReports(t, env)
	handler := NewDashboardHandler(env.dashboard, 75)

	recorder := httptest.NewRecorder()
	handler.Students(recorder, httptest.NewRequest("GET", "/api/v1/dashboard/students", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp dashboard.StudentsReport
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Students) != 2 {
		t.Fatalf("expected 2 students, got %d", len(resp.Students))
	}
	if resp.Students[1].StudentID != "2" || resp.Students[1].AttendancePercentage != 50 {
		t.Errorf("unexpected summary %+v", resp.Students[1])
	}
}

func TestDashboardHandler_Student(t *testing.T) {
	env := newTestEnv(t)
	seedReports(t, env)
	handler := NewDashboardHandler(env.dashboard, 75)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/dashboard/students/2", nil), map[string]string{"id": "2"})
	recorder := httptest.NewRecorder()
	handler.Student(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		StudentID string                   `json:"er_number"`
		History   []dashboard.HistoryEntry `json:"history"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.StudentID != "2" || len(resp.History) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.History[0].Status != "Present" || resp.History[1].Status != "Absent" {
		t.Errorf("history not newest first: %+v", resp.History)
	}
}

func TestDashboardHandler_Student_MissingID(t *testing.T) {
	handler := NewDashboardHandler(newTestEnv(t).dashboard, 75)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/dashboard/students/", nil), map[string]string{"id": " "})
	recorder := httptest.NewRecorder()
	handler.Student(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "student id is required")
}

func TestDashboardHandler_Eligibility(t *testing.T) {
	env := newTestEnv(t)
	seedReports(t, env)
	handler := NewDashboardHandler(env.dashboard, 75)

	tests := []struct {
		name           string
		query          string
		wantThreshold  float64
		wantIneligible int
	}{
		{"default threshold", "", 75, 1},
		{"custom threshold", "?threshold=50", 50, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Eligibility(recorder, httptest.NewRequest("GET", "/api/v1/dashboard/eligibility"+tc.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var resp dashboard.EligibilityReport
			parseJSONResponse(t, recorder, &resp)
			if resp.Threshold != tc.wantThreshold || resp.IneligibleCount != tc.wantIneligible {
				t.Errorf("unexpected eligibility %+v", resp)
			}
		})
	}
}

func TestDashboardHandler_Eligibility_InvalidThreshold(t *testing.T) {
	handler := NewDashboardHandler(newTestEnv(t).dashboard, 75)

	tests := []struct {
		query    string
		expected string
	}{
		{"?threshold=abc", "threshold must be a number"},
		{"?threshold=101", "threshold must be lte 100"},
		{"?threshold=-1", "threshold must be gte 0"},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Eligibility(recorder, httptest.NewRequest("GET", "/api/v1/dashboard/eligibility"+tc.query, nil))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.expected)
		})
	}
}
