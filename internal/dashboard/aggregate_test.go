package dashboard

import (
	"testing"
	"time"

	"github.com/kozaktomas/roll-call/internal/report"
)

func day(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

func row(d int, subject, id, name string, status report.Status) report.Row {
	return report.Row{StudentID: id, StudentName: name, Date: day(d), Time: "09:00:00", Subject: subject, Batch: "CS", Status: status}
}

var (
	p = report.StatusPresent
	a = report.StatusAbsent
)

func sampleRows() []report.Row {
	return []report.Row{
		row(1, "Math", "1", "Alice", p),
		row(1, "Math", "2", "Bob", a),
		row(1, "Math", "3", "Carol", a),
		row(1, "Math", "1", "Alice", p),
		row(1, "Physics", "1", "Alice", p),
		row(1, "Physics", "2", "Bob", p),
		row(1, "Physics", "3", "Carol", a),
		row(2, "Math", "1", "Alice", a),
		row(2, "Math", "2", "Bob", p),
		row(2, "Math", "3", "Carol", a),
	}
}

var sampleRegistry = []report.Student{
	{StudentID: "1", Name: "Alice", Batch: "CS"},
	{StudentID: "2", Name: "Bob", Batch: "CS"},
	{StudentID: "3", Name: "Carol", Batch: "CS"},
}

func TestOverview(t *testing.T) {
	sheets := []report.Sheet{
		{Key: "r1", Rows: []report.Row{row(1, "Math", "1", "A", p), row(1, "Math", "2", "B", p), row(1, "Math", "3", "C", a), row(1, "Math", "4", "D", a)}},
		{Key: "r2", Rows: []report.Row{row(2, "Math", "1", "A", p), row(2, "Math", "2", "B", a)}},
		{Key: "r3", Rows: []report.Row{row(3, "Physics", "1", "A", p), row(3, "Physics", "2", "B", p), row(3, "Physics", "3", "C", p)}},
		{Key: "empty"},
	}

	got := Overview(sheets, 4)

	if got.ActiveSubjects != 2 || len(got.Subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %+v", got.Subjects)
	}
	math := got.Subjects[0]
	if math.Subject != "Math" || math.Attendance != 37.5 || math.PresentCount != 3 || math.TotalCount != 4 {
		t.Errorf("unexpected Math stat %+v", math)
	}
	physics := got.Subjects[1]
	if physics.Subject != "Physics" || physics.Attendance != 75 {
		t.Errorf("unexpected Physics stat %+v", physics)
	}
	if got.AvgAttendance != 56.25 {
		t.Errorf("AvgAttendance = %v, want 56.25", got.AvgAttendance)
	}
	if got.BestSubject == nil || *got.BestSubject != "Physics" || *got.BestBatch != "CS" {
		t.Errorf("unexpected best subject %v / %v", got.BestSubject, got.BestBatch)
	}
	if len(got.Trend) != 3 {
		t.Fatalf("expected 3 trend points, got %d", len(got.Trend))
	}
	if got.Trend[0] != (TrendPoint{Month: "Oct", Attendance: 2, SubjectBatch: "Math (CS)"}) {
		t.Errorf("unexpected trend point %+v", got.Trend[0])
	}
}

func TestOverview_NoStudentsOrReports(t *testing.T) {
	got := Overview(nil, 0)
	if got.AvgAttendance != 0 || got.BestSubject != nil || len(got.Subjects) != 0 {
		t.Errorf("unexpected overview %+v", got)
	}

	// Without registered students the denominator is 1.
	got = Overview([]report.Sheet{{Rows: []report.Row{row(1, "", "1", "A", p)}}}, 0)
	if got.Subjects[0].Attendance != 100 || got.Subjects[0].Subject != "Unknown" || got.Subjects[0].TotalCount != 1 {
		t.Errorf("unexpected subject %+v", got.Subjects[0])
	}
}

func TestStudentSummaries(t *testing.T) {
	got := StudentSummaries(sampleRows(), sampleRegistry)

	want := []StudentSummary{
		{Name: "Alice", StudentID: "1", PresentCount: 2, TotalClasses: 3, AttendancePercentage: 66.7},
		{Name: "Bob", StudentID: "2", PresentCount: 2, TotalClasses: 3, AttendancePercentage: 66.7},
		{Name: "Carol", StudentID: "3", PresentCount: 0, TotalClasses: 3, AttendancePercentage: 0},
	}
	if len(got.Students) != len(want) {
		t.Fatalf("expected %d students, got %d", len(want), len(got.Students))
	}
	for i := range want {
		if got.Students[i] != want[i] {
			t.Errorf("Students[%d] = %+v, want %+v", i, got.Students[i], want[i])
		}
	}

	if len(got.DailyTrend) != 2 || got.DailyTrend[0] != (DailyPoint{Date: "2026-10-01", Attendance: 2}) ||
		got.DailyTrend[1] != (DailyPoint{Date: "2026-10-02", Attendance: 1}) {
		t.Errorf("unexpected daily trend %+v", got.DailyTrend)
	}
	if got.AvgAttendancePct != 50 {
		t.Errorf("AvgAttendancePct = %v, want 50", got.AvgAttendancePct)
	}
	if len(got.SubjectDistribution) != 2 || got.SubjectDistribution[0] != (SubjectShare{Subject: "Math", Students: 2, Percentage: 50}) {
		t.Errorf("unexpected subject distribution %+v", got.SubjectDistribution)
	}
}

func TestStudentSummaries_UnregisteredStudent(t *testing.T) {
	registry := []report.Student{{StudentID: "9", Name: "Dave"}}

	got := StudentSummaries(sampleRows(), registry)

	if len(got.Students) != 1 || got.Students[0].StudentID != "9" || got.Students[0].PresentCount != 0 {
		t.Errorf("unexpected students %+v", got.Students)
	}
}

func TestStudentSummaries_RosterFromReports(t *testing.T) {
	got := StudentSummaries(sampleRows(), nil)

	if len(got.Students) != 3 {
		t.Fatalf("expected 3 students, got %d", len(got.Students))
	}
	if got.Students[0].Name != "Alice" || got.Students[2].Name != "Carol" {
		t.Errorf("unexpected order %+v", got.Students)
	}
}

func TestStudentSummaries_Empty(t *testing.T) {
	got := StudentSummaries(nil, sampleRegistry)

	for _, s := range got.Students {
		if s.TotalClasses != 0 || s.AttendancePercentage != 0 {
			t.Errorf("unexpected summary %+v", s)
		}
	}
	if got.AvgAttendancePct != 0 {
		t.Errorf("AvgAttendancePct = %v, want 0", got.AvgAttendancePct)
	}
}

func TestStudentHistory(t *testing.T) {
	got := StudentHistory(sampleRows(), "1")

	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	if got[0] != (HistoryEntry{Date: "2026-10-02", Subject: "Math", Status: "Absent", Time: "09:00:00"}) {
		t.Errorf("unexpected newest entry %+v", got[0])
	}
	for _, e := range got[1:] {
		if e.Date != "2026-10-01" {
			t.Errorf("unexpected entry order %+v", got)
		}
	}

	if empty := StudentHistory(sampleRows(), "404"); len(empty) != 0 {
		t.Errorf("expected no history, got %+v", empty)
	}
}

func TestEligibility(t *testing.T) {
	summaries := StudentSummaries(sampleRows(), sampleRegistry).Students

	tests := []struct {
		threshold  float64
		eligible   int
		ineligible int
	}{
		{75, 0, 3},
		{60, 2, 1},
		{66.7, 2, 1},
		{0, 3, 0},
	}
	for _, tt := range tests {
		got := Eligibility(summaries, tt.threshold)
		if got.EligibleCount != tt.eligible || got.IneligibleCount != tt.ineligible {
			t.Errorf("Eligibility(%v) = %d/%d, want %d/%d", tt.threshold, got.EligibleCount, got.IneligibleCount, tt.eligible, tt.ineligible)
		}
	}
}
