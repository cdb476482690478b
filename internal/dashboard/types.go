// Package dashboard aggregates attendance reports into class and student statistics.
package dashboard

// SubjectStat is the attendance of one subject in one batch.
type SubjectStat struct {
	Subject      string  `json:"subject"`
	Batch        string  `json:"batch"`
	Attendance   float64 `json:"attendance"` // mean percentage across sessions
	PresentCount int     `json:"presentCount"`
	TotalCount   int     `json:"totalCount"`
}

// TrendPoint is the number of distinct present students in a month for one subject and batch.
type TrendPoint struct {
	Month        string `json:"month"`
	Attendance   int    `json:"attendance"`
	SubjectBatch string `json:"subject_batch"`
}

// ClassOverview summarizes every attendance report.
type ClassOverview struct {
	AvgAttendance  float64       `json:"avgAttendance"`
	TotalStudents  int           `json:"totalStudents"`
	ActiveSubjects int           `json:"activeSubjects"`
	BestSubject    *string       `json:"bestSubject"`
	BestBatch      *string       `json:"bestBatch"`
	Subjects       []SubjectStat `json:"subjects"`
	Trend          []TrendPoint  `json:"trend"`
}

// StudentSummary is the attendance of one student across all sessions.
type StudentSummary struct {
	Name                 string  `json:"name"`
	StudentID            string  `json:"er_number"`
	PresentCount         int     `json:"present_count"`
	TotalClasses         int     `json:"total_classes"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// DailyPoint is the number of distinct present students on a date.
type DailyPoint struct {
	Date       string `json:"date"`
	Attendance int    `json:"attendance"`
}

// SubjectShare is the number of distinct present students in a subject and its share of the total.
type SubjectShare struct {
	Subject    string  `json:"subject"`
	Students   int     `json:"students"`
	Percentage float64 `json:"percentage"`
}

// StudentsReport holds per-student summaries and class-wide trends.
type StudentsReport struct {
	Students            []StudentSummary `json:"students"`
	DailyTrend          []DailyPoint     `json:"daily_trend_data"`
	SubjectDistribution []SubjectShare   `json:"subject_distribution"`
	AvgAttendancePct    float64          `json:"avg_attendance_pct"`
}

// HistoryEntry is one session outcome for a student.
type HistoryEntry struct {
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
	Time    string `json:"time"`
}

// EligibilityReport splits students by the minimum attendance percentage.
type EligibilityReport struct {
	Threshold       float64          `json:"threshold"`
	EligibleCount   int              `json:"eligible"`
	IneligibleCount int              `json:"ineligible"`
	Eligible        []StudentSummary `json:"eligible_students"`
	Ineligible      []StudentSummary `json:"ineligible_students"`
}
