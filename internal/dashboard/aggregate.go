package dashboard

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/report"
)

const (
	unknown       = "Unknown"
	isoDateLayout = "2006-01-02"
)

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

type subjectBatch struct {
	subject string
	batch   string
}

// Overview computes per-subject attendance from report sheets. Each sheet counts as one
// session of the subject and batch named in its first row; its percentage is the number of
// distinct present students over totalStudents (or 1 when there are no students).
func Overview(sheets []report.Sheet, totalStudents int) ClassOverview {
	type acc struct {
		sum     float64
		n       int
		present int
		total   int
	}
	groups := make(map[subjectBatch]*acc)
	trend := []TrendPoint{}

	denominator := totalStudents
	if denominator <= 0 {
		denominator = 1
	}

	for _, sheet := range sheets {
		if len(sheet.Rows) == 0 {
			continue
		}
		key := subjectBatch{subject: sheet.Rows[0].Subject, batch: sheet.Rows[0].Batch}
		if key.subject == "" {
			key.subject = unknown
		}
		if key.batch == "" {
			key.batch = unknown
		}

		present := make(map[string]struct{})
		byMonth := make(map[string]map[string]struct{})
		for _, r := range sheet.Rows {
			if !r.Present() {
				continue
			}
			present[r.StudentID] = struct{}{}
			m := r.Date.Format("Jan")
			if byMonth[m] == nil {
				byMonth[m] = make(map[string]struct{})
			}
			byMonth[m][r.StudentID] = struct{}{}
		}

		g := groups[key]
		if g == nil {
			g = &acc{}
			groups[key] = g
		}
		g.sum += round(float64(len(present))/float64(denominator)*100, 2)
		g.n++
		g.present += len(present)
		g.total = max(g.total, denominator)

		months := make([]string, 0, len(byMonth))
		for m := range byMonth {
			months = append(months, m)
		}
		// Months are ordered by name.
		sort.Strings(months)
		for _, m := range months {
			trend = append(trend, TrendPoint{
				Month:        m,
				Attendance:   len(byMonth[m]),
				SubjectBatch: key.subject + " (" + key.batch + ")",
			})
		}
	}

	out := ClassOverview{
		TotalStudents: totalStudents,
		Subjects:      []SubjectStat{},
		Trend:         trend,
	}
	for key, g := range groups {
		out.Subjects = append(out.Subjects, SubjectStat{
			Subject:      key.subject,
			Batch:        key.batch,
			Attendance:   g.sum / float64(g.n),
			PresentCount: g.present,
			TotalCount:   g.total,
		})
	}
	slices.SortFunc(out.Subjects, func(a, b SubjectStat) int {
		return cmp.Or(cmp.Compare(a.Subject, b.Subject), cmp.Compare(a.Batch, b.Batch))
	})
	out.ActiveSubjects = len(out.Subjects)

	if len(out.Subjects) > 0 {
		var sum float64
		best := 0
		for i, s := range out.Subjects {
			sum += s.Attendance
			if s.Attendance > out.Subjects[best].Attendance {
				best = i
			}
		}
		out.AvgAttendance = round(sum/float64(len(out.Subjects)), 2)
		out.BestSubject = &out.Subjects[best].Subject
		out.BestBatch = &out.Subjects[best].Batch
	}
	return out
}

type rosterEntry struct {
	id   string
	name string
}

// rosterFrom returns the registered students, or the students seen in the rows when
// the registry is empty, once per enrollment number.
func rosterFrom(rows []report.Row, registry []report.Student) []rosterEntry {
	seen := make(map[string]struct{})
	var out []rosterEntry
	add := func(id, name string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, rosterEntry{id: id, name: name})
	}

	if len(registry) > 0 {
		for _, s := range registry {
			add(s.StudentID, s.Name)
		}
		return out
	}
	for _, r := range rows {
		add(r.StudentID, r.StudentName)
	}
	return out
}

// StudentSummaries computes per-student attendance over all report rows. A class is a
// distinct (date, subject) pair; a student is present once per class at most.
func StudentSummaries(rows []report.Row, registry []report.Student) StudentsReport {
	type class struct {
		date    string
		subject string
	}
	type dayStudent struct {
		date string
		id   string
	}

	classes := make(map[class]struct{})
	days := make(map[string]struct{})
	presentClasses := make(map[string]map[class]struct{})
	presentDays := make(map[dayStudent]struct{})
	daily := make(map[string]map[string]struct{})
	bySubject := make(map[string]map[string]struct{})

	for _, r := range rows {
		date := r.Date.Format(isoDateLayout)
		c := class{date: date, subject: r.Subject}
		classes[c] = struct{}{}
		days[date] = struct{}{}
		if !r.Present() {
			continue
		}
		if presentClasses[r.StudentID] == nil {
			presentClasses[r.StudentID] = make(map[class]struct{})
		}
		presentClasses[r.StudentID][c] = struct{}{}
		presentDays[dayStudent{date: date, id: r.StudentID}] = struct{}{}
		if daily[date] == nil {
			daily[date] = make(map[string]struct{})
		}
		daily[date][r.StudentID] = struct{}{}
		if bySubject[r.Subject] == nil {
			bySubject[r.Subject] = make(map[string]struct{})
		}
		bySubject[r.Subject][r.StudentID] = struct{}{}
	}

	out := StudentsReport{
		Students:            []StudentSummary{},
		DailyTrend:          []DailyPoint{},
		SubjectDistribution: []SubjectShare{},
	}

	total := len(classes)
	roster := rosterFrom(rows, registry)
	for _, s := range roster {
		present := len(presentClasses[s.id])
		pct := 0.0
		if total > 0 {
			pct = round(float64(present)/float64(total)*100, constants.PercentageDecimals)
		}
		out.Students = append(out.Students, StudentSummary{
			Name:                 s.name,
			StudentID:            s.id,
			PresentCount:         present,
			TotalClasses:         total,
			AttendancePercentage: pct,
		})
	}

	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		out.DailyTrend = append(out.DailyTrend, DailyPoint{Date: d, Attendance: len(daily[d])})
	}

	subjects := make([]string, 0, len(bySubject))
	sum := 0
	for s, ids := range bySubject {
		subjects = append(subjects, s)
		sum += len(ids)
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		n := len(bySubject[s])
		out.SubjectDistribution = append(out.SubjectDistribution, SubjectShare{
			Subject:    s,
			Students:   n,
			Percentage: round(float64(n)/float64(sum)*100, constants.PercentageDecimals),
		})
	}

	if slots := len(roster) * len(days); slots > 0 {
		out.AvgAttendancePct = round(float64(len(presentDays))/float64(slots)*100, constants.PercentageDecimals)
	}
	return out
}

// StudentHistory lists every report row of one student, newest first.
func StudentHistory(rows []report.Row, studentID string) []HistoryEntry {
	var matched []report.Row
	for _, r := range rows {
		if r.StudentID == studentID {
			matched = append(matched, r)
		}
	}
	slices.SortStableFunc(matched, func(a, b report.Row) int {
		return b.Date.Compare(a.Date)
	})

	history := make([]HistoryEntry, 0, len(matched))
	for _, r := range matched {
		t := r.Time
		if t == "" {
			t = "-"
		}
		history = append(history, HistoryEntry{
			Date:    r.Date.Format(isoDateLayout),
			Subject: r.Subject,
			Status:  string(r.Status),
			Time:    t,
		})
	}
	return history
}

// Eligibility splits students into those at or above threshold percent and those below.
func Eligibility(students []StudentSummary, threshold float64) EligibilityReport {
	out := EligibilityReport{
		Threshold:  threshold,
		Eligible:   []StudentSummary{},
		Ineligible: []StudentSummary{},
	}
	for _, s := range students {
		if s.AttendancePercentage >= threshold {
			out.Eligible = append(out.Eligible, s)
		} else {
			out.Ineligible = append(out.Ineligible, s)
		}
	}
	out.EligibleCount = len(out.Eligible)
	out.IneligibleCount = len(out.Ineligible)
	return out
}
