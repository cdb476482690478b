// Package report reads and writes the attendance and student registry workbooks.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Status is the attendance outcome of one student in one session.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Date and time layouts written into attendance sheets.
const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04:05"
)

// RegistryKey is the object key of the student registry workbook.
const RegistryKey = "students.xlsx"

// Session identifies one attendance run.
type Session struct {
	Batch   string    `json:"batch"`
	Class   string    `json:"class"`
	Subject string    `json:"subject"`
	TakenAt time.Time `json:"taken_at"`
}

// Row is one line of an attendance sheet.
type Row struct {
	StudentID   string    `json:"er_number"`
	StudentName string    `json:"student_name"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Class       string    `json:"class"`
	Subject     string    `json:"subject"`
	Batch       string    `json:"batch"`
	Status      Status    `json:"status"`
}

// Present reports whether the row marks the student present.
func (r Row) Present() bool {
	return strings.EqualFold(string(r.Status), string(StatusPresent))
}

// Sheet is a parsed attendance report together with the key it was loaded from.
type Sheet struct {
	Key  string `json:"key"`
	Rows []Row  `json:"rows"`
}

// Key builds the object key of an attendance report:
// <prefix><YYYYMMDD>_<HHMMSS>_<batch>_<class>_<subject>.xlsx with spaces replaced by "_".
func Key(prefix string, s Session) string {
	safe := strings.NewReplacer(" ", "_").Replace
	return fmt.Sprintf("%s%s_%s_%s_%s.xlsx",
		prefix,
		s.TakenAt.Format("20060102_150405"),
		safe(s.Batch),
		safe(s.Class),
		safe(s.Subject),
	)
}

var columnAliases = map[string]string{
	"name":         "student name",
	"student_name": "student name",
	"er_number":    "er number",
	"enrollment":   "er number",
	"er no":        "er number",
	"erno":         "er number",
	"batch name":   "batch",
}

// NormalizeColumn lower-cases and trims a header and maps known aliases.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01-02-06",
	time.RFC3339,
}

// ParseDate accepts the layouts found in attendance sheets written by this and older tools.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
