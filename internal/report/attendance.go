package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/roll-call/internal/identity"
	"github.com/xuri/excelize/v2"
)

// AttendanceSheet is the sheet name used in attendance workbooks.
const AttendanceSheet = "Attendance"

// AttendanceHeader is the header row of attendance workbooks.
var AttendanceHeader = []string{"ER Number", "Student Name", "Date", "Time", "Class", "Subject", "Batch", "Status"}

var requiredColumns = []string{"date", "subject", "student name", "er number", "status"}

// ErrMissingColumns is returned when a workbook lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// WriteAttendance renders a session into an xlsx workbook: present students first, then absent.
func WriteAttendance(s Session, present, absent []identity.StudentIdentity) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AttendanceSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeHeader(f, AttendanceSheet, AttendanceHeader); err != nil {
		return nil, err
	}

	date := s.TakenAt.Format(DateLayout)
	clock := s.TakenAt.Format(TimeLayout)
	row := 2
	write := func(students []identity.StudentIdentity, status Status) error {
		for _, st := range students {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []any{st.StudentID, st.DisplayName, date, clock, s.Class, s.Subject, s.Batch, string(status)}
			if err := f.SetSheetRow(AttendanceSheet, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
		return nil
	}
	if err := write(present, StatusPresent); err != nil {
		return nil, err
	}
	if err := write(absent, StatusAbsent); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadAttendance parses the first sheet of an attendance workbook.
// Headers are matched case-insensitively with aliases; rows with unparseable dates are dropped.
func ReadAttendance(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var out []Row
	for _, cells := range rows[1:] {
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}

		date, ok := ParseDate(get("date"))
		if !ok {
			continue
		}
		out = append(out, Row{
			StudentID:   get("er number"),
			StudentName: get("student name"),
			Date:        date,
			Time:        get("time"),
			Class:       get("class"),
			Subject:     get("subject"),
			Batch:       get("batch"),
			Status:      Status(get("status")),
		})
	}
	return out, nil
}

// columnIndex maps normalized header names to their column position; the first occurrence wins.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeColumn(h)
		if _, seen := cols[name]; !seen && name != "" {
			cols[name] = i
		}
	}
	return cols
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return nil
}
