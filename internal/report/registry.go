package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SummarySheet is the registry sheet listing every student once.
const SummarySheet = "Batch Info"

const registryTimeLayout = "2006-01-02 15:04:05"

var (
	batchSheetHeader   = []string{"ER Number", "Student Name", "Parent Phone", "Batch Name", "Upload Date & Time"}
	summarySheetHeader = []string{"Batch Name", "ER Number", "Student Name", "Parent Phone", "Last Updated"}
)

// Student is one entry of the student registry.
type Student struct {
	Batch       string    `json:"batch"`
	StudentID   string    `json:"er_number"`
	Name        string    `json:"name"`
	ParentPhone string    `json:"parent_phone,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateRegistry appends a registration to the registry workbook.
// existing may be nil to start a new workbook. The batch sheet gets a row per registration;
// the summary sheet gets one row per (batch, student id).
func UpdateRegistry(existing []byte, s Student) ([]byte, error) {
	f, fresh, err := openOrCreate(existing)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	batchSheet := SheetName(s.Batch)
	when := s.UpdatedAt.Format(registryTimeLayout)

	if err := ensureSheet(f, batchSheet, batchSheetHeader); err != nil {
		return nil, err
	}
	if err := appendRow(f, batchSheet, []any{s.StudentID, s.Name, s.ParentPhone, s.Batch, when}); err != nil {
		return nil, err
	}

	if err := ensureSheet(f, SummarySheet, summarySheetHeader); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	known := false
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if len(r) >= 2 && strings.TrimSpace(r[0]) == s.Batch && strings.TrimSpace(r[1]) == s.StudentID {
			known = true
			break
		}
	}
	if !known {
		if err := appendRow(f, SummarySheet, []any{s.Batch, s.StudentID, s.Name, s.ParentPhone, when}); err != nil {
			return nil, err
		}
	}

	if fresh && batchSheet != "Sheet1" {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			if err := f.DeleteSheet("Sheet1"); err != nil {
				return nil, fmt.Errorf("remove default sheet: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadRegistry lists students from the summary sheet, or from the first sheet of
// workbooks that predate it. Students without an id are skipped.
func ReadRegistry(data []byte) ([]Student, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := SummarySheet
	if idx, _ := f.GetSheetIndex(SummarySheet); idx < 0 {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, nil
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	idCol, hasID := cols["er number"]
	nameCol, hasName := cols["student name"]
	if !hasID || !hasName {
		// Unlabelled registries carry the id and the name in the first two columns.
		idCol, nameCol = 0, 1
	}

	var out []Student
	for _, cells := range rows[1:] {
		cell := func(i int, ok bool) string {
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}
		id := cell(idCol, true)
		if id == "" {
			continue
		}
		batchCol, hasBatch := cols["batch"]
		phoneCol, hasPhone := cols["parent phone"]
		updatedCol, hasUpdated := cols["last updated"]
		st := Student{
			Batch:       cell(batchCol, hasBatch),
			StudentID:   id,
			Name:        cell(nameCol, true),
			ParentPhone: cell(phoneCol, hasPhone),
		}
		if t, err := time.Parse(registryTimeLayout, cell(updatedCol, hasUpdated)); err == nil {
			st.UpdatedAt = t
		}
		out = append(out, st)
	}
	return out, nil
}

// SheetName makes a batch name usable as a worksheet name.
func SheetName(batch string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(batch))
	if name == "" {
		name = "Unassigned"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func openOrCreate(existing []byte) (*excelize.File, bool, error) {
	if len(existing) == 0 {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(existing))
	if err != nil {
		return nil, false, fmt.Errorf("open workbook: %w", err)
	}
	return f, false, nil
}

func ensureSheet(f *excelize.File, sheet string, header []string) error {
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return writeHeader(f, sheet, header)
}

func appendRow(f *excelize.File, sheet string, values []any) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("locate row: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}
