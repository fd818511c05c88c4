// Package export renders event and audit logs as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"crudadmin/internal/models"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var eventHeaders = []string{"ID", "Timestamp", "Event", "Status", "User ID", "Session ID", "IP Address", "User Agent", "Resource Type", "Resource ID", "Details"}

var auditHeaders = []string{"ID", "Event ID", "Timestamp", "Resource Type", "Resource ID", "Action", "Previous State", "New State", "Changes"}

// Events writes events as a single-sheet workbook to w.
func Events(w io.Writer, events []models.AdminEventLog) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.EventType),
			string(e.Status),
			e.UserID,
			e.SessionID,
			e.IPAddress,
			e.UserAgent,
			deref(e.ResourceType),
			deref(e.ResourceID),
			string(e.Details),
		})
	}
	return write(w, "Events", eventHeaders, rows, []float64{8, 22, 14, 10, 10, 38, 16, 40, 16, 14, 60})
}

// Audits writes audit entries as a single-sheet workbook to w.
func Audits(w io.Writer, audits []models.AdminAuditLog) error {
	rows := make([][]any, 0, len(audits))
	for _, a := range audits {
		rows = append(rows, []any{
			a.ID,
			a.EventID,
			a.Timestamp.UTC().Format(time.RFC3339),
			a.ResourceType,
			a.ResourceID,
			a.Action,
			string(a.PreviousState),
			string(a.NewState),
			string(a.Changes),
		})
	}
	return write(w, "Audit", auditHeaders, rows, []float64{8, 10, 22, 16, 14, 10, 50, 50, 50})
}

// Filename returns an attachment name such as "events_20240102.xlsx".
func Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("20060102"))
}

func write(w io.Writer, sheet string, headers []string, rows [][]any, widths []float64) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("find sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
