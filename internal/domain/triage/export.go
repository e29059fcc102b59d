package triage

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const queueSheet = "Queue"

var queueHeaders = []string{
	"Position", "Case ID", "Patient", "Priority", "Triage Level", "Risk Score",
	"Est. Wait (min)", "Status", "Alerts", "Arrived", "Waiting (min)",
}

var queueColumnWidths = []float64{10, 38, 18, 10, 12, 10, 15, 16, 40, 20, 14}

// WriteQueueXLSX writes cases, already in queue order, as a workbook with a
// single "Queue" sheet.
func WriteQueueXLSX(w io.Writer, cases []*Case, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(queueSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(queueHeaders))
	for i, h := range queueHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(queueSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(queueHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(queueSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, width := range queueColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(queueSheet, col, col, width); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	for i, c := range cases {
		row := []interface{}{
			i + 1,
			c.ID.String(),
			c.PatientRef,
			string(c.Priority),
			c.TriageLevel,
			c.RiskScore,
			c.EstimatedWaitMinutes,
			string(c.Status),
			alertSummary(c.Alerts),
			c.CreatedAt.UTC().Format(time.RFC3339),
			int(now.Sub(c.CreatedAt).Minutes()),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(queueSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(queueSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func alertSummary(alerts []Alert) string {
	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Kind, a.Severity))
	}
	return strings.Join(parts, ", ")
}
