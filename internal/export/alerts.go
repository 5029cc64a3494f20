package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/smukkama/sentinel-server/internal/database"
)

// AlertSheet is the worksheet name of an alert history export
const AlertSheet = "Alerts"

const timeLayout = "2006-01-02 15:04:05"

// AlertHeader is the column order of an alert history export
var AlertHeader = []string{
	"Timestamp",
	"Alert ID",
	"User ID",
	"Severity",
	"Category",
	"Anomaly Type",
	"Title",
	"Message",
	"Value",
	"Recommendation",
	"Resolved",
	"Resolved At",
}

var alertColumnWidths = []float64{20, 38, 38, 10, 14, 18, 28, 50, 10, 60, 10, 20}

// AlertsWorkbook renders alerts into an XLSX workbook with a frozen header row
func AlertsWorkbook(alerts []*database.Alert) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(AlertSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	criticalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create severity style: %w", err)
	}

	for col, header := range AlertHeader {
		if err := setCell(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, err
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(AlertSheet, name, name, alertColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(AlertHeader))
	if err := f.SetCellStyle(AlertSheet, "A1", last+"1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, a := range alerts {
		row := i + 2
		if err := writeAlertRow(f, row, a); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if a.Type == "CRITICAL" {
			cell, _ := excelize.CoordinatesToCellName(4, row)
			if err := f.SetCellStyle(AlertSheet, cell, cell, criticalStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(AlertSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAlertRow(f *excelize.File, row int, a *database.Alert) error {
	resolved := "No"
	resolvedAt := ""
	if a.Resolved {
		resolved = "Yes"
	}
	if a.ResolvedAt != nil {
		resolvedAt = a.ResolvedAt.UTC().Format(timeLayout)
	}

	values := []any{
		a.Timestamp.UTC().Format(timeLayout),
		a.ID.String(),
		a.UserID.String(),
		a.Type,
		a.Category,
		a.AnomalyType,
		a.Title,
		a.Message,
		nil,
		a.Recommendation,
		resolved,
		resolvedAt,
	}
	if a.Value != nil {
		values[8] = *a.Value
	}

	for col, v := range values {
		if v == nil {
			continue
		}
		if err := setCell(f, col+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	return f.SetCellValue(AlertSheet, cell, value)
}
