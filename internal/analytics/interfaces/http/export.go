package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	analytics "able-iot-cloud/internal/analytics/domain"
)

// WriteSnapshotCSV streams the four read models as CSV sections.
func WriteSnapshotCSV(w io.Writer, snapshot analytics.Snapshot) error {
	writer := csv.NewWriter(w)

	_ = writer.Write([]string{"metric", "device_id", "avg_extension_mm"})
	for _, row := range snapshot.Avg {
		_ = writer.Write([]string{"avg_extension_mm", formatID(row.DeviceID), formatFloat(row.AvgExtensionMM)})
	}

	_ = writer.Write([]string{"metric", "device_id", "extensions", "retractions"})
	for _, row := range snapshot.ExtRet {
		_ = writer.Write([]string{"extension_vs_retraction", formatID(row.DeviceID), formatID(row.Extensions), formatID(row.Retractions)})
	}

	_ = writer.Write([]string{"metric", "device_id", "min_pct", "max_pct", "avg_pct", "last_seen"})
	for _, row := range snapshot.Battery {
		_ = writer.Write([]string{
			"battery_summary", formatID(row.DeviceID),
			formatFloat(row.MinPct), formatFloat(row.MaxPct), formatFloat(row.AvgPct),
			row.LastSeen.Format(time.RFC3339),
		})
	}

	_ = writer.Write([]string{"metric", "device_id", "min_height_mm", "max_height_mm", "avg_height_mm"})
	for _, row := range snapshot.Height {
		_ = writer.Write([]string{
			"platform_height", formatID(row.DeviceID),
			formatFloat(row.MinHeightMM), formatFloat(row.MaxHeightMM), formatFloat(row.AvgHeightMM),
		})
	}

	writer.Flush()
	return writer.Error()
}

// BuildSnapshotXLSX renders the read models as one sheet per metric.
func BuildSnapshotXLSX(snapshot analytics.Snapshot) ([]byte, error) {
	f := excelize.NewFile()

	avgSheet := "avg_extension"
	f.SetSheetName("Sheet1", avgSheet)
	_ = f.SetCellValue(avgSheet, "A1", "Device")
	_ = f.SetCellValue(avgSheet, "B1", "Avg Extension (mm)")
	for i, row := range snapshot.Avg {
		n := i + 2
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("A%d", n), row.DeviceID)
		_ = f.SetCellValue(avgSheet, fmt.Sprintf("B%d", n), row.AvgExtensionMM)
	}

	extRetSheet := "extension_vs_retraction"
	_, _ = f.NewSheet(extRetSheet)
	_ = f.SetCellValue(extRetSheet, "A1", "Device")
	_ = f.SetCellValue(extRetSheet, "B1", "Extensions")
	_ = f.SetCellValue(extRetSheet, "C1", "Retractions")
	for i, row := range snapshot.ExtRet {
		n := i + 2
		_ = f.SetCellValue(extRetSheet, fmt.Sprintf("A%d", n), row.DeviceID)
		_ = f.SetCellValue(extRetSheet, fmt.Sprintf("B%d", n), row.Extensions)
		_ = f.SetCellValue(extRetSheet, fmt.Sprintf("C%d", n), row.Retractions)
	}

	batterySheet := "battery"
	_, _ = f.NewSheet(batterySheet)
	_ = f.SetCellValue(batterySheet, "A1", "Device")
	_ = f.SetCellValue(batterySheet, "B1", "Min (%)")
	_ = f.SetCellValue(batterySheet, "C1", "Max (%)")
	_ = f.SetCellValue(batterySheet, "D1", "Avg (%)")
	_ = f.SetCellValue(batterySheet, "E1", "Last Seen")
	for i, row := range snapshot.Battery {
		n := i + 2
		_ = f.SetCellValue(batterySheet, fmt.Sprintf("A%d", n), row.DeviceID)
		_ = f.SetCellValue(batterySheet, fmt.Sprintf("B%d", n), row.MinPct)
		_ = f.SetCellValue(batterySheet, fmt.Sprintf("C%d", n), row.MaxPct)
		_ = f.SetCellValue(batterySheet, fmt.Sprintf("D%d", n), row.AvgPct)
		_ = f.SetCellValue(batterySheet, fmt.Sprintf("E%d", n), row.LastSeen.Format(time.RFC3339))
	}

	heightSheet := "platform_height"
	_, _ = f.NewSheet(heightSheet)
	_ = f.SetCellValue(heightSheet, "A1", "Device")
	_ = f.SetCellValue(heightSheet, "B1", "Min (mm)")
	_ = f.SetCellValue(heightSheet, "C1", "Max (mm)")
	_ = f.SetCellValue(heightSheet, "D1", "Avg (mm)")
	for i, row := range snapshot.Height {
		n := i + 2
		_ = f.SetCellValue(heightSheet, fmt.Sprintf("A%d", n), row.DeviceID)
		_ = f.SetCellValue(heightSheet, fmt.Sprintf("B%d", n), row.MinHeightMM)
		_ = f.SetCellValue(heightSheet, fmt.Sprintf("C%d", n), row.MaxHeightMM)
		_ = f.SetCellValue(heightSheet, fmt.Sprintf("D%d", n), row.AvgHeightMM)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSnapshotPDF renders a compact fleet metrics report.
func BuildSnapshotPDF(snapshot analytics.Snapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Fleet Metrics Report")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Avg Ext (mm)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Extensions", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Retractions", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	extRet := make(map[int64]analytics.ExtensionRetraction, len(snapshot.ExtRet))
	for _, row := range snapshot.ExtRet {
		extRet[row.DeviceID] = row
	}
	for _, row := range snapshot.Avg {
		transitions := extRet[row.DeviceID]
		pdf.CellFormat(30, 6, formatID(row.DeviceID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", row.AvgExtensionMM), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatID(transitions.Extensions), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatID(transitions.Retractions), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Battery Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Battery Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Battery Avg", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range snapshot.Battery {
		pdf.CellFormat(30, 6, formatID(row.DeviceID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.MinPct), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.MaxPct), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", row.AvgPct), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
