package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the ranking.
const SheetName = "Ranking"

// XLSXWriter writes a sheet as an Excel workbook into a directory.
type XLSXWriter struct {
	dir    string
	logger *slog.Logger
}

// NewXLSXWriter creates a workbook writer.
func NewXLSXWriter(dir string, logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{dir: dir, logger: logger}
}

// Write stores sheet as fundos_imobiliarios_YYYY-MM-DD.xlsx and returns the
// path. The header row is bold, frozen and carries an auto filter.
func (w *XLSXWriter) Write(ctx context.Context, sheet Sheet, date time.Time) (string, error) {
	path := filepath.Join(w.dir, FileName(date)+".xlsx")
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return "", fmt.Errorf("open stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return "", fmt.Errorf("freeze header: %w", err)
	}

	header := make([]any, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return "", fmt.Errorf("flush sheet: %w", err)
	}

	if len(sheet.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(sheet.Header), len(sheet.Rows)+1)
		if err != nil {
			return "", err
		}
		if err := f.AutoFilter(SheetName, "A1:"+last, nil); err != nil {
			return "", fmt.Errorf("set auto filter: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	w.logger.InfoContext(ctx, "Wrote XLSX file",
		slog.String("path", path),
		slog.Int("record_count", len(sheet.Rows)))
	return path, nil
}
