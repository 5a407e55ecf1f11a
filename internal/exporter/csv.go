package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes a sheet as CSV into a directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// Write stores sheet as fundos_imobiliarios_YYYY-MM-DD.csv and returns the
// path. An existing file for the same day is replaced.
func (w *CSVWriter) Write(ctx context.Context, sheet Sheet, date time.Time) (string, error) {
	path := filepath.Join(w.dir, FileName(date)+".csv")

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8
	if _, err := file.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(sheet.Header); err != nil {
		return "", fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(sheet.Header))
	for i, row := range sheet.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = formatCell(row[j])
			}
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "Wrote CSV file",
		slog.String("path", path),
		slog.Int("record_count", len(sheet.Rows)))
	return path, nil
}
