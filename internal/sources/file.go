package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"fiirank/internal/table"
)

// FileSource reads a previously saved table, for offline runs and tests.
// The format follows the extension: .xlsx, .csv, or .html/.htm.
type FileSource struct {
	name string
	path string
	// Sheet selects the worksheet of an xlsx file; empty means the first.
	Sheet string
	// Selector picks the table of an html file.
	Selector Selector
}

// NewFileSource creates a file-backed source.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (f *FileSource) Name() string { return f.name }

// Fetch loads the file.
func (f *FileSource) Fetch(ctx context.Context) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return table.Table{}, err
	}
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f.path, f.Sheet)
	case ".csv":
		return ReadCSV(f.path)
	case ".html", ".htm":
		file, err := os.Open(f.path)
		if err != nil {
			return table.Table{}, err
		}
		defer file.Close()
		return ParseHTMLTable(file, f.Selector)
	default:
		return table.Table{}, fmt.Errorf("unsupported table file %s", f.path)
	}
}

// ReadXLSX returns the rows of a worksheet, the first row being the header.
func ReadXLSX(path, sheet string) (table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return table.Table{}, fmt.Errorf("sheet %q is empty", sheet)
	}
	return table.New(rows[0], rows[1:]), nil
}

// ReadCSV reads a comma separated file with a header row. A UTF-8 byte
// order mark is ignored.
func ReadCSV(path string) (table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return table.Table{}, err
	}
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to parse csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return table.Table{}, fmt.Errorf("csv %s is empty", path)
	}
	return table.New(records[0], records[1:]), nil
}
