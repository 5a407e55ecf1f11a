// Package table holds the raw, string-typed tables produced by the data
// sources before any schema is applied.
package table

import (
	"fmt"
	"strings"
)

// Table is a positional grid of text cells. A cell that is empty after
// trimming whitespace is treated as null.
type Table struct {
	Header []string
	Rows   [][]string
}

// New returns a table, padding or truncating rows to the header width.
func New(header []string, rows [][]string) Table {
	t := Table{Header: append([]string(nil), header...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		t.Rows = append(t.Rows, fit(row, len(header)))
	}
	return t
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// IsNull reports whether a cell is considered missing.
func IsNull(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// Index returns the position of a header, or -1.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row i for the named column, and whether the column exists.
func (t Table) Cell(i int, name string) (string, bool) {
	j := t.Index(name)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	return cell(t.Rows[i], j), true
}

// Column returns every cell in the named column.
func (t Table) Column(name string) ([]string, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cell(row, j)
	}
	return out, nil
}

// DropEmptyColumns returns a copy without the columns whose cells are all null.
// A table with no rows keeps its header.
func (t Table) DropEmptyColumns() Table {
	if len(t.Rows) == 0 {
		return New(t.Header, nil)
	}

	keep := make([]int, 0, len(t.Header))
	for j := range t.Header {
		for _, row := range t.Rows {
			if !IsNull(cell(row, j)) {
				keep = append(keep, j)
				break
			}
		}
	}
	return t.project(keep)
}

// DropColumns returns a copy without the named columns. Unknown names are ignored.
func (t Table) DropColumns(names ...string) Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]int, 0, len(t.Header))
	for j, h := range t.Header {
		if !drop[h] {
			keep = append(keep, j)
		}
	}
	return t.project(keep)
}

// RenameHeaders returns a copy whose headers are mapped through fn.
func (t Table) RenameHeaders(fn func(string) string) Table {
	out := t.clone()
	for j, h := range out.Header {
		out.Header[j] = fn(h)
	}
	return out
}

// Filter returns a copy holding only the rows for which keep returns true.
func (t Table) Filter(keep func(row []string) bool) Table {
	out := Table{Header: append([]string(nil), t.Header...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out
}

func (t Table) project(cols []int) Table {
	out := Table{Header: make([]string, len(cols)), Rows: make([][]string, len(t.Rows))}
	for k, j := range cols {
		out.Header[k] = t.Header[j]
	}
	for i, row := range t.Rows {
		r := make([]string, len(cols))
		for k, j := range cols {
			r[k] = cell(row, j)
		}
		out.Rows[i] = r
	}
	return out
}

func (t Table) clone() Table {
	out := Table{Header: append([]string(nil), t.Header...), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
