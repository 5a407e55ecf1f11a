package exporter

import (
	"fmt"
	"strconv"
	"time"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

// Derived column names.
const (
	ColumnPosition        = "posicao"
	ColumnYieldRank       = "p_dy"
	ColumnVolatilityRank  = "p_vol"
	ColumnValuationSignal = "sig"
	ColumnScore           = "score"
)

// FilePrefix starts every exported file name.
const FilePrefix = "fundos_imobiliarios_"

// Sheet is a ranking flattened into cells. A cell holds a string, a float64,
// an int or nil for an absent value.
type Sheet struct {
	Header []string
	Rows   [][]any
}

// FileName returns the export name for date, without extension.
func FileName(date time.Time) string {
	return FilePrefix + date.Format("2006-01-02")
}

// BuildSheet lays out ranked funds best first: position, id, sector, every
// schema column at least one fund has, the extra source columns, then the
// score components and the score.
func BuildSheet(ranked []fund.Scored, extras []string) Sheet {
	var fields []fund.Field
	for _, f := range fund.Fields() {
		for _, s := range ranked {
			if !s.Get(f).IsAbsent() {
				fields = append(fields, f)
				break
			}
		}
	}

	header := []string{ColumnPosition, fund.ColumnID, fund.ColumnSector}
	for _, f := range fields {
		header = append(header, f.Column())
	}
	header = append(header, extras...)
	header = append(header, ColumnYieldRank, ColumnVolatilityRank, ColumnValuationSignal, ColumnScore)

	rows := make([][]any, len(ranked))
	for i, s := range ranked {
		row := make([]any, 0, len(header))
		row = append(row, s.Position, s.ID, s.Sector)
		for _, f := range fields {
			row = append(row, cellValue(s.Get(f)))
		}
		for _, e := range extras {
			row = append(row, s.Extra[e])
		}
		row = append(row,
			cellValue(s.YieldRank),
			cellValue(s.VolatilityRank),
			cellValue(s.ValuationSignal),
		)
		if s.HasScore {
			row = append(row, s.Score)
		} else {
			row = append(row, nil)
		}
		rows[i] = row
	}
	return Sheet{Header: header, Rows: rows}
}

func cellValue(v numeric.Value) any {
	if f, ok := v.Float64(); ok {
		return f
	}
	return nil
}

// formatCell renders a cell for text output. Floats keep full precision.
func formatCell(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
