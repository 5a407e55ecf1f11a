// Package normalize turns a raw ranking table into typed fund records.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
	"fiirank/internal/table"
)

// ErrMissingColumn is returned when a column the schema requires is not in the table.
var ErrMissingColumn = errors.New("missing required column")

// Result is the outcome of a normalization pass.
type Result struct {
	Records []fund.Record
	// ExtraColumns lists, in table order, the columns kept verbatim in Record.Extra.
	ExtraColumns []string

	InputRows int
	// DroppedMissing counts rows with a null required cell.
	DroppedMissing int
	// DroppedUnparsable counts rows whose required cell was present but not a number.
	DroppedUnparsable int
}

// Normalizer applies the fund schema to raw tables.
type Normalizer struct {
	parser *numeric.Parser
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil parser defaults to pt_BR.
func NewNormalizer(parser *numeric.Parser, logger *slog.Logger) *Normalizer {
	if parser == nil {
		parser = numeric.NewParser(numeric.BrazilianPortuguese)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{parser: parser, logger: logger}
}

// Normalize cleans raw and returns one record per usable row.
//
// Empty columns are dropped and headers canonicalized before anything else.
// Rows with a null required cell are removed, then every schema column is
// parsed according to its group and the fixed corrections are applied.
// Malformed optional cells become absent and never drop the row.
func (n *Normalizer) Normalize(ctx context.Context, raw table.Table) (Result, error) {
	res := Result{InputRows: raw.Len()}

	t := table.Canonicalize(raw.DropEmptyColumns())

	if t.Index(fund.ColumnID) < 0 {
		return res, fmt.Errorf("%w: %s", ErrMissingColumn, fund.ColumnID)
	}
	required := make([]int, 0, len(fund.RequiredFields()))
	for _, f := range fund.RequiredFields() {
		j := t.Index(f.Column())
		if j < 0 {
			return res, fmt.Errorf("%w: %s", ErrMissingColumn, f.Column())
		}
		required = append(required, j)
	}

	complete := t.Filter(func(row []string) bool {
		for _, j := range required {
			if table.IsNull(row[j]) {
				return false
			}
		}
		return true
	})
	res.DroppedMissing = t.Len() - complete.Len()

	layout := newLayout(complete.Header)
	res.ExtraColumns = layout.extraNames

	res.Records = make([]fund.Record, 0, complete.Len())
	for _, row := range complete.Rows {
		rec := n.record(row, layout)
		if missing := rec.MissingRequired(); len(missing) > 0 {
			res.DroppedUnparsable++
			n.logger.DebugContext(ctx, "dropping fund with unparsable required field",
				"fund", rec.ID,
				"field", missing[0].Column(),
			)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	n.logger.InfoContext(ctx, "normalized ranking table",
		"input_rows", res.InputRows,
		"output_rows", len(res.Records),
		"dropped_missing", res.DroppedMissing,
		"dropped_unparsable", res.DroppedUnparsable,
		"extra_columns", len(res.ExtraColumns),
	)

	return res, nil
}

type columnLayout struct {
	id, sector int
	fields     map[int]fund.Field
	extra      []int
	extraNames []string
}

func newLayout(header []string) columnLayout {
	l := columnLayout{id: -1, sector: -1, fields: make(map[int]fund.Field)}
	for j, h := range header {
		switch h {
		case fund.ColumnID:
			l.id = j
			continue
		case fund.ColumnSector:
			l.sector = j
			continue
		}
		if f, ok := fund.Lookup(h); ok && f.Def().Group != fund.GroupEnrichment {
			l.fields[j] = f
			continue
		}
		l.extra = append(l.extra, j)
		l.extraNames = append(l.extraNames, h)
	}
	return l
}

func (n *Normalizer) record(row []string, l columnLayout) fund.Record {
	var rec fund.Record
	if l.id >= 0 {
		rec.ID = strings.TrimSpace(row[l.id])
	}
	if l.sector >= 0 {
		rec.Sector = strings.TrimSpace(row[l.sector])
	}

	for j, f := range l.fields {
		rec.Set(f, n.parse(row[j], f.Def()))
	}

	if len(l.extra) > 0 {
		rec.Extra = make(map[string]string, len(l.extra))
		for k, j := range l.extra {
			rec.Extra[l.extraNames[k]] = row[j]
		}
	}
	return rec
}

// parse converts one cell following its group policy and correction.
// Percent cells are stored as fractions (8,5 % is 0.085).
func (n *Normalizer) parse(cell string, def fund.FieldDef) numeric.Value {
	var v numeric.Value
	switch def.Group {
	case fund.GroupPercent:
		v = n.parser.ParsePercent(cell, true).Div(numeric.Of(100))
	case fund.GroupMoney:
		v = n.parser.Parse(cell, true)
	default:
		v = n.parser.Parse(cell, false)
	}
	if def.Divisor != 0 {
		v = v.Div(numeric.Of(def.Divisor))
	}
	return v
}
