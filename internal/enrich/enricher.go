// Package enrich joins secondary attribute tables onto normalized fund records.
package enrich

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

// Secondary table layout after header canonicalization.
const (
	ColumnBaseName = "fundo"
	ColumnVacancy  = "vacancia"

	// TickerSuffix turns a base fund name into the ticker used by the ranking table.
	TickerSuffix = "11"
)

// ErrMissingColumn is returned when the vacancy table lacks its key or value column.
var ErrMissingColumn = errors.New("vacancy table missing column")

// Result is the outcome of an enrichment pass.
type Result struct {
	Records []fund.Record
	Matched int
	// SecondaryRows is the number of usable keyed rows in the vacancy table.
	SecondaryRows int
}

// Enricher attaches the vacancy rate to each fund.
type Enricher struct {
	parser *numeric.Parser
	logger *slog.Logger
}

// NewEnricher creates an enricher. A nil parser defaults to pt_BR.
func NewEnricher(parser *numeric.Parser, logger *slog.Logger) *Enricher {
	if parser == nil {
		parser = numeric.NewParser(numeric.BrazilianPortuguese)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{parser: parser, logger: logger}
}

// Enrich left-joins the vacancy table onto records by fund id. Funds without a
// match keep an absent vacancy; vacancy rows without a fund are discarded.
// The input slice is not modified.
func (e *Enricher) Enrich(ctx context.Context, records []fund.Record, secondary table.Table) (Result, error) {
	vacancies, err := e.index(ctx, secondary)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Records:       make([]fund.Record, len(records)),
		SecondaryRows: len(vacancies),
	}
	for i, rec := range records {
		v, ok := vacancies[rec.ID]
		if ok {
			res.Matched++
		} else {
			v = numeric.Absent()
		}
		res.Records[i] = rec.With(fund.Vacancy, v)
	}

	e.logger.InfoContext(ctx, "joined vacancy table",
		"funds", len(records),
		"vacancy_rows", res.SecondaryRows,
		"matched", res.Matched,
	)
	return res, nil
}

// index maps ticker to vacancy fraction. The first row for a ticker wins.
func (e *Enricher) index(ctx context.Context, secondary table.Table) (map[string]numeric.Value, error) {
	t := table.Canonicalize(table.New(secondary.Header, secondary.Rows))

	base := t.Index(ColumnBaseName)
	if base < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnBaseName)
	}
	value := t.Index(ColumnVacancy)
	if value < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnVacancy)
	}

	out := make(map[string]numeric.Value, t.Len())
	for _, row := range t.Rows {
		name := strings.TrimSpace(row[base])
		if name == "" {
			continue
		}
		key := JoinKey(name)
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = e.vacancy(ctx, key, row[value])
	}
	return out, nil
}

// vacancy converts percent text ("12,5%") to a fraction. Values outside
// [0,1] are kept so the vacancy screen still judges them.
func (e *Enricher) vacancy(ctx context.Context, key, cell string) numeric.Value {
	v := e.parser.ParsePercent(cell, false).Div(numeric.Of(100))
	if f, ok := v.Float64(); ok && (f < 0 || f > 1) {
		e.logger.WarnContext(ctx, "vacancy out of range",
			"fund", key,
			"raw", cell,
		)
	}
	return v
}

// JoinKey builds the ranking-table ticker for a base fund name.
func JoinKey(baseName string) string {
	return strings.TrimSpace(baseName) + TickerSuffix
}
