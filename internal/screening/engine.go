package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

// ErrInvalidMode is returned for a quantile mode other than larger or smaller.
var ErrInvalidMode = errors.New("invalid quantile mode")

// StepTrace records what one filter did.
type StepTrace struct {
	Filter string
	Kind   Kind
	In     int
	Out    int
	// Cutoff is the quantile value used; absent for absolute filters.
	Cutoff numeric.Value
}

// Trace lists the filters in the order they were applied.
type Trace []StepTrace

// Engine applies an ordered sequence of filters.
type Engine struct {
	filters []Filter
	logger  *slog.Logger
}

// NewEngine validates every descriptor and returns an engine that applies
// them in the given order. An invalid descriptor fails construction.
func NewEngine(filters []Filter, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for i, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return &Engine{
		filters: append([]Filter(nil), filters...),
		logger:  logger,
	}, nil
}

// Filters returns a copy of the configured sequence.
func (e *Engine) Filters() []Filter {
	return append([]Filter(nil), e.filters...)
}

// Apply runs every filter in order. Each filter sees only the rows that
// survived the previous ones, so quantile cutoffs depend on the order.
// The input slice is not modified.
func (e *Engine) Apply(ctx context.Context, records []fund.Record) ([]fund.Record, Trace) {
	current := append([]fund.Record(nil), records...)
	trace := make(Trace, 0, len(e.filters))

	for _, f := range e.filters {
		step := StepTrace{Filter: f.Name, Kind: f.Kind, In: len(current)}

		switch f.Kind {
		case KindQuantile:
			current, step.Cutoff = applyQuantile(current, f)
		default:
			current = applyAbsolute(current, f)
		}

		step.Out = len(current)
		trace = append(trace, step)

		e.logger.DebugContext(ctx, "applied filter",
			"filter", f.Name,
			"kind", f.Kind.String(),
			"in", step.In,
			"out", step.Out,
			"cutoff", step.Cutoff.String(),
		)
	}

	e.logger.InfoContext(ctx, "screening complete",
		"filters", len(e.filters),
		"in", len(records),
		"out", len(current),
	)
	return current, trace
}

func applyAbsolute(records []fund.Record, f Filter) []fund.Record {
	out := make([]fund.Record, 0, len(records))
	for _, r := range records {
		if f.keep(r) {
			out = append(out, r)
		}
	}
	return out
}
