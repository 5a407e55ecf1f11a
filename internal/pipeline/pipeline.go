package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fiirank/internal/enrich"
	"fiirank/internal/fund"
	"fiirank/internal/infrastructure"
	"fiirank/internal/normalize"
	"fiirank/internal/numeric"
	"fiirank/internal/scoring"
	"fiirank/internal/screening"
	"fiirank/internal/table"
)

// TracerName names the spans emitted by a run.
const TracerName = "fiirank.pipeline"

// Options configures a Pipeline. Zero values select the defaults: pt_BR
// parsing, the default screening sequence, slog.Default, the global tracer
// and no metrics.
type Options struct {
	Parser  *numeric.Parser
	Filters []screening.Filter
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *infrastructure.PipelineMetrics
}

// Pipeline runs normalize, enrich, screen, score and rank in order.
type Pipeline struct {
	steps   []Step
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// Result is the outcome of one run.
type Result struct {
	// Ranked holds the scored funds, best first.
	Ranked []fund.Scored
	// ExtraColumns lists the retained non-schema columns, in source order.
	ExtraColumns []string

	InputRows         int
	DroppedMissing    int
	DroppedUnparsable int
	Normalized        int
	VacancyMatched    int
	Trace             screening.Trace

	Steps    []*StepState
	Duration time.Duration
}

// New assembles a pipeline. It fails if a filter is invalid.
func New(opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	filters := opts.Filters
	if filters == nil {
		filters = screening.DefaultFilters()
	}

	screen, err := screening.NewEngine(filters, logger)
	if err != nil {
		return nil, fmt.Errorf("build screening engine: %w", err)
	}

	return &Pipeline{
		steps: []Step{
			&normalizeStep{baseStep{StepNormalize, "Normalize ranking table"}, normalize.NewNormalizer(opts.Parser, logger)},
			&enrichStep{baseStep{StepEnrich, "Join vacancy table"}, enrich.NewEnricher(opts.Parser, logger)},
			&screenStep{baseStep{StepScreen, "Apply screening filters"}, screen},
			&scoreStep{baseStep{StepScore, "Score funds"}, scoring.NewEngine(logger)},
			&rankStep{baseStep{StepRank, "Rank funds"}},
		},
		logger:  logger,
		tracer:  tracer,
		metrics: opts.Metrics,
	}, nil
}

// Steps returns the step sequence.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Run executes every step against primary (the ranking table) and secondary
// (the vacancy table, possibly empty). Step failures are returned as
// *StepError.
func (p *Pipeline) Run(ctx context.Context, primary, secondary table.Table) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.Int("pipeline.input_rows", primary.Len())))
	defer span.End()

	state := &State{Primary: primary, Secondary: secondary}
	res := &Result{Steps: make([]*StepState, len(p.steps))}
	for i, step := range p.steps {
		res.Steps[i] = NewStepState(step.ID(), step.Name())
	}

	for i, step := range p.steps {
		if err := p.runStep(ctx, step, state, res.Steps[i]); err != nil {
			infrastructure.RecordError(ctx, err)
			res.Duration = time.Since(start)
			p.metrics.RecordRun(ctx, res.Duration, 0, err)
			p.logger.ErrorContext(ctx, "ranking run failed",
				"step", step.ID(),
				"error", err,
			)
			return res, err
		}
	}

	res.Ranked = state.Scored
	res.ExtraColumns = state.Normalized.ExtraColumns
	res.InputRows = state.Normalized.InputRows
	res.DroppedMissing = state.Normalized.DroppedMissing
	res.DroppedUnparsable = state.Normalized.DroppedUnparsable
	res.Normalized = len(state.Normalized.Records)
	res.VacancyMatched = state.Matched
	res.Trace = state.Trace
	res.Duration = time.Since(start)

	for _, s := range res.Ranked {
		if s.HasScore {
			p.metrics.RecordScore(ctx, s.Score)
		}
	}
	p.metrics.RecordRun(ctx, res.Duration, len(res.Ranked), nil)
	span.SetAttributes(attribute.Int("pipeline.ranked", len(res.Ranked)))

	p.logger.InfoContext(ctx, "ranking run completed",
		"input_rows", res.InputRows,
		"normalized", res.Normalized,
		"ranked", len(res.Ranked),
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step, state *State, st *StepState) error {
	if err := ctx.Err(); err != nil {
		st.Fail(err)
		return newStepError(step.ID(), err)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline."+step.ID(),
		trace.WithAttributes(attribute.String("step.id", step.ID())))
	defer span.End()

	in := state.Len()
	st.Start(in)
	span.SetAttributes(attribute.Int("step.records_in", in))

	if s, ok := step.(skipper); ok {
		if reason := s.SkipReason(state); reason != "" {
			st.Skip(reason)
			span.AddEvent("step.skipped", trace.WithAttributes(attribute.String("reason", reason)))
			p.logger.WarnContext(ctx, "step skipped", "step", step.ID(), "reason", reason)
			return nil
		}
	}

	if err := step.Execute(ctx, state); err != nil {
		st.Fail(err)
		infrastructure.RecordError(ctx, err)
		p.metrics.RecordStep(ctx, step.ID(), st.Duration(), 0, err)
		return newStepError(step.ID(), err)
	}

	out := state.Len()
	st.Complete(out)
	span.SetAttributes(attribute.Int("step.records_out", out))
	p.metrics.RecordStep(ctx, step.ID(), st.Duration(), out, nil)
	p.logger.DebugContext(ctx, "step completed",
		"step", step.ID(),
		"in", in,
		"out", out,
		"duration", st.Duration(),
	)
	return nil
}
