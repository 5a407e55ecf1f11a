package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fiirank/internal/config"
	"fiirank/internal/enrich"
	"fiirank/internal/fund"
	"fiirank/internal/infrastructure"
	"fiirank/internal/normalize"
	"fiirank/internal/screening"
	"fiirank/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var rankingHeader = []string{
	"Fundos", "Setor", "Preço Atual (R$)", "Liquidez Diária (R$)", "P/VP", "Último Dividendo",
	"Dividend Yield", "DY (12M) Acumulado", "DY (12M) Média", "Patrimônio Líquido", "VPA",
	"P/VPA", "Num. Cotistas", "Volatilidade",
}

// row builds a ranking row; pvpa is in the raw form ("9,50" means 0.95),
// yield is the 12-month accumulated yield in percent and vol the volatility.
func row(id, sector, pvpa, yield, vol string) []string {
	return []string{id, sector, "10000", "1.000,0", "0,95", "0,80", "0,8 %", yield + " %", "0,8 %", "1.000.000", "10000", pvpa, "1.000", vol}
}

func primary(rows ...[]string) table.Table {
	return table.New(rankingHeader, rows)
}

func vacancies(rows ...[]string) table.Table {
	return table.New([]string{"#", "Fundo", "Vacância"}, rows)
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestRunRanksFunds(t *testing.T) {
	p := newPipeline(t, Options{Filters: []screening.Filter{screening.Between(fund.PVPA, 0.9, 1.1)}})

	res, err := p.Run(context.Background(),
		primary(
			row("AAAA11", "Papéis", "9,50", "10,0", "5,0"),
			row("BBBB11", "Varejo", "10,50", "12,0", "3,0"),
			row("CCCC11", "Papéis", "12,00", "20,0", "1,0"),
		),
		vacancies([]string{"1", "AAAA", "10,5%"}),
	)
	require.NoError(t, err)

	require.Len(t, res.Ranked, 2)
	assert.Equal(t, "BBBB11", res.Ranked[0].ID)
	assert.Equal(t, 66, res.Ranked[0].Score)
	assert.Equal(t, 1, res.Ranked[0].Position)
	assert.Equal(t, "AAAA11", res.Ranked[1].ID)
	assert.Equal(t, 50, res.Ranked[1].Score)
	assert.Equal(t, 2, res.Ranked[1].Position)

	assert.InDelta(t, 0.105, res.Ranked[1].Get(fund.Vacancy).Or(-1), 1e-12)
	assert.True(t, res.Ranked[0].Get(fund.Vacancy).IsAbsent())

	assert.Equal(t, 3, res.InputRows)
	assert.Equal(t, 3, res.Normalized)
	assert.Equal(t, 1, res.VacancyMatched)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, 2, res.Trace[0].Out)

	want := []struct {
		id      string
		in, out int
	}{
		{StepNormalize, 3, 3},
		{StepEnrich, 3, 3},
		{StepScreen, 3, 2},
		{StepScore, 2, 2},
		{StepRank, 2, 2},
	}
	require.Len(t, res.Steps, len(want))
	for i, w := range want {
		status, in, out := res.Steps[i].Snapshot()
		assert.Equal(t, w.id, res.Steps[i].ID)
		assert.Equal(t, StepStatusCompleted, status, w.id)
		assert.Equal(t, w.in, in, w.id)
		assert.Equal(t, w.out, out, w.id)
		assert.GreaterOrEqual(t, res.Steps[i].Duration().Nanoseconds(), int64(0))
	}
}

func TestRunWithoutVacancyTableSkipsEnrich(t *testing.T) {
	p := newPipeline(t, Options{Filters: []screening.Filter{screening.LessThanOrAbsent(fund.Vacancy, 0.25)}})

	res, err := p.Run(context.Background(), primary(row("AAAA11", "Papéis", "10,0", "10,0", "5,0")), table.Table{})
	require.NoError(t, err)

	status, _, out := res.Steps[1].Snapshot()
	assert.Equal(t, StepStatusSkipped, status)
	assert.Equal(t, 1, out)
	assert.Equal(t, "no vacancy table", res.Steps[1].Message)

	require.Len(t, res.Ranked, 1)
	assert.True(t, res.Ranked[0].Get(fund.Vacancy).IsAbsent())
}

func TestRunDropsFundsWithOutOfRangeVacancy(t *testing.T) {
	p := newPipeline(t, Options{Filters: []screening.Filter{screening.LessThanOrAbsent(fund.Vacancy, 0.25)}})

	res, err := p.Run(context.Background(),
		primary(
			row("AAAA11", "Papéis", "10,0", "10,0", "5,0"),
			row("BBBB11", "Papéis", "10,0", "12,0", "3,0"),
		),
		vacancies([]string{"1", "AAAA", "150%"}),
	)
	require.NoError(t, err)

	require.Len(t, res.Ranked, 1)
	assert.Equal(t, "BBBB11", res.Ranked[0].ID)
	assert.Equal(t, 1, res.VacancyMatched)
}

func TestRunStoresPercentagesAsFractions(t *testing.T) {
	p := newPipeline(t, Options{Filters: []screening.Filter{screening.Between(fund.PVPA, 0.9, 1.1)}})

	res, err := p.Run(context.Background(),
		primary(row("AAAA11", "Papéis", "10,0", "10,5", "5,0")),
		vacancies([]string{"1", "AAAA", "10,5%"}),
	)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 1)

	r := res.Ranked[0]
	assert.InDelta(t, 0.105, r.Get(fund.DY12MAccumulated).Or(-1), 1e-12)
	assert.InDelta(t, 0.105, r.Get(fund.Vacancy).Or(-1), 1e-12, "vacancy and yields share a unit")
}

func TestRunDefaultSequence(t *testing.T) {
	var rows [][]string
	for i := 0; i < 20; i++ {
		sector := "Papéis"
		if i%5 == 0 {
			sector = "Hospital"
		}
		pvpa := fmt.Sprintf("%d,%d0", 8+i%4, i%10)
		rows = append(rows, row(fmt.Sprintf("F%03d11", i), sector, pvpa, fmt.Sprintf("%d,0", 8+i%7), fmt.Sprintf("%d,5", 1+i%9)))
	}

	p := newPipeline(t, Options{})
	res, err := p.Run(context.Background(), primary(rows...), vacancies([]string{"1", "F00111", "50%"}))
	require.NoError(t, err)
	require.Len(t, res.Trace, len(screening.DefaultFilters()))
	require.NotEmpty(t, res.Ranked)

	for i, s := range res.Ranked {
		assert.NotEqual(t, "Hospital", s.Sector)
		pvpa := s.Get(fund.PVPA).Or(-1)
		assert.True(t, pvpa >= 0.9 && pvpa < 1.1, "fund %s p/vpa %v", s.ID, pvpa)
		if i > 0 {
			assert.LessOrEqual(t, s.Score, res.Ranked[i-1].Score)
		}
	}

	summary := res.Summary()
	assert.Equal(t, Stage{Label: "input rows", Funds: 20}, summary[0])
	assert.Equal(t, "scored", summary[len(summary)-1].Label)
	assert.Equal(t, len(res.Ranked), summary[len(summary)-1].Funds)
	assert.Len(t, summary, 2+len(res.Trace)+1)
	assert.Equal(t, len(res.Ranked), res.ScoredCount())
	assert.LessOrEqual(t, len(res.Top(3)), 3)
}

func TestRunFailures(t *testing.T) {
	good := primary(row("AAAA11", "Papéis", "10,0", "10,0", "5,0"))

	tests := []struct {
		name      string
		ctx       func() context.Context
		primary   table.Table
		secondary table.Table
		step      string
		errType   ErrorType
		target    error
	}{
		{
			name:    "missing id column",
			ctx:     context.Background,
			primary: table.New([]string{"Setor", "P/VP"}, [][]string{{"Papéis", "1"}}),
			step:    StepNormalize,
			errType: ErrorTypeValidation,
			target:  normalize.ErrMissingColumn,
		},
		{
			name:      "vacancy table without vacancy column",
			ctx:       context.Background,
			primary:   good,
			secondary: table.New([]string{"Fundo", "Setor"}, [][]string{{"AAAA", "x"}}),
			step:      StepEnrich,
			errType:   ErrorTypeValidation,
			target:    enrich.ErrMissingColumn,
		},
		{
			name: "cancelled",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			primary: good,
			step:    StepNormalize,
			errType: ErrorTypeCancellation,
			target:  context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, Options{})
			res, err := p.Run(tt.ctx(), tt.primary, tt.secondary)
			require.Error(t, err)

			var se *StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.step, se.Step)
			assert.Equal(t, tt.errType, se.Type)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.errType == ErrorTypeValidation, IsValidation(err))
			assert.Contains(t, err.Error(), tt.step)

			require.NotNil(t, res)
			assert.Nil(t, res.Ranked)
			for _, st := range res.Steps {
				if st.ID == tt.step {
					status, _, _ := st.Snapshot()
					assert.Equal(t, StepStatusFailed, status)
				}
			}
		})
	}
}

func TestNewRejectsInvalidFilters(t *testing.T) {
	_, err := New(Options{Logger: quiet, Filters: []screening.Filter{screening.Quantile(fund.Volatility, 0.5, "middle")}})
	assert.ErrorIs(t, err, screening.ErrInvalidMode)
}

func TestRunEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	p := newPipeline(t, Options{Tracer: tp.Tracer(TracerName)})
	_, err := p.Run(context.Background(), primary(row("AAAA11", "Papéis", "10,0", "10,0", "5,0")), table.Table{})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{
		"pipeline.normalize", "pipeline.enrich", "pipeline.screen",
		"pipeline.score", "pipeline.rank", "pipeline.run",
	}, names)
}

func TestRunRecordsMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(config.TelemetryConfig{
		EnableMetrics:  true,
		MetricExporter: "prometheus",
	}, quiet)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	p := newPipeline(t, Options{Metrics: metrics})
	_, err = p.Run(context.Background(), primary(row("AAAA11", "Papéis", "10,0", "10,0", "5,0")), table.Table{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "ranking_runs_total")
	assert.Contains(t, body, `step="screen"`)
}
