package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiirank/internal/exporter"
	"fiirank/internal/fund"
	"fiirank/internal/pipeline"
	"fiirank/internal/screening"
	"fiirank/internal/sources"
	"fiirank/internal/storage"
	"fiirank/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var clock = func() time.Time { return time.Date(2024, 3, 7, 18, 30, 0, 0, time.UTC) }

func row(id, sector, pvpa, yield, vol string) []string {
	return []string{id, sector, "10000", "1.000,0", "95", "0,80", "0,8 %", yield + " %", "0,8 %", "1.000.000", "10000", pvpa, "1.000", vol, "Gestora " + id}
}

func inputs() sources.Inputs {
	header := []string{
		"Fundos", "Setor", "Preço Atual (R$)", "Liquidez Diária (R$)", "P/VP", "Último Dividendo",
		"Dividend Yield", "DY (12M) Acumulado", "DY (12M) Média", "Patrimônio Líquido", "VPA",
		"P/VPA", "Num. Cotistas", "Volatilidade", "Gestora",
	}
	return sources.Inputs{
		Primary: table.New(header, [][]string{
			row("AAAA11", "Papéis", "9,50", "10,0", "5,0"),
			row("BBBB11", "Varejo", "10,50", "12,0", "3,0"),
			row("CCCC11", "Papéis", "12,00", "20,0", "1,0"),
		}),
		Secondary: table.New([]string{"Fundo", "Vacância"}, [][]string{{"AAAA", "10,5%"}}),
	}
}

type fakeFetcher struct {
	in    sources.Inputs
	err   error
	block chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context) (sources.Inputs, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return sources.Inputs{}, ctx.Err()
		}
	}
	return f.in, f.err
}

type fakePublisher struct {
	sheet exporter.Sheet
	err   error
}

func (p *fakePublisher) Write(_ context.Context, sheet exporter.Sheet) error {
	p.sheet = sheet
	return p.err
}

type failingWriter struct{}

func (failingWriter) Write(context.Context, exporter.Sheet, time.Time) (string, error) {
	return "", errors.New("disk full")
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{
		Logger:  quiet,
		Filters: []screening.Filter{screening.Between(fund.PVPA, 0.9, 1.1)},
	})
	require.NoError(t, err)
	return p
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRefresh(t *testing.T) {
	dir := t.TempDir()
	publisher := &fakePublisher{}
	store := newStore(t)
	svc := NewRankingService(RankingOptions{
		Fetcher:   &fakeFetcher{in: inputs()},
		Pipeline:  newPipeline(t),
		Files:     []FileWriter{exporter.NewCSVWriter(dir, quiet), exporter.NewXLSXWriter(dir, quiet)},
		Publisher: publisher,
		Store:     store,
		Logger:    quiet,
		Clock:     clock,
	})

	report, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "fundos_imobiliarios_2024-03-07.csv"),
		filepath.Join(dir, "fundos_imobiliarios_2024-03-07.xlsx"),
	}, report.Files)
	for _, f := range report.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
	assert.Empty(t, report.Warnings)
	assert.Contains(t, publisher.sheet.Header, "gestora")
	assert.Len(t, publisher.sheet.Rows, 2)

	run := report.Run
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, clock(), run.CreatedAt)
	assert.Equal(t, 3, run.InputRows)
	assert.Equal(t, 2, run.Scored)
	assert.Equal(t, 1, run.VacancyMatched)
	assert.Equal(t, storage.Stage{Label: "input rows", Funds: 3}, run.Stages[0])

	require.Len(t, run.Funds, 2)
	best := run.Funds[0]
	assert.Equal(t, "BBBB11", best.ID)
	require.NotNil(t, best.Score)
	assert.Equal(t, 66, *best.Score)
	assert.InDelta(t, 1.05, best.Values["p/vpa"], 1e-12)
	assert.Equal(t, "Gestora BBBB11", best.Extra["gestora"])
	assert.InDelta(t, 0.105, run.Funds[1].Values["vacancia"], 1e-12)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, run.Funds, latest.Funds)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Scored, got.Scored)

	runs, err := svc.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRefreshWithoutStore(t *testing.T) {
	svc := NewRankingService(RankingOptions{
		Fetcher:  &fakeFetcher{in: inputs()},
		Pipeline: newPipeline(t),
		Logger:   quiet,
	})
	ctx := context.Background()

	_, err := svc.Latest(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)
	runs, err := svc.Runs(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	report, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Files)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Same(t, report.Run, latest)

	runs, err = svc.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Funds)
	assert.NotNil(t, latest.Funds, "listing does not strip the cached run")

	_, err = svc.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRefreshFailures(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(t *testing.T) RankingOptions
		wantErr string
	}{
		{
			name: "fetch",
			opts: func(t *testing.T) RankingOptions {
				return RankingOptions{Fetcher: &fakeFetcher{err: errors.New("fetch ranking: timeout")}, Pipeline: newPipeline(t)}
			},
			wantErr: "fetch ranking: timeout",
		},
		{
			name: "pipeline",
			opts: func(t *testing.T) RankingOptions {
				bad := sources.Inputs{Primary: table.New([]string{"Setor"}, [][]string{{"x"}})}
				return RankingOptions{Fetcher: &fakeFetcher{in: bad}, Pipeline: newPipeline(t)}
			},
			wantErr: "run pipeline",
		},
		{
			name: "export",
			opts: func(t *testing.T) RankingOptions {
				return RankingOptions{Fetcher: &fakeFetcher{in: inputs()}, Pipeline: newPipeline(t), Files: []FileWriter{failingWriter{}}}
			},
			wantErr: "export ranking: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts(t)
			opts.Logger = quiet
			opts.Store = newStore(t)
			svc := NewRankingService(opts)

			_, err := svc.Refresh(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			_, err = svc.Latest(context.Background())
			assert.ErrorIs(t, err, ErrRunNotFound, "failed refreshes store nothing")
		})
	}
}

func TestRefreshPipelineErrorKeepsStepError(t *testing.T) {
	bad := sources.Inputs{Primary: table.New([]string{"Setor"}, [][]string{{"x"}})}
	svc := NewRankingService(RankingOptions{Fetcher: &fakeFetcher{in: bad}, Pipeline: newPipeline(t), Logger: quiet})

	_, err := svc.Refresh(context.Background())
	var se *pipeline.StepError
	require.ErrorAs(t, err, &se)
	assert.True(t, pipeline.IsValidation(err))
}

func TestRefreshPublisherFailureIsWarning(t *testing.T) {
	svc := NewRankingService(RankingOptions{
		Fetcher:   &fakeFetcher{in: inputs()},
		Pipeline:  newPipeline(t),
		Publisher: &fakePublisher{err: errors.New("quota exceeded")},
		Logger:    quiet,
	})

	report, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "quota exceeded")
}

func TestRefreshIsExclusive(t *testing.T) {
	fetcher := &fakeFetcher{in: inputs(), block: make(chan struct{})}
	svc := NewRankingService(RankingOptions{Fetcher: fetcher, Pipeline: newPipeline(t), Logger: quiet})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := svc.Refresh(context.Background())
		return errors.Is(err, ErrRefreshRunning)
	}, time.Second, 5*time.Millisecond)

	close(fetcher.block)
	require.NoError(t, <-done)

	_, err := svc.Refresh(context.Background())
	assert.NoError(t, err)
}

func TestHealthService(t *testing.T) {
	svc := NewRankingService(RankingOptions{Fetcher: &fakeFetcher{in: inputs()}, Pipeline: newPipeline(t), Logger: quiet})
	hs := NewHealthService("1.2.3", svc, time.Hour, quiet)
	ctx := context.Background()

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, "1.2.3", live.Version)
	assert.Contains(t, live.Runtime, "goroutines")

	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "no ranking run yet", ready.Services["ranking"].Message)

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", hs.ReadinessCheck(ctx).Status)

	stale := NewRankingService(RankingOptions{
		Fetcher: &fakeFetcher{in: inputs()}, Pipeline: newPipeline(t), Logger: quiet,
		Clock: func() time.Time { return time.Now().Add(-2 * time.Hour) },
	})
	_, err = stale.Refresh(ctx)
	require.NoError(t, err)
	status := NewHealthService("1.2.3", stale, time.Hour, quiet).ReadinessCheck(ctx)
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "stale", status.Services["ranking"].Status)

	assert.Equal(t, "not_ready", NewHealthService("x", nil, 0, quiet).ReadinessCheck(ctx).Status)
	assert.Equal(t, "1.2.3", hs.Version()["version"])
}
