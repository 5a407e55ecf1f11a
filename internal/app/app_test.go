package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiirank/internal/config"
	"fiirank/internal/sources"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeCSV(t *testing.T, path string, records [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(records))
}

func row(id, sector, pvpa, yield, vol string) []string {
	return []string{id, sector, "10000", "1.000,0", "0,95", "0,80", "0,8 %", yield + " %", "0,8 %", "1.000.000", "10000", pvpa, "1.000", vol}
}

// fixtures writes a ranking and a vacancy snapshot into dir.
func fixtures(t *testing.T, dir string) Inputs {
	t.Helper()
	primary := filepath.Join(dir, "ranking.csv")
	writeCSV(t, primary, [][]string{
		{
			"Fundos", "Setor", "Preço Atual (R$)", "Liquidez Diária (R$)", "P/VP", "Último Dividendo",
			"Dividend Yield", "DY (12M) Acumulado", "DY (12M) Média", "Patrimônio Líquido", "VPA",
			"P/VPA", "Num. Cotistas", "Volatilidade",
		},
		row("AAAA11", "Papéis", "9,50", "10,0", "5,0"),
		row("BBBB11", "Varejo", "10,50", "12,0", "3,0"),
		row("CCCC11", "Papéis", "12,00", "20,0", "1,0"),
	})
	vacancy := filepath.Join(dir, "vacancias.csv")
	writeCSV(t, vacancy, [][]string{{"Fundo", "Vacância"}, {"AAAA", "10,5%"}})
	return Inputs{PrimaryFile: primary, VacancyFile: vacancy}
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Export.OutputDir = filepath.Join(dir, "reports")
	cfg.Export.CSV = true
	cfg.Storage.Path = filepath.Join(dir, "fiirank.db")
	cfg.Server.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	// three funds are too few for the default quantile cuts
	cfg.Screening.Quantiles = []config.QuantileRule{{Column: "volatilidade", Percentile: 1, Mode: "smaller"}}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, in Inputs) *Application {
	t.Helper()
	application, err := New(context.Background(), cfg, in, quiet)
	require.NoError(t, err)
	return application
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestApplicationServesRanking(t *testing.T) {
	dir := t.TempDir()
	application := newApp(t, testConfig(dir), fixtures(t, dir))
	defer application.Close(context.Background())
	router := application.Router

	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, router, http.MethodGet, "/healthz/ready").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, router, http.MethodGet, "/api/v1/ranking").Code)

	rec := serve(t, router, http.MethodPost, "/api/v1/ranking/refresh")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var refreshed struct {
		Run   struct{ ID string } `json:"run"`
		Files []string            `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.Run.ID)
	require.Len(t, refreshed.Files, 2)
	for _, f := range refreshed.Files {
		assert.FileExists(t, f)
	}

	rec = serve(t, router, http.MethodGet, "/api/v1/ranking")
	require.Equal(t, http.StatusOK, rec.Code)
	var ranking struct {
		RunID string `json:"run_id"`
		Funds []struct {
			ID    string `json:"id"`
			Score *int   `json:"score"`
		} `json:"funds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranking))
	assert.Equal(t, refreshed.Run.ID, ranking.RunID)
	require.Len(t, ranking.Funds, 2)
	assert.Equal(t, "BBBB11", ranking.Funds[0].ID)
	require.NotNil(t, ranking.Funds[0].Score)
	assert.Equal(t, 66, *ranking.Funds[0].Score)

	rec = serve(t, router, http.MethodGet, "/api/v1/ranking/runs/"+refreshed.Run.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/healthz/ready").Code)

	rec = serve(t, router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ranking_runs_total")

	rec = serve(t, router, http.MethodGet, "/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), Version)
}

func TestApplicationErrorRoutes(t *testing.T) {
	dir := t.TempDir()
	application := newApp(t, testConfig(dir), fixtures(t, dir))
	defer application.Close(context.Background())

	rec := serve(t, application.Router, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/not-found")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(t, application.Router, http.MethodDelete, "/api/v1/ranking/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestApplicationRateLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	application := newApp(t, cfg, fixtures(t, dir))
	defer application.Close(context.Background())

	assert.Equal(t, http.StatusOK, serve(t, application.Router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, application.Router, http.MethodGet, "/healthz").Code)
	// metrics stay reachable
	assert.Equal(t, http.StatusOK, serve(t, application.Router, http.MethodGet, "/metrics").Code)
}

func TestBuildComponentsErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	tests := []struct {
		name   string
		modify func(*config.Config)
		want   string
	}{
		{
			name: "invalid quantile mode",
			modify: func(cfg *config.Config) {
				cfg.Screening.Quantiles = []config.QuantileRule{{Column: "volatilidade", Percentile: 0.5, Mode: "middle"}}
			},
			want: "screening",
		},
		{
			name:   "unusable database path",
			modify: func(cfg *config.Config) { cfg.Storage.Path = filepath.Join(blocker, "fiirank.db") },
			want:   "open store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(dir)
			tt.modify(cfg)
			_, err := BuildComponents(context.Background(), cfg, fixtures(t, t.TempDir()), nil, quiet)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildComponentsWithoutStore(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Storage.Enabled = false

	components, err := BuildComponents(context.Background(), cfg, fixtures(t, dir), nil, quiet)
	require.NoError(t, err)
	assert.Nil(t, components.Store)
	assert.NoError(t, components.Close())

	report, err := components.Ranking.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Run.VacancyMatched)
	assert.NoFileExists(t, cfg.Storage.Path)
}

func TestSourceSelection(t *testing.T) {
	cfg := config.Default()

	assert.IsType(t, &sources.RankingScraper{}, primarySource(cfg, Inputs{}, quiet))
	file, ok := primarySource(cfg, Inputs{PrimaryFile: "ranking.xlsx"}, quiet).(*sources.FileSource)
	require.True(t, ok)
	assert.Equal(t, sources.SourceRanking, file.Name())

	assert.IsType(t, &sources.VacancyClient{}, vacancySource(cfg, Inputs{}, quiet))
	assert.Nil(t, vacancySource(cfg, Inputs{NoVacancy: true, VacancyFile: "v.html"}, quiet))

	file, ok = vacancySource(cfg, Inputs{VacancyFile: "v.html"}, quiet).(*sources.FileSource)
	require.True(t, ok)
	assert.Equal(t, sources.SourceVacancy, file.Name())
	assert.Equal(t, sources.VacancyTableID, file.Selector.ID)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Server.Port = 0
	application := newApp(t, cfg, fixtures(t, dir))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, application.Run(ctx))
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	application := newApp(t, cfg, fixtures(t, dir))
	application.Server.Addr = ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = application.Run(ctx)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "listen"), err.Error())
}
