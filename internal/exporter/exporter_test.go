package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"

	"fiirank/internal/config"
	"fiirank/internal/fund"
	"fiirank/internal/numeric"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var exportDate = time.Date(2024, 3, 7, 15, 0, 0, 0, time.UTC)

func ranked() []fund.Scored {
	a := fund.Record{ID: "BBBB11", Sector: "Varejo", Extra: map[string]string{"gestora": "Gestora B"}}.
		With(fund.PVPA, numeric.Of(1.05)).
		With(fund.Price, numeric.Of(100.5))
	b := fund.Record{ID: "AAAA11", Sector: "Papéis", Extra: map[string]string{"gestora": "Gestora, A"}}.
		With(fund.PVPA, numeric.Of(0.95)).
		With(fund.Vacancy, numeric.Of(0.105))

	return []fund.Scored{
		{Record: a, YieldRank: numeric.Of(1), VolatilityRank: numeric.Of(0.5), ValuationSignal: numeric.Of(0.25), Score: 66, HasScore: true, Position: 1},
		{Record: b, YieldRank: numeric.Of(0.5), VolatilityRank: numeric.Of(1), ValuationSignal: numeric.Of(0.75), Score: 50, HasScore: true, Position: 2},
		{Record: fund.Record{ID: "CCCC11"}, Position: 3},
	}
}

func TestBuildSheet(t *testing.T) {
	sheet := BuildSheet(ranked(), []string{"gestora"})

	assert.Equal(t, []string{
		"posicao", "fundos", "setor",
		"preco_atual_(r$)", "p/vpa", "vacancia",
		"gestora",
		"p_dy", "p_vol", "sig", "score",
	}, sheet.Header, "only schema columns with a value are exported, in schema order")

	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []any{1, "BBBB11", "Varejo", 100.5, 1.05, nil, "Gestora B", 1.0, 0.5, 0.25, 66}, sheet.Rows[0])
	assert.Equal(t, []any{3, "CCCC11", "", nil, nil, nil, "", nil, nil, nil, nil}, sheet.Rows[2])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "fundos_imobiliarios_2024-03-07", FileName(exportDate))
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "x", formatCell("x"))
	assert.Equal(t, "42", formatCell(42))
	assert.Equal(t, "0.105", formatCell(0.105))
	assert.Equal(t, "1000000", formatCell(1e6))
	assert.Equal(t, "true", formatCell(true))
}

func TestCSVWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := NewCSVWriter(dir, quiet).Write(context.Background(), BuildSheet(ranked(), []string{"gestora"}), exportDate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fundos_imobiliarios_2024-03-07.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(content[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "posicao", records[0][0])
	assert.Equal(t, []string{"2", "AAAA11", "Papéis", "", "0.95", "0.105", "Gestora, A", "0.5", "1", "0.75", "50"}, records[2])
	assert.Equal(t, "", records[3][10], "unscored funds have an empty score")
}

func TestCSVWriterReplacesSameDay(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, quiet)

	_, err := w.Write(context.Background(), BuildSheet(ranked(), nil), exportDate)
	require.NoError(t, err)
	path, err := w.Write(context.Background(), BuildSheet(ranked()[:1], nil), exportDate)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
}

func TestXLSXWriter(t *testing.T) {
	dir := t.TempDir()
	path, err := NewXLSXWriter(dir, quiet).Write(context.Background(), BuildSheet(ranked(), []string{"gestora"}), exportDate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fundos_imobiliarios_2024-03-07.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "posicao", rows[0][0])
	assert.Equal(t, "score", rows[0][len(rows[0])-1])
	assert.Equal(t, "BBBB11", rows[1][1])
	assert.Equal(t, "66", rows[1][10])

	price, err := f.GetCellValue(SheetName, "D2")
	require.NoError(t, err)
	assert.Equal(t, "100.5", price)
}

func TestSheetsWriter(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		received struct {
			Values [][]any `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	w, err := NewSheetsWriter(context.Background(),
		config.SheetsConfig{Enabled: true, SpreadsheetID: "sheet-123"},
		quiet,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), BuildSheet(ranked(), nil)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "POST /v4/spreadsheets/sheet-123/values/Ranking:clear"), calls[0])
	assert.True(t, strings.HasPrefix(calls[1], "PUT /v4/spreadsheets/sheet-123/values/Ranking"), calls[1])

	require.Len(t, received.Values, 4)
	assert.Equal(t, "posicao", received.Values[0][0])
	assert.Equal(t, "CCCC11", received.Values[3][1])
	assert.Equal(t, "", received.Values[3][3], "absent cells are sent as empty strings")
}

func TestSheetsWriterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	w, err := NewSheetsWriter(context.Background(),
		config.SheetsConfig{SpreadsheetID: "x", SheetName: "Outra"},
		quiet,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	err = w.Write(context.Background(), BuildSheet(ranked(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear Outra")
}
