package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the variables a test touches and restores them afterwards.
func clearEnv(t *testing.T, vars ...string) {
	t.Helper()
	for _, v := range vars {
		original, ok := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if ok {
				os.Setenv(v, original)
			} else {
				os.Unsetenv(v)
			}
		})
	}
}

// inTempDir runs the test from an empty directory so no stray config.yaml or
// .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

var testEnvVars = []string{
	"FIIRANK_CONFIG",
	"FIIRANK_SERVER_PORT", "FIIRANK_SERVER_CACHE_TTL",
	"FIIRANK_LOGGING_LEVEL", "FIIRANK_LOGGING_FORMAT",
	"FIIRANK_SOURCES_HEADLESS", "FIIRANK_SOURCES_RANKING_URL",
	"FIIRANK_SCREENING_SECTORS",
	"FIIRANK_EXPORT_SHEETS_ENABLED", "FIIRANK_EXPORT_SHEETS_SPREADSHEET_ID",
	"FIIRANK_EXPORT_SHEETS_CREDENTIALS_FILE",
	"FIIRANK_STORAGE_PATH",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		dotenv      string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultCacheTTL, cfg.Server.CacheTTL)
				assert.True(t, cfg.Server.RateLimit.Enabled)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, DefaultRankingURL, cfg.Sources.RankingURL)
				assert.Equal(t, DefaultVacancyURL, cfg.Sources.VacancyURL)
				assert.True(t, cfg.Sources.Headless)
				assert.Equal(t, 5*time.Second, cfg.Sources.ColumnsSettle)
				assert.Empty(t, cfg.Screening.Sectors)
				assert.Empty(t, cfg.Screening.Quantiles)
				assert.True(t, cfg.Export.XLSX)
				assert.False(t, cfg.Export.Sheets.Enabled)
				assert.Equal(t, DefaultSheetName, cfg.Export.Sheets.SheetName)
				assert.True(t, cfg.Storage.Enabled)
				assert.Equal(t, DefaultDatabasePath, cfg.Storage.Path)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"FIIRANK_SERVER_PORT":       "9090",
				"FIIRANK_SERVER_CACHE_TTL":  "1m",
				"FIIRANK_LOGGING_LEVEL":     "debug",
				"FIIRANK_SOURCES_HEADLESS":  "false",
				"FIIRANK_SCREENING_SECTORS": "Papéis,Misto",
				"FIIRANK_STORAGE_PATH":      "/tmp/x.db",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, time.Minute, cfg.Server.CacheTTL)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.False(t, cfg.Sources.Headless)
				assert.Equal(t, []string{"Papéis", "Misto"}, cfg.Screening.Sectors)
				assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
			},
		},
		{
			name: "yaml file with quantile rules",
			file: `
server:
  port: 7070
logging:
  format: text
screening:
  quantiles:
    - column: patrimonio_liquido
      percentile: 0.5
      mode: larger
    - column: volatilidade
      percentile: 0.9
      mode: smaller
export:
  csv: true
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "text", cfg.Logging.Format)
				assert.Equal(t, "info", cfg.Logging.Level, "untouched keys keep defaults")
				require.Len(t, cfg.Screening.Quantiles, 2)
				assert.Equal(t, QuantileRule{Column: "volatilidade", Percentile: 0.9, Mode: "smaller"}, cfg.Screening.Quantiles[1])
				assert.True(t, cfg.Export.CSV)
				assert.True(t, cfg.Export.XLSX)
			},
		},
		{
			name: "environment wins over file",
			env:  map[string]string{"FIIRANK_SERVER_PORT": "6060"},
			file: "server:\n  port: 7070\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6060, cfg.Server.Port)
			},
		},
		{
			name:   "dotenv file",
			dotenv: "FIIRANK_LOGGING_LEVEL=warn\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"FIIRANK_LOGGING_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "sheets enabled without spreadsheet",
			env:     map[string]string{"FIIRANK_EXPORT_SHEETS_ENABLED": "true"},
			wantErr: true,
		},
		{
			name: "sheets fully configured",
			env: map[string]string{
				"FIIRANK_EXPORT_SHEETS_ENABLED":          "true",
				"FIIRANK_EXPORT_SHEETS_SPREADSHEET_ID":   "abc",
				"FIIRANK_EXPORT_SHEETS_CREDENTIALS_FILE": "creds.json",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Export.Sheets.Enabled)
				assert.Equal(t, "abc", cfg.Export.Sheets.SpreadsheetID)
			},
		},
		{
			name:    "bad ranking url",
			env:     map[string]string{"FIIRANK_SOURCES_RANKING_URL": "not a url"},
			wantErr: true,
		},
		{
			name:    "bad quantile percentile",
			file:    "screening:\n  quantiles:\n    - column: vpa\n      percentile: 2\n      mode: larger\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: true,
		},
		{
			name:    "bad env value",
			env:     map[string]string{"FIIRANK_SERVER_PORT": "eighty"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, testEnvVars...)
			dir := inTempDir(t)

			path := ""
			if tt.file != "" {
				path = filepath.Join(dir, "custom.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}
			if tt.dotenv != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.dotenv), 0o644))
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadDiscoversConfigFile(t *testing.T) {
	clearEnv(t, testEnvVars...)
	dir := inTempDir(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte("server:\n  port: 5050\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)

	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("server:\n  port: 4040\n"), 0o644))
	os.Setenv("FIIRANK_CONFIG", other)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 4040, cfg.Server.Port)
}

func TestLoadIgnoresUnprefixedVariables(t *testing.T) {
	clearEnv(t, testEnvVars...)
	inTempDir(t)

	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("ENABLED", "false")
	t.Setenv("LEVEL", "debug")
	t.Setenv("PORT", "1234")
	t.Setenv("FORMAT", "text")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabasePath, cfg.Storage.Path)
	assert.True(t, cfg.Storage.Enabled)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Telemetry.Environment)
}

func TestLoadSplitsFieldNames(t *testing.T) {
	clearEnv(t, testEnvVars...)
	inTempDir(t)

	t.Setenv("FIIRANK_SERVER_RATE_LIMIT_ENABLED", "false")
	t.Setenv("FIIRANK_SOURCES_HTTP_TIMEOUT", "7s")
	t.Setenv("FIIRANK_SOURCES_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("FIIRANK_TELEMETRY_ENABLE_TRACING", "true")
	t.Setenv("FIIRANK_EXPORT_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 7*time.Second, cfg.Sources.HTTPTimeout)
	assert.Equal(t, 0.5, cfg.Sources.RequestsPerSecond)
	assert.True(t, cfg.Telemetry.EnableTracing)
	assert.Equal(t, "/tmp/out", cfg.Export.OutputDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t, testEnvVars...)
	inTempDir(t)

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
