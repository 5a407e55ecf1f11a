package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable (FIIRANK_SERVER_PORT, ...).
// Leaf fields use split_words instead of an envconfig tag, which envconfig
// would also look up without the prefix.
const EnvPrefix = "FIIRANK"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Screening ScreeningConfig `yaml:"screening" envconfig:"SCREENING"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	RefreshTimeout  time.Duration   `yaml:"refresh_timeout" split_words:"true" validate:"gt=0"`
	CacheTTL        time.Duration   `yaml:"cache_ttl" split_words:"true"`
	// StaleAfter fails readiness when the last run is older; zero disables it.
	StaleAfter      time.Duration   `yaml:"stale_after" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true" validate:"gte=0"`
	Burst   int     `yaml:"burst" split_words:"true" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" split_words:"true" validate:"oneof=json text"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// SourcesConfig controls where the ranking and vacancy tables come from.
type SourcesConfig struct {
	RankingURL string `yaml:"ranking_url" split_words:"true" validate:"required,url"`
	VacancyURL string `yaml:"vacancy_url" split_words:"true" validate:"required,url"`
	// Headless runs Chrome without a window.
	Headless bool `yaml:"headless" split_words:"true"`
	// ColumnsSettle is how long to wait after enabling every ranking column.
	ColumnsSettle time.Duration `yaml:"columns_settle" split_words:"true"`
	PageTimeout   time.Duration `yaml:"page_timeout" split_words:"true" validate:"gt=0"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" split_words:"true" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" split_words:"true"`
	// RequestsPerSecond paces requests to the vacancy site.
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true" validate:"gt=0"`
}

// ScreeningConfig overrides the screening policy. Empty lists keep the
// built-in sector allow-list and quantile rules.
type ScreeningConfig struct {
	Sectors   []string       `yaml:"sectors" split_words:"true" validate:"dive,required"`
	Quantiles []QuantileRule `yaml:"quantiles" ignored:"true" validate:"dive"`
}

// QuantileRule is one relative filter: keep funds on the Mode side of the
// Percentile of Column.
type QuantileRule struct {
	Column     string  `yaml:"column" validate:"required"`
	Percentile float64 `yaml:"percentile" validate:"gte=0,lte=1"`
	Mode       string  `yaml:"mode" validate:"required"`
}

// ExportConfig controls the ranked output artifacts.
type ExportConfig struct {
	OutputDir string       `yaml:"output_dir" split_words:"true" validate:"required"`
	XLSX      bool         `yaml:"xlsx" split_words:"true"`
	CSV       bool         `yaml:"csv" split_words:"true"`
	Sheets    SheetsConfig `yaml:"sheets" envconfig:"SHEETS"`
}

// SheetsConfig publishes the ranking to a Google spreadsheet.
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled" split_words:"true"`
	SpreadsheetID   string `yaml:"spreadsheet_id" split_words:"true" validate:"required_if=Enabled true"`
	SheetName       string `yaml:"sheet_name" split_words:"true"`
	CredentialsFile string `yaml:"credentials_file" split_words:"true" validate:"required_if=Enabled true"`
}

// StorageConfig controls snapshot persistence.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true" validate:"required_if=Enabled true"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" split_words:"true"`
	EnableTracing  bool    `yaml:"enable_tracing" split_words:"true"`
	EnableMetrics  bool    `yaml:"enable_metrics" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" split_words:"true" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true" validate:"gte=0,lte=1"`
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at path (or the first one found in the usual locations),
// a .env file, and FIIRANK_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RefreshTimeout:  DefaultRefreshTimeout,
			CacheTTL:        DefaultCacheTTL,
			StaleAfter:      DefaultStaleAfter,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/fiirank.log",
		},
		Sources: SourcesConfig{
			RankingURL:        DefaultRankingURL,
			VacancyURL:        DefaultVacancyURL,
			Headless:          true,
			ColumnsSettle:     DefaultColumnsSettle,
			PageTimeout:       DefaultPageTimeout,
			HTTPTimeout:       DefaultHTTPTimeout,
			UserAgent:         DefaultUserAgent,
			RequestsPerSecond: 1,
		},
		Export: ExportConfig{
			OutputDir: DefaultOutputDir,
			XLSX:      true,
			Sheets: SheetsConfig{
				SheetName: DefaultSheetName,
			},
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    DefaultDatabasePath,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			EnableTracing:  false,
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
