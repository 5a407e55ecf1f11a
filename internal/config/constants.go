package config

import "time"

// Application info
const (
	AppName = "fiirank"
)

// Data sources
const (
	DefaultRankingURL = "https://www.fundsexplorer.com.br/ranking"
	DefaultVacancyURL = "https://www.meusdividendos.com/fundos-imobiliarios/vacancias"
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// Timeouts
const (
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultPageTimeout    = 2 * time.Minute
	DefaultColumnsSettle  = 5 * time.Second
	DefaultRefreshTimeout = 5 * time.Minute
)

// Rate limiting for the HTTP API
const (
	DefaultRateLimit = 10 // requests per second
	DefaultBurstSize = 20
)

// Cache and output
const (
	DefaultCacheTTL     = 15 * time.Minute
	DefaultStaleAfter   = 36 * time.Hour
	DefaultOutputDir    = "data/reports"
	DefaultDatabasePath = "data/fiirank.db"
	DefaultSheetName    = "Ranking"
)

// API endpoints
const (
	APIBasePath     = "/api/v1"
	RankingEndpoint = "/api/v1/ranking"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)
