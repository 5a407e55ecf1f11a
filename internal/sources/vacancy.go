package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"fiirank/internal/config"
	"fiirank/internal/table"
)

// VacancyTableID is the id of the vacancy table on the page.
const VacancyTableID = "tabela-fundos"

// VacancyClient downloads the vacancy table.
type VacancyClient struct {
	url        string
	agent      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewVacancyClient creates a client from the sources configuration. Requests
// are paced by cfg.RequestsPerSecond.
func NewVacancyClient(cfg config.SourcesConfig, logger *slog.Logger) *VacancyClient {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &VacancyClient{
		url:   cfg.VacancyURL,
		agent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.With("source", SourceVacancy),
	}
}

func (c *VacancyClient) Name() string { return SourceVacancy }

// Fetch returns the vacancy table without its "#" rank column.
func (c *VacancyClient) Fetch(ctx context.Context) (table.Table, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return table.Table{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return table.Table{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return table.Table{}, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, c.url)
	}

	t, err := ParseHTMLTable(resp.Body, Selector{ID: VacancyTableID})
	if err != nil {
		return table.Table{}, fmt.Errorf("read vacancy table: %w", err)
	}
	t = t.DropColumns("#")

	c.logger.InfoContext(ctx, "vacancy table fetched", "rows", t.Len())
	return t, nil
}
