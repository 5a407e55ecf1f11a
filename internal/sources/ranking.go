package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"fiirank/internal/config"
	"fiirank/internal/table"
)

// Page elements of the fundsexplorer ranking.
const (
	columnsButton    = `#colunas-ranking__select-button`
	allColumnsLabel  = `label[for='colunas-ranking__todos']`
	rankingContainer = "default-fiis-table__container"
)

// RankingScraper drives a Chrome instance through the ranking page, enables
// every column and reads the resulting table.
type RankingScraper struct {
	url      string
	headless bool
	settle   time.Duration
	timeout  time.Duration
	agent    string
	logger   *slog.Logger
}

// NewRankingScraper creates a scraper from the sources configuration.
func NewRankingScraper(cfg config.SourcesConfig, logger *slog.Logger) *RankingScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingScraper{
		url:      cfg.RankingURL,
		headless: cfg.Headless,
		settle:   cfg.ColumnsSettle,
		timeout:  cfg.PageTimeout,
		agent:    cfg.UserAgent,
		logger:   logger.With("source", SourceRanking),
	}
}

func (s *RankingScraper) Name() string { return SourceRanking }

// Fetch launches the browser and returns the raw ranking table.
func (s *RankingScraper) Fetch(ctx context.Context) (table.Table, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.WindowSize(1920, 1080),
	)
	if s.agent != "" {
		opts = append(opts, chromedp.UserAgent(s.agent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			s.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
		}))
	defer cancelBrowser()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.InfoContext(ctx, "scraping ranking page", "url", s.url, "headless", s.headless)

	var outer string
	if err := chromedp.Run(browserCtx, s.tasks(&outer)); err != nil {
		return table.Table{}, fmt.Errorf("scrape ranking page: %w", err)
	}

	t, err := ParseHTMLTable(strings.NewReader(outer), Selector{Class: rankingContainer})
	if err != nil {
		return table.Table{}, fmt.Errorf("read ranking table: %w", err)
	}

	s.logger.InfoContext(ctx, "ranking page scraped",
		"rows", t.Len(),
		"columns", len(t.Header),
		"duration", time.Since(start),
	)
	return t, nil
}

// tasks opens the column selector, ticks "all columns", waits for the table
// to re-render and captures the container HTML.
func (s *RankingScraper) tasks(outer *string) chromedp.Tasks {
	var scrolled bool
	return chromedp.Tasks{
		chromedp.Navigate(s.url),
		chromedp.WaitVisible(columnsButton, chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, 200); true`, &scrolled),
		chromedp.Click(columnsButton, chromedp.ByQuery),
		chromedp.WaitVisible(allColumnsLabel, chromedp.ByQuery),
		chromedp.Click(allColumnsLabel, chromedp.ByQuery),
		chromedp.Sleep(s.settle),
		chromedp.OuterHTML("."+rankingContainer, outer, chromedp.ByQuery),
	}
}
