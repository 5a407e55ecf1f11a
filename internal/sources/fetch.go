package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fiirank/internal/infrastructure"
	"fiirank/internal/table"
)

// Source names.
const (
	SourceRanking = "ranking"
	SourceVacancy = "vacancy"
)

// Source produces one raw table.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (table.Table, error)
}

// FetchError reports which source failed.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Source, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Inputs are the two tables a ranking run consumes.
type Inputs struct {
	Primary   table.Table
	Secondary table.Table
}

// Fetcher acquires the ranking and vacancy tables.
type Fetcher struct {
	primary   Source
	secondary Source
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
}

// NewFetcher creates a fetcher. secondary may be nil, in which case runs get
// an empty vacancy table.
func NewFetcher(primary, secondary Source, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{primary: primary, secondary: secondary, metrics: metrics, logger: logger}
}

// FetchAll fetches both tables concurrently. The first failure cancels the
// other fetch.
func (f *Fetcher) FetchAll(ctx context.Context) (Inputs, error) {
	var in Inputs
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := f.fetch(ctx, f.primary)
		in.Primary = t
		return err
	})
	if f.secondary != nil {
		g.Go(func() error {
			t, err := f.fetch(ctx, f.secondary)
			in.Secondary = t
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

func (f *Fetcher) fetch(ctx context.Context, src Source) (table.Table, error) {
	start := time.Now()
	t, err := src.Fetch(ctx)
	f.metrics.RecordFetch(ctx, src.Name(), err)
	if err != nil {
		f.logger.ErrorContext(ctx, "source fetch failed", "source", src.Name(), "error", err)
		return table.Table{}, &FetchError{Source: src.Name(), Err: err}
	}
	f.logger.InfoContext(ctx, "source fetched",
		"source", src.Name(),
		"rows", t.Len(),
		"duration", time.Since(start),
	)
	return t, nil
}
