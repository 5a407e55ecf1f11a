package app

import (
	"context"
	"fmt"
	"log/slog"

	"fiirank/internal/config"
	"fiirank/internal/exporter"
	"fiirank/internal/infrastructure"
	"fiirank/internal/pipeline"
	"fiirank/internal/screening"
	"fiirank/internal/services"
	"fiirank/internal/sources"
	"fiirank/internal/storage"
)

// Inputs overrides where a run reads its tables from. Empty paths use the
// live sites.
type Inputs struct {
	PrimaryFile string
	VacancyFile string
	// NoVacancy runs without the vacancy table.
	NoVacancy bool
}

// Components are the pieces a ranking run needs, shared by the CLI and the
// server.
type Components struct {
	Ranking *services.RankingService
	Store   storage.Store
}

// Close releases the store.
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// BuildComponents wires sources, pipeline, exporters and storage from cfg.
func BuildComponents(ctx context.Context, cfg *config.Config, in Inputs, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) (*Components, error) {
	filters, err := screening.FromConfig(cfg.Screening)
	if err != nil {
		return nil, fmt.Errorf("build screening policy: %w", err)
	}

	p, err := pipeline.New(pipeline.Options{
		Filters: filters,
		Logger:  infrastructure.WithComponent(logger, "pipeline"),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	opts := services.RankingOptions{
		Fetcher:  sources.NewFetcher(primarySource(cfg, in, logger), vacancySource(cfg, in, logger), metrics, logger),
		Pipeline: p,
		Logger:   logger,
	}

	if cfg.Export.XLSX {
		opts.Files = append(opts.Files, exporter.NewXLSXWriter(cfg.Export.OutputDir, logger))
	}
	if cfg.Export.CSV {
		opts.Files = append(opts.Files, exporter.NewCSVWriter(cfg.Export.OutputDir, logger))
	}
	if cfg.Export.Sheets.Enabled {
		sheets, err := exporter.NewSheetsWriter(ctx, cfg.Export.Sheets, logger)
		if err != nil {
			return nil, fmt.Errorf("create sheets writer: %w", err)
		}
		opts.Publisher = sheets
	}

	components := &Components{}
	if cfg.Storage.Enabled {
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		opts.Store = store
		components.Store = store
	}

	components.Ranking = services.NewRankingService(opts)
	return components, nil
}

func primarySource(cfg *config.Config, in Inputs, logger *slog.Logger) sources.Source {
	if in.PrimaryFile != "" {
		return sources.NewFileSource(sources.SourceRanking, in.PrimaryFile)
	}
	return sources.NewRankingScraper(cfg.Sources, logger)
}

// vacancySource returns nil when the run has no vacancy table.
func vacancySource(cfg *config.Config, in Inputs, logger *slog.Logger) sources.Source {
	switch {
	case in.NoVacancy:
		return nil
	case in.VacancyFile != "":
		src := sources.NewFileSource(sources.SourceVacancy, in.VacancyFile)
		src.Selector = sources.Selector{ID: sources.VacancyTableID}
		return src
	default:
		return sources.NewVacancyClient(cfg.Sources, logger)
	}
}
