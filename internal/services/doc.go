// Package services holds the application logic behind the CLI and the HTTP
// API.
//
// RankingService drives a refresh end to end: it fetches the ranking and
// vacancy tables, runs the ranking pipeline, writes the export files,
// publishes to Google Sheets when configured and stores the run. Only one
// refresh runs at a time; a second caller gets ErrRefreshRunning.
//
// HealthService reports liveness and readiness for the /healthz endpoint.
//
// Services receive their collaborators through constructors and log through
// an injected *slog.Logger:
//
//	svc := services.NewRankingService(services.RankingOptions{
//	    Fetcher:  fetcher,
//	    Pipeline: p,
//	    Files:    []services.FileWriter{exporter.NewXLSXWriter(dir, logger)},
//	    Store:    store,
//	    Logger:   logger,
//	})
//	report, err := svc.Refresh(ctx)
package services
