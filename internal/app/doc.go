// Package app wires fiirank together and manages its lifecycle.
//
// BuildComponents assembles what a ranking run needs from the configuration:
// the two table sources (live sites or saved files), the pipeline with the
// configured screening policy, the export writers, and the SQLite store. The
// CLI uses it directly for one-shot runs.
//
// New adds OpenTelemetry, the health service and the chi router on top, for
// the long-running server:
//
//	application, err := app.New(ctx, cfg, app.Inputs{}, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run blocks until the context ends or SIGINT/SIGTERM arrives, then shuts the
// server down within Server.ShutdownTimeout and closes the store.
package app
