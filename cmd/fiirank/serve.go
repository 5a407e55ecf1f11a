package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"fiirank/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		inputs  app.Inputs
		port    int
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ranking over HTTP",
		Long: `Start the HTTP API. POST /api/v1/ranking/refresh runs a new ranking and
GET /api/v1/ranking serves the latest one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if port != 0 {
				c.cfg.Server.Port = port
			}

			application, err := app.New(ctx, c.cfg, inputs, c.logger)
			if err != nil {
				return err
			}

			if refresh {
				go func() {
					if _, err := application.Components.Ranking.Refresh(ctx); err != nil {
						c.logger.ErrorContext(ctx, "Initial refresh failed", slog.String("error", err.Error()))
					}
				}()
			}

			return application.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "run a ranking as soon as the server starts")
	cmd.Flags().StringVar(&inputs.PrimaryFile, "primary", "", "read the ranking table from a file instead of the site")
	cmd.Flags().StringVar(&inputs.VacancyFile, "vacancy", "", "read the vacancy table from a file instead of the site")
	return cmd
}
