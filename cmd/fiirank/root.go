package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fiirank/internal/app"
	"fiirank/internal/config"
	"fiirank/internal/infrastructure"
)

// cli carries what every subcommand shares once the root has loaded it.
type cli struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	return (&cli{}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fiirank",
		Short: "Screen and rank Brazilian REITs (FIIs)",
		Long: `fiirank downloads the fundsexplorer ranking and the meusdividendos vacancy
table, filters out weak funds, scores the rest on yield, volatility and
price-to-book, and writes the ranking to a spreadsheet.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.load,
		PersistentPostRunE: c.close,
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.yaml or ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(c.runCmd())
	root.AddCommand(c.serveCmd())
	root.AddCommand(c.runsCmd())
	root.AddCommand(versionCmd())
	return root
}

// load reads the configuration and builds a logger on stderr, leaving stdout
// to command output.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

// close releases the log file opened by load. main calls it as well, since
// cobra skips post-run hooks when a command fails.
func (c *cli) close(*cobra.Command, []string) error {
	return infrastructure.CloseLogFile()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", config.AppName, app.Version, app.BuildTime)
		},
	}
}
