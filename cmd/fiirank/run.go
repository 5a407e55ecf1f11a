package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fiirank/internal/app"
	"fiirank/internal/fund"
	"fiirank/internal/infrastructure"
	"fiirank/internal/numeric"
	"fiirank/internal/services"
)

type runOptions struct {
	inputs  app.Inputs
	out     string
	top     int
	noStore bool
	sheets  bool
	csv     bool
}

func (c *cli) runCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rank the funds once and export the result",
		Long: `Fetch the ranking and vacancy tables (or read them from files), rank the
funds and write fundos_imobiliarios_YYYY-MM-DD.xlsx to the output directory.
The run summary and the best funds are printed when done.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.inputs.PrimaryFile, "primary", "", "read the ranking table from an xlsx, csv or html file")
	cmd.Flags().StringVar(&opts.inputs.VacancyFile, "vacancy", "", "read the vacancy table from an xlsx, csv or html file")
	cmd.Flags().BoolVar(&opts.inputs.NoVacancy, "no-vacancy", false, "rank without vacancy data")
	cmd.Flags().StringVar(&opts.out, "out", "", "output directory (overrides export.output_dir)")
	cmd.Flags().IntVar(&opts.top, "top", 10, "number of funds to print")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "do not save the run to the database")
	cmd.Flags().BoolVar(&opts.sheets, "sheets", false, "publish to the configured Google spreadsheet")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "also write a CSV file")
	return cmd
}

func (c *cli) run(ctx context.Context, w io.Writer, opts *runOptions) error {
	cfg := c.cfg
	if opts.out != "" {
		cfg.Export.OutputDir = opts.out
	}
	if opts.noStore {
		cfg.Storage.Enabled = false
	}
	if opts.csv {
		cfg.Export.CSV = true
	}
	if opts.sheets {
		cfg.Export.Sheets.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Telemetry.EnableTracing {
		telemetry := cfg.Telemetry
		telemetry.EnableMetrics = false
		providers, err := infrastructure.InitializeOTel(telemetry, c.logger)
		if err != nil {
			return err
		}
		defer providers.Shutdown(context.WithoutCancel(ctx))
	}

	components, err := app.BuildComponents(ctx, cfg, opts.inputs, nil, c.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Ranking.Refresh(ctx)
	if err != nil {
		return err
	}

	printReport(w, report, opts.top)
	return nil
}

// printReport writes the funnel of the run, the files written and the top
// funds.
func printReport(w io.Writer, report *services.Report, top int) {
	run := report.Run
	fmt.Fprintf(w, "Run %s (%s)\n\n", run.ID, run.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, st := range run.Stages {
		fmt.Fprintf(tw, "%s\t%d\n", st.Label, st.Funds)
	}
	if run.DroppedMissing > 0 || run.DroppedUnparsable > 0 {
		fmt.Fprintf(tw, "dropped (missing / unparsable)\t%d / %d\n", run.DroppedMissing, run.DroppedUnparsable)
	}
	fmt.Fprintf(tw, "vacancy matched\t%d\n", run.VacancyMatched)
	tw.Flush()

	if len(report.Files) > 0 {
		fmt.Fprintln(w)
		for _, f := range report.Files {
			fmt.Fprintf(w, "wrote %s\n", f)
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	best := report.Result.Top(top)
	if len(best) == 0 {
		fmt.Fprintln(w, "\nno fund passed the screening")
		return
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tFundo\tSetor\tScore\tP/VPA\tDY 12M\tVacância\t")
	for _, s := range best {
		score := "-"
		if s.HasScore {
			score = strconv.Itoa(s.Score)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Position, s.ID, s.Sector, score,
			formatNumber(s.Get(fund.PVPA)),
			formatPercent(s.Get(fund.DY12MAccumulated)),
			formatPercent(s.Get(fund.Vacancy)))
	}
	tw.Flush()
}

func formatNumber(v numeric.Value) string {
	f, ok := v.Float64()
	if !ok {
		return "-"
	}
	return strings.Replace(strconv.FormatFloat(f, 'f', 2, 64), ".", ",", 1)
}

func formatPercent(v numeric.Value) string {
	if v.IsAbsent() {
		return "-"
	}
	return formatNumber(v.Scale(100)) + "%"
}
