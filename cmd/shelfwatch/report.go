package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/config"
	"github.com/shelfwatch/shelfwatch/internal/database"
	applog "github.com/shelfwatch/shelfwatch/internal/log"
	"github.com/shelfwatch/shelfwatch/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export one day's change events as report files",
		Long: `Report exports every change event recorded on a given day as numbered
JSON files (Change-Log-YYYY.MM.DD-<n>.json), one file per batch of events.

With --summary, a Markdown summary of the day's activity is printed to
stdout instead of exporting files.

Examples:
  # Export today's changes
  shelfwatch report

  # Export a specific day with smaller files
  shelfwatch report --date 2026-08-30 --batch-size 100

  # Print a Markdown summary of today's changes
  shelfwatch report --summary`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().String("date", "",
		"Day to export in YYYY-MM-DD format (default: today, UTC)")
	cmd.Flags().String("db-dir", "",
		"Directory holding the SQLite database (default: XDG data dir)")
	cmd.Flags().String("report-dir", "",
		"Directory for report files (default: XDG data dir)")
	cmd.Flags().IntP("batch-size", "b", config.DefaultReportBatchSize,
		"Change events per report file")
	cmd.Flags().BoolP("summary", "s", false,
		"Print a Markdown summary instead of writing report files")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	day, err := reportDay(cmd)
	if err != nil {
		return err
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	reportDir, err := cmd.Flags().GetString("report-dir")
	if err != nil {
		return err
	}
	if reportDir == "" {
		reportDir = config.NewConfig().ReportDir
	}

	batchSize, err := cmd.Flags().GetInt("batch-size")
	if err != nil {
		return err
	}
	summary, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return err
	}

	logger := applog.NewLogger(os.Stderr, getVerboseFlag(cmd))

	// The report only reads; a missing database is an operator error, not
	// something to silently create empty.
	store, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	gen := report.NewGenerator(store, reportDir,
		report.WithBatchSize(batchSize),
		report.WithLogger(logger),
	)

	if summary {
		return gen.WriteSummary(cmd.Context(), day, cmd.OutOrStdout())
	}

	paths, err := gen.Generate(cmd.Context(), day)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No changes recorded on %s\n", day.Format("2006-01-02"))
		return nil
	}
	for _, path := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written: %s\n", path)
	}
	return nil
}

// reportDay resolves the --date flag, defaulting to today in UTC.
func reportDay(cmd *cobra.Command) (time.Time, error) {
	dateFlag, err := cmd.Flags().GetString("date")
	if err != nil {
		return time.Time{}, err
	}
	if dateFlag == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}

	day, err := time.ParseInLocation("2006-01-02", dateFlag, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", dateFlag, err)
	}
	return day, nil
}
