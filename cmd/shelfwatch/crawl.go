package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/config"
	"github.com/shelfwatch/shelfwatch/internal/crawler"
	"github.com/shelfwatch/shelfwatch/internal/database"
	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	applog "github.com/shelfwatch/shelfwatch/internal/log"
	"github.com/shelfwatch/shelfwatch/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the catalog and record new and changed items",
		Long: `Crawl walks the catalog's listing pages and keeps the local database in
sync with the site.

Incremental mode (default) fetches only items not yet in the database,
records each as a "new" change event, and persists a page cursor so an
interrupted crawl resumes where it stopped. After a successful run it
exports the day's change report unless --report=false.

Full mode re-fetches every item, compares it field by field against the
stored record, and records an "updated" event per change. It never skips
items and never touches the resumption cursor.

Examples:
  # Daily incremental crawl of the default catalog
  shelfwatch crawl

  # Full re-crawl of a specific site with slower pacing
  shelfwatch crawl --mode full --base-url http://catalog.internal --delay 2s

  # Use a custom configuration file
  shelfwatch crawl -c myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("mode", "m", config.DefaultMode,
		"Crawl mode: \"incremental\" or \"full\"")
	cmd.Flags().StringP("base-url", "u", config.DefaultBaseURL,
		"Root URL of the catalog site")
	cmd.Flags().String("db-dir", "",
		"Directory for the SQLite database (default: XDG data dir)")
	cmd.Flags().String("report-dir", "",
		"Directory for daily change report files (default: XDG data dir)")
	cmd.Flags().String("log-dir", "",
		"Directory for dated crawl log files (default: stderr only)")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Delay between HTTP requests")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Fetch attempts per URL")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout per request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for HTTP requests")
	cmd.Flags().Bool("ignore-robots", false,
		"Skip the robots.txt check")
	cmd.Flags().Bool("report", true,
		"Export the day's change report after a successful incremental crawl")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .shelfwatch in current or home directory)")
	cmd.Flags().Bool("json-log", false,
		"Emit logs as JSON instead of text")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Graceful shutdown on interrupt: the context cancels and the crawl
	// stops after the in-flight item, leaving the cursor consistent.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig resolves the configuration from defaults, the optional config
// file, and CLI flags, in that precedence order. A flag only overrides the
// file when the user actually set it.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configFlag

	// If the user explicitly specified a config file, error when missing;
	// an absent default file is fine.
	configPath := config.FindConfigFile(configFlag)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, err
		}
	} else if configFlag != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configFlag)
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		if cfg.Mode, err = flags.GetString("mode"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("base-url") {
		if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("report-dir") {
		if cfg.ReportDir, err = flags.GetString("report-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-dir") {
		if cfg.LogDir, err = flags.GetString("log-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retries") {
		if cfg.Retries, err = flags.GetInt("retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore-robots") {
		if cfg.IgnoreRobots, err = flags.GetBool("ignore-robots"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("report") {
		if cfg.GenerateReport, err = flags.GetBool("report"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("json-log") {
		if cfg.JSONLog, err = flags.GetBool("json-log"); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// setupLogger builds the run logger, mirroring into a dated log file when a
// log directory is configured. The returned func closes the file.
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeLog := func() {}

	if cfg.LogDir != "" {
		f, err := applog.OpenDatedFile(cfg.LogDir, "crawl", time.Now().UTC())
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { _ = f.Close() }
	}

	if cfg.JSONLog {
		return applog.NewJSONLogger(w, cfg.Verbose), closeLog, nil
	}
	return applog.NewLogger(w, cfg.Verbose), closeLog, nil
}

// runCrawl executes the crawl and, when configured, the daily report export.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	extractor, err := extract.New(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	fetcher := fetch.New(
		fetch.WithHTTPClient(httpClient),
		fetch.WithRetries(cfg.Retries),
		fetch.WithDelay(cfg.CrawlDelay),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	)
	robots := fetch.NewRobots(httpClient, cfg.UserAgent, !cfg.IgnoreRobots)

	c := crawler.New(cfg.BaseURL, store, fetcher, extractor,
		crawler.WithMode(crawler.Mode(cfg.Mode)),
		crawler.WithRobots(robots),
		crawler.WithLogger(logger),
	)

	fmt.Printf("Crawling %s (%s mode)...\n", cfg.BaseURL, cfg.Mode)
	startTime := time.Now()

	stats, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl completed in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  pages:     %d\n", stats.Pages)
	fmt.Printf("  new:       %d\n", stats.New)
	fmt.Printf("  updated:   %d\n", stats.Updated)
	fmt.Printf("  unchanged: %d\n", stats.Unchanged)
	fmt.Printf("  skipped:   %d\n", stats.Skipped)
	fmt.Printf("  failed:    %d\n", stats.Failed)

	if total, err := store.CountRecords(ctx); err == nil {
		fmt.Printf("  catalog:   %d records\n", total)
	}

	if cfg.Mode != "incremental" || !cfg.GenerateReport {
		return nil
	}

	gen := report.NewGenerator(store, cfg.ReportDir,
		report.WithBatchSize(cfg.ReportBatchSize),
		report.WithLogger(logger),
	)
	paths, err := gen.Generate(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}
	for _, path := range paths {
		fmt.Printf("Report written: %s\n", path)
	}

	return nil
}
