// Package main provides the entry point for the shelfwatch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for shelfwatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfwatch",
		Short: "Catalog crawler with change detection and daily change reports",
		Long: `shelfwatch crawls a paginated catalog site, extracts a structured record
per item, and detects changes between crawls via content fingerprints.

Every new or changed record produces an append-only change event; the
report command exports one day's events as batched JSON files.

Incremental crawls (the default) skip items already in the database and
resume from a persisted page cursor after interruption. Full crawls
re-fetch every item and record field-level differences.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
