// Package main provides the entry point for the shelfwatch CLI.
//
// shelfwatch crawls a paginated catalog site, detects new and changed
// records via content fingerprints, and exports daily change reports.
//
// Usage:
//
//	shelfwatch crawl --base-url https://books.toscrape.com
//	shelfwatch report --date 2026-08-31
//
// See --help for all available options.
package main

// main is the entry point for shelfwatch.
func main() {
	Execute()
}
