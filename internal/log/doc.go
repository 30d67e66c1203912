// Package log constructs the application's slog loggers.
//
// Two handlers are offered: human-readable text for interactive use and
// JSON for log shippers. Crawl runs can additionally mirror output into a
// dated file per day so that operators can correlate a day's report files
// with the crawl that produced them.
package log
