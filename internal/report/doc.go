// Package report exports change events as daily report files.
//
// Events for one day are read from the store in keyset batches and written
// as numbered JSON files, so a day with many changes splits into
// fixed-size chunks instead of one unbounded file. A Markdown summary of
// the day's activity is available alongside the JSON export.
package report
