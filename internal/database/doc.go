// Package database provides SQLite-backed storage for records, change
// events, and the crawl cursor.
//
// The store owns the atomicity contract of the pipeline: a record write and
// its change event are committed in one transaction, so a crash can never
// leave an event pointing at a record state that was not durably written,
// or vice versa.
package database
