// Package crawler orchestrates the crawl pipeline: walking listing pages,
// fetching item pages, extracting records, diffing them against the store,
// and persisting records with their change events.
//
// The crawler itself holds no crawl state beyond the current run; resumption
// state lives in the store's cursor so that a killed process restarts where
// it left off.
package crawler
