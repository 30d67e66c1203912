// Package fetch provides retrying HTTP text retrieval for the crawler.
//
// The fetcher deliberately treats HTTP error statuses as data rather than
// errors: callers need the final status code to tell a terminal "no more
// pages" 404 apart from a transient failure worth skipping. A politeness
// rate limiter paces every attempt, and an optional robots.txt gate lets
// the crawler honor the site's crawl rules.
package fetch
