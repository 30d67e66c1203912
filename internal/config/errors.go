package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoBaseURL is returned when no catalog base URL is configured.
	// The crawler has nothing to walk without one.
	ErrNoBaseURL = errors.New("no base URL specified: provide --base-url or set base_url in the config file")

	// ErrInvalidBaseURL is returned when the base URL cannot be parsed or
	// uses a scheme other than http/https.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http(s) URL")

	// ErrInvalidMode is returned when the crawl mode is neither "full" nor
	// "incremental".
	ErrInvalidMode = errors.New("invalid mode: must be \"full\" or \"incremental\"")

	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the per-URL retry bound is not positive.
	// Zero retries would mean no fetch is ever attempted.
	ErrInvalidRetries = errors.New("invalid retries: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidBatchSize is returned when the report batch size is not positive.
	// A batch size of zero would produce no report files at all.
	ErrInvalidBatchSize = errors.New("invalid report batch size: must be positive")
)
