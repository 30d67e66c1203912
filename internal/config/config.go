package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These match the behavior of a polite catalog crawl: conservative pacing,
// bounded retries, bounded response sizes.
const (
	// DefaultBaseURL is the canonical public demo catalog. Production
	// deployments always override this, but a working default keeps the
	// tool usable out of the box.
	DefaultBaseURL = "https://books.toscrape.com"

	// DefaultTimeout is the per-request HTTP timeout. Catalog pages are
	// small static HTML; anything slower than this is effectively down.
	DefaultTimeout = 20 * time.Second

	// DefaultRetries is the number of fetch attempts per URL before the
	// page is treated as unavailable.
	DefaultRetries = 3

	// DefaultCrawlDelay is the pause between HTTP requests. This is a
	// politeness setting; 500ms keeps a full catalog crawl under an hour
	// without hammering the site.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is generous for catalog HTML while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultReportBatchSize is the number of change events per report file.
	DefaultReportBatchSize = 500

	// DefaultUserAgent identifies shelfwatch in HTTP requests.
	// A descriptive User-Agent lets site operators recognize crawler
	// traffic in their logs.
	DefaultUserAgent = "shelfwatch/1.0 (+https://github.com/shelfwatch/shelfwatch)"

	// DefaultMode is the crawl mode used when none is specified.
	// Incremental is the daily-operation mode; full re-crawls are explicit.
	DefaultMode = "incremental"

	// AppName is the application name used for XDG directory paths.
	AppName = "shelfwatch"
)

// Config holds all configuration options for shelfwatch.
// This struct is populated from defaults, the optional config file, and CLI
// flags, then passed through the application via dependency injection.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// BaseURL is the root of the catalog site to crawl.
	BaseURL string

	// Mode selects the crawl policy: "incremental" skips known items and
	// resumes from the stored cursor; "full" re-fetches and re-diffs the
	// entire catalog.
	Mode string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/shelfwatch on Linux).
	DBDir string

	// ReportDir is the directory where daily change report files are written.
	ReportDir string

	// LogDir is the directory for dated crawl log files. When empty, logs
	// go only to stderr.
	LogDir string

	// Timeout is the HTTP timeout for each request.
	Timeout time.Duration

	// Retries is the number of fetch attempts per URL.
	Retries int

	// CrawlDelay is the delay between HTTP requests during crawling.
	// Lower values may cause rate limiting or service disruption.
	CrawlDelay time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated. Set to 0 for the default.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// IgnoreRobots disables the robots.txt check. The check is on by
	// default; disabling it is for sites the operator controls.
	IgnoreRobots bool

	// GenerateReport runs the daily change report after a successful
	// incremental crawl. Full crawls never generate reports.
	GenerateReport bool

	// ReportBatchSize is the number of change events per report file.
	ReportBatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONLog switches log output from text to JSON.
	JSONLog bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .shelfwatch in the current directory
	// and then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, retries).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		Mode:            DefaultMode,
		DBDir:           XDGDataDir(),
		ReportDir:       filepath.Join(XDGDataDir(), "reports"),
		Timeout:         DefaultTimeout,
		Retries:         DefaultRetries,
		CrawlDelay:      DefaultCrawlDelay,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		GenerateReport:  true,
		ReportBatchSize: DefaultReportBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for shelfwatch.
// On Linux: ~/.local/share/shelfwatch
// On macOS: ~/Library/Application Support/shelfwatch
// On Windows: %LOCALAPPDATA%\shelfwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for shelfwatch.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for shelfwatch.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific sentinel error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
// The first error found is returned rather than collecting all errors,
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}

	if c.Mode != "full" && c.Mode != "incremental" {
		return ErrInvalidMode
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Retries <= 0 {
		return ErrInvalidRetries
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ReportBatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	return nil
}
