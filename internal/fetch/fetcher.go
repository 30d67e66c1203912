package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Default fetcher settings.
const (
	// DefaultRetries is the number of attempts per URL before giving up.
	DefaultRetries = 3

	// DefaultMaxBodySize limits response bodies to 5MB. Catalog pages are
	// small; anything larger is truncated to protect memory.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies shelfwatch in HTTP requests so that site
	// operators can recognize crawler traffic in their logs.
	DefaultUserAgent = "shelfwatch/1.0 (+https://github.com/shelfwatch/shelfwatch)"
)

// Client fetches pages with bounded retries and politeness pacing.
type Client struct {
	// http performs the actual requests.
	http *http.Client

	// retries is the maximum number of attempts per URL.
	retries int

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits how many body bytes are read per response.
	maxBodySize int64

	// limiter paces requests. Every attempt, including retries, waits on it.
	limiter *rate.Limiter

	// logger records failed attempts.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
// Tests use this to point the fetcher at an httptest server with a short
// timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetries sets the maximum number of attempts per URL.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithDelay paces requests at most one per d.
// A zero or negative delay disables pacing.
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithLogger sets the logger used for per-attempt failure logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a fetch client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: 20 * time.Second},
		retries:     DefaultRetries,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves the text content of url.
//
// It attempts the request up to the configured retry bound, retrying on
// transport failures and on non-2xx statuses. On success it returns the
// decoded body and the response status. On exhaustion it returns an empty
// body together with the last observed status code so the caller can tell
// a terminal 404 from a transient failure; the error stays nil because an
// HTTP error status is data here, not a Go error. A non-nil error means the
// request could not be attempted at all (bad URL or canceled context).
//
// Each failed attempt emits one structured warn log.
func (c *Client) Fetch(ctx context.Context, url string) (string, int, error) {
	var lastStatus int

	for attempt := 1; attempt <= c.retries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", lastStatus, err
			}
		}

		body, status, err := c.fetchOnce(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return "", lastStatus, ctx.Err()
			}
			c.logger.Warn("fetch attempt failed",
				"url", url,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		lastStatus = status
		if status >= 200 && status < 300 {
			return body, status, nil
		}

		c.logger.Warn("fetch attempt failed",
			"url", url,
			"attempt", attempt,
			"status", status,
		)
	}

	return "", lastStatus, nil
}

// fetchOnce performs a single request and reads the decoded body.
func (c *Client) fetchOnce(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	// Decode to UTF-8 based on the declared charset. Catalog sites are a
	// mix of UTF-8 and Latin-1; charset.NewReader sniffs when the header
	// is missing.
	limited := io.LimitReader(resp.Body, c.maxBodySize)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = limited
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", resp.StatusCode, err
	}

	return string(body), resp.StatusCode, nil
}
