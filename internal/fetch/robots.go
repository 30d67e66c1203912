package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCacheTTL is how long a fetched robots.txt is trusted before being
// re-fetched.
const robotsCacheTTL = time.Hour

// Robots checks whether URLs may be crawled according to the site's
// robots.txt. Rules are cached per host.
//
// Lookups fail open: if robots.txt cannot be fetched or parsed, crawling is
// allowed. A catalog crawl should not stall because the site serves a
// broken robots file.
type Robots struct {
	http      *http.Client
	userAgent string
	enabled   bool

	mu     sync.Mutex
	rules  map[string]*robotstxt.RobotsData
	expiry map[string]time.Time
}

// NewRobots creates a robots.txt checker. When enabled is false every
// lookup allows the URL without any network traffic.
func NewRobots(hc *http.Client, userAgent string, enabled bool) *Robots {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Robots{
		http:      hc,
		userAgent: userAgent,
		enabled:   enabled,
		rules:     make(map[string]*robotstxt.RobotsData),
		expiry:    make(map[string]time.Time),
	}
}

// Allowed reports whether rawURL may be crawled.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	if !r.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data, err := r.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return true
	}

	return data.FindGroup(r.userAgent).Test(u.Path)
}

// rulesFor returns the cached rules for origin, fetching robots.txt when
// the cache entry is missing or stale.
func (r *Robots) rulesFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.rules[origin]; ok && time.Now().Before(r.expiry[origin]) {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	r.rules[origin] = data
	r.expiry[origin] = time.Now().Add(robotsCacheTTL)
	return data, nil
}
