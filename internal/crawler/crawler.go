package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwatch/shelfwatch/internal/database"
	"github.com/shelfwatch/shelfwatch/internal/diff"
	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/model"
)

// maxConsecutiveListingFailures bounds how many listing pages in a row may
// fail transiently before the run aborts. Without the bound a site outage
// would walk page numbers forever.
const maxConsecutiveListingFailures = 5

// ErrListingUnavailable is returned when too many consecutive listing pages
// could not be fetched.
var ErrListingUnavailable = errors.New("too many consecutive listing page failures")

// Mode selects the crawl policy.
type Mode string

// Crawl modes.
const (
	// ModeFull re-fetches every item, diffs it against the stored record,
	// and records updates. It never skips known items, never emits "new"
	// events, and does not touch the resumption cursor.
	ModeFull Mode = "full"

	// ModeIncremental skips items already in the store, records new items
	// with a "new" event, and persists the page cursor so an interrupted
	// run resumes where it stopped.
	ModeIncremental Mode = "incremental"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFull || m == ModeIncremental
}

// policy is the per-mode behavior table.
type policy struct {
	skipExisting  bool
	emitNewEvent  bool
	persistCursor bool
}

// policyFor maps a mode to its behavior.
func policyFor(m Mode) policy {
	if m == ModeIncremental {
		return policy{skipExisting: true, emitNewEvent: true, persistCursor: true}
	}
	return policy{}
}

// Fetcher retrieves page text. Implemented by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, int, error)
}

// RobotsChecker gates URLs on robots.txt rules. Implemented by fetch.Robots.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Store is the persistence surface the crawler needs.
// Implemented by database.Store; tests substitute an in-memory fake.
type Store interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Record, error)
	UpsertAndLog(ctx context.Context, rec *model.Record, decision database.WriteDecision) (database.Outcome, error)
	Cursor(ctx context.Context) (int, error)
	AdvanceCursor(ctx context.Context, page int) error
}

// Stats summarizes one crawl run.
type Stats struct {
	// Pages is the number of listing pages that yielded items.
	Pages int

	// New is the number of records inserted.
	New int

	// Updated is the number of records replaced with an updated event.
	Updated int

	// Unchanged is the number of re-fetched records whose fingerprint matched.
	Unchanged int

	// Skipped is the number of items not fetched (already stored, or blocked
	// by robots.txt).
	Skipped int

	// Failed is the number of items that could not be fetched or persisted.
	Failed int
}

// Crawler walks the catalog and keeps the store in sync with it.
type Crawler struct {
	store     Store
	fetcher   Fetcher
	extractor *extract.Extractor
	robots    RobotsChecker
	logger    *slog.Logger
	mode      Mode
	baseURL   string

	// now is a clock seam for tests.
	now func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMode sets the crawl mode. The default is incremental.
func WithMode(m Mode) Option {
	return func(c *Crawler) {
		if m.Valid() {
			c.mode = m
		}
	}
}

// WithRobots sets the robots.txt gate. When unset every URL is allowed.
func WithRobots(r RobotsChecker) Option {
	return func(c *Crawler) {
		c.robots = r
	}
}

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source. Tests use this to pin CrawledAt.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Crawler for the catalog rooted at baseURL.
func New(baseURL string, store Store, fetcher Fetcher, extractor *extract.Extractor, opts ...Option) *Crawler {
	c := &Crawler{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    slog.Default(),
		mode:      ModeIncremental,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// listingURL returns the URL of the numbered listing page.
func (c *Crawler) listingURL(page int) string {
	return fmt.Sprintf("%s/catalogue/page-%d.html", c.baseURL, page)
}

// Run walks listing pages from the starting point until the catalog is
// exhausted, processing every item on each page.
//
// The run ends normally when a listing page returns 404 or contains no item
// links. A transiently failing listing page is logged and skipped; too many
// in a row abort the run with ErrListingUnavailable. Item-level failures
// never stop the run: they are counted in Stats and, for store conflicts,
// joined into the returned error.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	pol := policyFor(c.mode)

	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "mode", string(c.mode))

	page := 1
	if pol.persistCursor {
		var err error
		if page, err = c.store.Cursor(ctx); err != nil {
			return stats, fmt.Errorf("failed to read resume cursor: %w", err)
		}
	}

	logger.Info("crawl started", "start_page", page)

	var conflicts []error
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		// The cursor points at the page about to be crawled, so a crash
		// mid-page re-crawls that page rather than silently skipping it.
		if pol.persistCursor {
			if err := c.store.AdvanceCursor(ctx, page); err != nil {
				return stats, fmt.Errorf("failed to persist cursor: %w", err)
			}
		}

		url := c.listingURL(page)
		body, status, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return stats, fmt.Errorf("listing fetch aborted: %w", err)
		}

		if body == "" {
			if status == http.StatusNotFound {
				logger.Info("catalog exhausted", "page", page, "status", status)
				break
			}

			consecutiveFailures++
			logger.Warn("listing page unavailable",
				"page", page,
				"status", status,
				"consecutive_failures", consecutiveFailures,
			)
			if consecutiveFailures >= maxConsecutiveListingFailures {
				return stats, fmt.Errorf("%w: gave up at page %d", ErrListingUnavailable, page)
			}
			page++
			continue
		}
		consecutiveFailures = 0

		links := c.extractor.Links(body)
		if len(links) == 0 {
			logger.Info("catalog exhausted", "page", page, "reason", "no items")
			break
		}

		if err := c.processPage(ctx, logger, pol, page, links, &stats, &conflicts); err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			logger.Error("page abandoned", "page", page, "error", err)
		}

		stats.Pages++
		page++
	}

	logger.Info("crawl finished",
		"pages", stats.Pages,
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)

	return stats, errors.Join(conflicts...)
}

// processPage handles every item link on one listing page. A returned error
// abandons the remainder of the page; item-level problems are absorbed into
// stats instead.
func (c *Crawler) processPage(ctx context.Context, logger *slog.Logger, pol policy, page int, links []string, stats *Stats, conflicts *[]error) error {
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}

		var existing *model.Record

		if pol.skipExisting {
			rec, err := c.store.FindBySourceURL(ctx, link)
			if err != nil {
				return fmt.Errorf("lookup failed for %s: %w", link, err)
			}
			if rec != nil {
				stats.Skipped++
				continue
			}
		}

		if c.robots != nil && !c.robots.Allowed(ctx, link) {
			logger.Debug("item blocked by robots.txt", "page", page, "url", link)
			stats.Skipped++
			continue
		}

		body, status, err := c.fetcher.Fetch(ctx, link)
		if err != nil {
			return fmt.Errorf("item fetch aborted: %w", err)
		}
		if body == "" {
			logger.Warn("item fetch failed", "page", page, "url", link, "status", status)
			stats.Failed++
			continue
		}

		rec := c.extractor.Record(body, link)
		rec.RawHTML = body
		rec.CrawledAt = c.now().UTC()
		rec.ComputeContentHash()

		if !pol.skipExisting {
			if existing, err = c.store.FindBySourceURL(ctx, link); err != nil {
				return fmt.Errorf("lookup failed for %s: %w", link, err)
			}
		}

		decision := database.WriteDecision{
			Existing:     existing,
			EmitNewEvent: pol.emitNewEvent,
		}
		if existing != nil {
			if res := diff.Compare(existing, &rec); res != nil {
				decision.Description = res.Description
				decision.Changes = res.Changes
			}
		}

		outcome, err := c.store.UpsertAndLog(ctx, &rec, decision)
		switch {
		case errors.Is(err, database.ErrConflict):
			logger.Warn("record conflict", "page", page, "url", link, "upc", rec.UPC)
			*conflicts = append(*conflicts, fmt.Errorf("%s: %w", link, err))
			stats.Failed++
			continue
		case err != nil:
			return fmt.Errorf("store write failed for %s: %w", link, err)
		}

		switch outcome {
		case database.OutcomeInserted:
			stats.New++
			logger.Debug("record inserted", "page", page, "url", link, "upc", rec.UPC)
		case database.OutcomeUpdated:
			stats.Updated++
			logger.Info("record updated", "page", page, "url", link, "upc", rec.UPC, "description", decision.Description)
		case database.OutcomeUnchanged:
			stats.Unchanged++
		}
	}

	return nil
}
