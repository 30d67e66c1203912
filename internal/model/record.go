package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Record represents one catalog item harvested from the site.
// It holds both the structured fields extracted from the item page and the
// raw captured payload for later re-analysis.
//
// Design decision: We store the raw HTML alongside the parsed fields because:
//  1. Extraction rules evolve; the raw payload allows re-extraction
//  2. Debugging a bad diff requires seeing exactly what was fetched
//  3. The fingerprint deliberately excludes it, so it never affects change detection
type Record struct {
	// ID is the internal storage identifier. Zero until persisted.
	ID int64 `json:"id"`

	// UPC is the natural key assigned by the catalog site.
	// It is unique and immutable once a record is created.
	UPC string `json:"upc"`

	// Title is the item's display title.
	Title string `json:"title"`

	// Category is the item's category from the breadcrumb trail.
	// Empty when the page carries no breadcrumb.
	Category string `json:"category,omitempty"`

	// Description is the free-text item description. May be empty.
	Description string `json:"description,omitempty"`

	// PriceIncl is the tax-inclusive price.
	PriceIncl float64 `json:"price_incl"`

	// PriceExcl is the tax-exclusive price from the details table.
	PriceExcl float64 `json:"price_excl"`

	// IsAvailable reports whether the availability text marks the item
	// as in stock.
	IsAvailable bool `json:"is_available"`

	// Stock is the advertised unit count. Zero when the page does not
	// state one.
	Stock int `json:"stock"`

	// NumReviews is the review count from the details table.
	NumReviews int `json:"num_reviews"`

	// Rating is the star rating in the range 1-5. Zero means the page
	// carried no recognizable rating.
	Rating int `json:"rating,omitempty"`

	// ImageURL is the absolute URL of the item's primary image.
	ImageURL string `json:"image_url,omitempty"`

	// SourceURL is the canonical URL the record was extracted from.
	// Unique across records.
	SourceURL string `json:"source_url"`

	// RawHTML is the captured item page payload.
	// Excluded from JSON to keep report and log output small.
	RawHTML string `json:"-"`

	// ContentHash is the fingerprint over the mutable observable fields.
	// See Fingerprint for the exact field set.
	ContentHash string `json:"content_hash"`

	// CrawledAt is when the record was captured.
	CrawledAt time.Time `json:"crawled_at"`
}

// Fingerprint computes the content fingerprint of the record.
//
// The fingerprint is a SHA-256 digest over a canonical JSON serialization
// of exactly {title, price_incl, is_available, stock}. Serializing through
// a map gives stable key ordering, so identical field values always produce
// identical digests. Raw payload and capture timestamp are deliberately not
// part of the input: re-crawling an unchanged page must yield the same
// fingerprint even though both of those differ per crawl.
func (r *Record) Fingerprint() string {
	payload := map[string]any{
		"title":        r.Title,
		"price_incl":   r.PriceIncl,
		"is_available": r.IsAvailable,
		"stock":        r.Stock,
	}

	// Marshaling a map[string]any with scalar values cannot fail.
	data, _ := json.Marshal(payload) //nolint:errcheck // see above

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeContentHash calculates the fingerprint and stores it in ContentHash.
// Call this after populating the mutable fields and before persisting.
func (r *Record) ComputeContentHash() {
	r.ContentHash = r.Fingerprint()
}
