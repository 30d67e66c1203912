package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// ratingWords maps the star-rating class token to its numeric value.
// The catalog encodes ratings as CSS classes like "star-rating Three".
var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// stockRe matches the unit count in availability text such as
// "In stock (22 available)".
var stockRe = regexp.MustCompile(`(?i)\((\d+)\s+available\)`)

// Extractor parses catalog pages into item links and records.
//
// Design decision: We use goquery rather than walking the node tree with
// golang.org/x/net/html because the catalog markup is selector-shaped:
// every field of interest is addressed by a short CSS selector, and goquery
// keeps those rules one line each and tolerant of malformed HTML.
type Extractor struct {
	// base is the catalog site root, used to absolutize relative item and
	// image URLs.
	base *url.URL

	// catalogue is the listing directory all item links are relative to.
	catalogue *url.URL
}

// New creates an Extractor for the catalog rooted at baseURL.
func New(baseURL string) (*Extractor, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}

	// Item hrefs on listing pages are relative to the catalogue directory.
	catalogue, err := base.Parse(base.Path + "/catalogue/")
	if err != nil {
		return nil, err
	}

	return &Extractor{base: base, catalogue: catalogue}, nil
}

// Links extracts the ordered item page URLs from a listing page.
//
// An empty slice is a meaningful result: it tells the crawl loop the page
// has no items and the catalog is exhausted. Parse failures likewise yield
// an empty slice rather than an error.
func (e *Extractor) Links(listingHTML string) []string {
	links := make([]string, 0)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return links
	}

	doc.Find("article.product_pod h3 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, e.catalogue.ResolveReference(ref).String())
	})

	return links
}

// Record extracts a best-effort record from an item page.
//
// Every field degrades independently: a missing or malformed fragment
// yields that field's zero value and extraction of the remaining fields
// continues. The returned record always carries the source URL; the caller
// is responsible for RawHTML, CrawledAt, and the content hash.
func (e *Extractor) Record(itemHTML, sourceURL string) model.Record {
	rec := model.Record{SourceURL: sourceURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(itemHTML))
	if err != nil {
		return rec
	}

	rec.Title = strings.TrimSpace(doc.Find("div.product_main h1").First().Text())
	rec.Description = strings.TrimSpace(doc.Find("#product_description ~ p").First().Text())
	rec.Category = strings.TrimSpace(doc.Find("ul.breadcrumb li a").Last().Text())
	rec.PriceIncl = parsePrice(doc.Find("p.price_color").First().Text())

	availability := strings.TrimSpace(doc.Find("p.availability").First().Text())
	if strings.Contains(strings.ToUpper(availability), "IN STOCK") {
		rec.IsAvailable = true
		if m := stockRe.FindStringSubmatch(availability); m != nil {
			// The regex guarantees digits; range is the only failure mode.
			if n, err := strconv.Atoi(m[1]); err == nil {
				rec.Stock = n
			}
		}
	}

	if class, ok := doc.Find("p.star-rating").First().Attr("class"); ok {
		for _, token := range strings.Fields(class) {
			if v, ok := ratingWords[token]; ok {
				rec.Rating = v
				break
			}
		}
	}

	if src, ok := doc.Find("div.carousel-inner img").First().Attr("src"); ok && src != "" {
		rec.ImageURL = e.absoluteImageURL(src)
	}

	e.extractDetailsTable(doc, &rec)

	return rec
}

// extractDetailsTable scans the product details table for the labeled rows
// the pipeline cares about. Labels are matched case-insensitively and a
// malformed cell leaves the field at its default.
func (e *Extractor) extractDetailsTable(doc *goquery.Document, rec *model.Record) {
	doc.Find("table.table.table-striped tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToUpper(strings.TrimSpace(row.Find("th").First().Text()))
		value := strings.TrimSpace(row.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}

		switch label {
		case "NUMBER OF REVIEWS":
			if n, err := strconv.Atoi(value); err == nil {
				rec.NumReviews = n
			}
		case "UPC":
			rec.UPC = value
		case "PRICE (EXCL. TAX)":
			rec.PriceExcl = parsePrice(value)
		}
	})
}

// absoluteImageURL rewrites a relative image path to an absolute URL.
// Item pages reference images with parent-directory markers
// ("../../media/cache/..."); those are stripped and the site base prefixed.
func (e *Extractor) absoluteImageURL(src string) string {
	src = strings.TrimSpace(src)

	if u, err := url.Parse(src); err == nil && u.IsAbs() {
		return src
	}

	for strings.HasPrefix(src, "../") {
		src = strings.TrimPrefix(src, "../")
	}
	return e.base.String() + "/" + strings.TrimPrefix(src, "/")
}

// parsePrice strips the currency glyph from a price fragment and parses the
// remainder as a decimal, defaulting to zero on any failure.
// The "Â" prefix shows up when a page's Latin-1 pound sign is read as UTF-8.
func parsePrice(text string) float64 {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "Â", "")
	text = strings.ReplaceAll(text, "£", "")
	text = strings.TrimSpace(text)

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return v
}
