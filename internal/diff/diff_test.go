package diff

import (
	"strings"
	"testing"

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// record returns a fully populated record with its content hash computed.
func record(t *testing.T, mutate func(*model.Record)) *model.Record {
	t.Helper()

	r := &model.Record{
		UPC:         "a897fe39b1053632",
		Title:       "A Light in the Attic",
		PriceIncl:   10.00,
		PriceExcl:   10.00,
		IsAvailable: true,
		Stock:       22,
		NumReviews:  0,
		Rating:      3,
		SourceURL:   "http://example.test/catalogue/a-light-in-the-attic_1000/index.html",
	}
	if mutate != nil {
		mutate(r)
	}
	r.ComputeContentHash()
	return r
}

// TestCompare tests the two-phase diff.
func TestCompare(t *testing.T) {
	t.Parallel()

	t.Run("equal fingerprints yield no diff", func(t *testing.T) {
		t.Parallel()

		old := record(t, nil)
		next := record(t, nil)

		if got := Compare(old, next); got != nil {
			t.Errorf("expected nil result for unchanged record, got %+v", got)
		}
	})

	t.Run("price change produces labeled diff with before and after", func(t *testing.T) {
		t.Parallel()

		old := record(t, nil)
		next := record(t, func(r *model.Record) { r.PriceIncl = 12.50 })

		res := Compare(old, next)
		if res == nil {
			t.Fatal("expected a diff result")
		}

		if !strings.Contains(res.Description, "Price (including tax)") {
			t.Errorf("description %q does not mention the price label", res.Description)
		}
		if !strings.HasSuffix(res.Description, " changed") {
			t.Errorf("description %q does not end with ' changed'", res.Description)
		}

		fc, ok := res.Changes["price_incl"]
		if !ok {
			t.Fatalf("changes map missing price_incl: %+v", res.Changes)
		}
		if fc.Previous != 10.00 {
			t.Errorf("previous = %v, want 10.00", fc.Previous)
		}
		if fc.Current != 12.50 {
			t.Errorf("current = %v, want 12.50", fc.Current)
		}
	})

	t.Run("multiple changed fields are all itemized", func(t *testing.T) {
		t.Parallel()

		old := record(t, nil)
		next := record(t, func(r *model.Record) {
			r.PriceIncl = 12.50
			r.Stock = 3
			r.NumReviews = 7
			r.Rating = 5
		})

		res := Compare(old, next)
		if res == nil {
			t.Fatal("expected a diff result")
		}

		for _, name := range []string{"price_incl", "stock", "num_reviews", "rating"} {
			if _, ok := res.Changes[name]; !ok {
				t.Errorf("changes map missing %s", name)
			}
		}
		for _, label := range []string{"Price (including tax)", "Stock", "Number of Reviews", "Rating"} {
			if !strings.Contains(res.Description, label) {
				t.Errorf("description %q missing label %q", res.Description, label)
			}
		}
	})

	t.Run("unchanged itemized fields are absent from the map", func(t *testing.T) {
		t.Parallel()

		old := record(t, nil)
		next := record(t, func(r *model.Record) { r.Stock = 1 })

		res := Compare(old, next)
		if res == nil {
			t.Fatal("expected a diff result")
		}
		if _, ok := res.Changes["price_incl"]; ok {
			t.Error("price_incl should not appear in the change map")
		}
		if len(res.Changes) != 1 {
			t.Errorf("expected exactly one change, got %d", len(res.Changes))
		}
	})

	t.Run("title-only change falls back to generic description", func(t *testing.T) {
		t.Parallel()

		old := record(t, nil)
		next := record(t, func(r *model.Record) { r.Title = "A Light in the Attic (2nd ed.)" })

		res := Compare(old, next)
		if res == nil {
			t.Fatal("title is fingerprinted; expected a diff result")
		}
		if res.Description != "Content changed" {
			t.Errorf("description = %q, want %q", res.Description, "Content changed")
		}
		if len(res.Changes) != 0 {
			t.Errorf("expected empty change map, got %+v", res.Changes)
		}
	})
}
