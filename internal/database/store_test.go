package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// testRecord returns a persisted-shape record with a computed hash.
func testRecord(upc string, priceIncl float64) *model.Record {
	r := &model.Record{
		UPC:         upc,
		Title:       "Title " + upc,
		Category:    "Poetry",
		Description: "desc",
		PriceIncl:   priceIncl,
		PriceExcl:   priceIncl,
		IsAvailable: true,
		Stock:       22,
		NumReviews:  0,
		Rating:      3,
		ImageURL:    "http://example.test/media/img.jpg",
		SourceURL:   "http://example.test/catalogue/" + upc + "/index.html",
		RawHTML:     "<html>raw</html>",
		CrawledAt:   time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
	r.ComputeContentHash()
	return r
}

// TestOpen tests store opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, "shelfwatch.db")); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false fails on missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
	})
}

// TestUpsertAndLog tests the transactional dual-write.
func TestUpsertAndLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("insert without event in full mode", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		rec := testRecord("upc-full", 10.00)

		outcome, err := s.UpsertAndLog(ctx, rec, WriteDecision{EmitNewEvent: false})
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if outcome != OutcomeInserted {
			t.Errorf("outcome = %q, want inserted", outcome)
		}
		if rec.ID == 0 {
			t.Error("record ID was not assigned")
		}

		n, err := s.CountChangeEvents(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected no change events, got %d", n)
		}
	})

	t.Run("insert with new event in incremental mode", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		rec := testRecord("upc-incr", 10.00)

		if _, err := s.UpsertAndLog(ctx, rec, WriteDecision{EmitNewEvent: true}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		events, err := s.ChangeEventsBetween(ctx, rec.CrawledAt.Add(-time.Hour), rec.CrawledAt.Add(time.Hour), 0, 10)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Kind != model.ChangeNew {
			t.Errorf("kind = %q, want new", events[0].Kind)
		}
		if events[0].RecordID != rec.ID {
			t.Errorf("event record id = %d, want %d", events[0].RecordID, rec.ID)
		}
		if events[0].SourceURL != rec.SourceURL {
			t.Errorf("event source url = %q", events[0].SourceURL)
		}
	})

	t.Run("update replaces fields and appends updated event", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		old := testRecord("upc-upd", 10.00)
		if _, err := s.UpsertAndLog(ctx, old, WriteDecision{}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		next := testRecord("upc-upd", 12.50)
		outcome, err := s.UpsertAndLog(ctx, next, WriteDecision{
			Existing:    old,
			Description: "Price (including tax), Price (excluding tax) changed",
			Changes: map[string]model.FieldChange{
				"price_incl": {Previous: 10.00, Current: 12.50},
				"price_excl": {Previous: 10.00, Current: 12.50},
			},
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if outcome != OutcomeUpdated {
			t.Errorf("outcome = %q, want updated", outcome)
		}

		stored, err := s.FindByUPC(ctx, "upc-upd")
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		if stored.PriceIncl != 12.50 {
			t.Errorf("stored price = %v, want 12.50", stored.PriceIncl)
		}
		if stored.ContentHash != next.ContentHash {
			t.Error("content hash was not replaced")
		}

		events, err := s.ChangeEventsBetween(ctx, next.CrawledAt.Add(-time.Hour), next.CrawledAt.Add(time.Hour), 0, 10)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		ev := events[0]
		if ev.Kind != model.ChangeUpdated {
			t.Errorf("kind = %q, want updated", ev.Kind)
		}
		if ev.Description != "Price (including tax), Price (excluding tax) changed" {
			t.Errorf("description = %q", ev.Description)
		}
		fc, ok := ev.Changes["price_incl"]
		if !ok {
			t.Fatalf("changes missing price_incl: %+v", ev.Changes)
		}
		// JSON round-trips numbers as float64.
		if fc.Previous != 10.00 || fc.Current != 12.50 {
			t.Errorf("price change = %+v", fc)
		}
	})

	t.Run("unchanged record writes nothing", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		old := testRecord("upc-same", 10.00)
		if _, err := s.UpsertAndLog(ctx, old, WriteDecision{}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		next := testRecord("upc-same", 10.00)
		outcome, err := s.UpsertAndLog(ctx, next, WriteDecision{Existing: old})
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if outcome != OutcomeUnchanged {
			t.Errorf("outcome = %q, want unchanged", outcome)
		}

		n, _ := s.CountChangeEvents(ctx)
		if n != 0 {
			t.Errorf("expected no events, got %d", n)
		}
	})

	t.Run("duplicate natural key surfaces ErrConflict", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		first := testRecord("upc-dup", 10.00)
		if _, err := s.UpsertAndLog(ctx, first, WriteDecision{}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		dup := testRecord("upc-dup", 11.00)
		dup.SourceURL = "http://example.test/catalogue/other/index.html"
		_, err := s.UpsertAndLog(ctx, dup, WriteDecision{})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("conflicting insert leaves no partial event", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		first := testRecord("upc-atomic", 10.00)
		if _, err := s.UpsertAndLog(ctx, first, WriteDecision{}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		dup := testRecord("upc-atomic", 11.00)
		dup.SourceURL = "http://example.test/catalogue/atomic2/index.html"
		if _, err := s.UpsertAndLog(ctx, dup, WriteDecision{EmitNewEvent: true}); err == nil {
			t.Fatal("expected conflict error")
		}

		n, _ := s.CountChangeEvents(ctx)
		if n != 0 {
			t.Errorf("conflicting insert left %d events behind", n)
		}
	})
}

// TestFind tests record lookup.
func TestFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("absent record returns nil without error", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		rec, err := s.FindBySourceURL(ctx, "http://example.test/none")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec != nil {
			t.Errorf("expected nil record, got %+v", rec)
		}
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		rec := testRecord("upc-rt", 51.77)
		if _, err := s.UpsertAndLog(ctx, rec, WriteDecision{}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		got, err := s.FindBySourceURL(ctx, rec.SourceURL)
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		if got == nil {
			t.Fatal("record not found")
		}

		if got.UPC != rec.UPC || got.Title != rec.Title || got.Category != rec.Category {
			t.Errorf("identity fields differ: %+v", got)
		}
		if got.PriceIncl != rec.PriceIncl || got.PriceExcl != rec.PriceExcl {
			t.Errorf("prices differ: %+v", got)
		}
		if got.IsAvailable != rec.IsAvailable || got.Stock != rec.Stock {
			t.Errorf("availability differs: %+v", got)
		}
		if got.Rating != rec.Rating || got.NumReviews != rec.NumReviews {
			t.Errorf("review fields differ: %+v", got)
		}
		if got.RawHTML != rec.RawHTML {
			t.Error("raw payload differs")
		}
		if got.ContentHash != rec.ContentHash {
			t.Error("content hash differs")
		}
		if !got.CrawledAt.Equal(rec.CrawledAt) {
			t.Errorf("crawled_at = %v, want %v", got.CrawledAt, rec.CrawledAt)
		}
	})
}

// TestCursor tests crawl cursor persistence.
func TestCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("defaults to page 1 when absent", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		page, err := s.Cursor(ctx)
		if err != nil {
			t.Fatalf("cursor failed: %v", err)
		}
		if page != 1 {
			t.Errorf("page = %d, want 1", page)
		}
	})

	t.Run("advance is idempotent and persists", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		for _, p := range []int{2, 3, 3, 7} {
			if err := s.AdvanceCursor(ctx, p); err != nil {
				t.Fatalf("advance to %d failed: %v", p, err)
			}
		}

		page, err := s.Cursor(ctx)
		if err != nil {
			t.Fatalf("cursor failed: %v", err)
		}
		if page != 7 {
			t.Errorf("page = %d, want 7", page)
		}
	})
}

// TestChangeEventsBetween tests the keyset range query.
func TestChangeEventsBetween(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	// 25 events on the target day, 1 the day before, 1 the day after.
	for i := 0; i < 25; i++ {
		rec := testRecord(fmt.Sprintf("upc-%03d", i), 10.00)
		rec.CrawledAt = day.Add(time.Duration(i) * time.Minute)
		if _, err := s.UpsertAndLog(ctx, rec, WriteDecision{EmitNewEvent: true}); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	before := testRecord("upc-before", 10.00)
	before.CrawledAt = day.Add(-time.Hour)
	after := testRecord("upc-after", 10.00)
	after.CrawledAt = day.Add(25 * time.Hour)
	for _, r := range []*model.Record{before, after} {
		if _, err := s.UpsertAndLog(ctx, r, WriteDecision{EmitNewEvent: true}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	var all []model.ChangeEvent
	var afterID int64
	for {
		batch, err := s.ChangeEventsBetween(ctx, day, day.Add(24*time.Hour), afterID, 10)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		afterID = batch[len(batch)-1].ID
	}

	if len(all) != 25 {
		t.Fatalf("got %d events, want 25", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Fatalf("ids not strictly ascending at %d: %d <= %d", i, all[i].ID, all[i-1].ID)
		}
	}
}
