package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// ErrConflict is returned when a write violates a uniqueness constraint
// outside the expected insert path. Two crawler instances racing on the
// same store is the usual cause; the error surfaces instead of silently
// corrupting the catalog.
var ErrConflict = errors.New("record conflicts with an existing natural key or source URL")

// Store provides SQLite-based persistence for the crawl pipeline.
//
// Design decision: We keep a single database file with three tables rather
// than one file per concern. The record/event dual-write needs a shared
// transaction, and SQLite transactions do not span files.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better durability behavior
	// under the frequent small transactions the crawler produces.
	EnableWAL bool
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store at the specified directory.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, "shelfwatch.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating new files when the caller expects the
	// database to already exist.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; the crawl is single-writer by design.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- Records store one row per catalog item, keyed by the site's UPC.
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upc TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		category TEXT,
		description TEXT,
		price_incl REAL NOT NULL DEFAULT 0,
		price_excl REAL NOT NULL DEFAULT 0,
		is_available INTEGER NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		num_reviews INTEGER NOT NULL DEFAULT 0,
		rating INTEGER NOT NULL DEFAULT 0,
		image_url TEXT,
		source_url TEXT NOT NULL UNIQUE,
		raw_html TEXT,
		content_hash TEXT NOT NULL,
		crawled_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_content_hash ON records(content_hash);

	-- Change events are append-only; id order is insertion order, which the
	-- report generator relies on for keyset pagination.
	CREATE TABLE IF NOT EXISTS change_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		record_id INTEGER NOT NULL REFERENCES records(id),
		source_url TEXT NOT NULL,
		occurred_at DATETIME NOT NULL,
		description TEXT,
		changes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_occurred ON change_events(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_events_record ON change_events(record_id);

	-- Singleton resumption cursor for incremental crawls.
	CREATE TABLE IF NOT EXISTS crawl_cursor (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_page INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Outcome reports what a call to UpsertAndLog did.
type Outcome string

// Upsert outcomes.
const (
	// OutcomeInserted means a new record was created.
	OutcomeInserted Outcome = "inserted"

	// OutcomeUpdated means an existing record was replaced and an updated
	// event appended.
	OutcomeUpdated Outcome = "updated"

	// OutcomeUnchanged means the fingerprint matched and nothing was written.
	OutcomeUnchanged Outcome = "unchanged"
)

// WriteDecision tells UpsertAndLog what the orchestrator decided for one item.
type WriteDecision struct {
	// Existing is the stored record found for the item's source URL, or nil
	// when the item is new.
	Existing *model.Record

	// EmitNewEvent appends a "new" change event on insertion. Only
	// incremental runs set this.
	EmitNewEvent bool

	// Description is the human-readable diff summary for updates.
	Description string

	// Changes is the per-field before/after map for updates. Nil means the
	// record is unchanged and no write happens.
	Changes map[string]model.FieldChange
}

// UpsertAndLog applies one per-item decision as a single atomic transaction.
//
// Insert path (Existing nil): the record is inserted and, when EmitNewEvent
// is set, a "new" change event is appended in the same transaction.
// Update path (Existing non-nil, Changes non-nil or Description set): the
// record's fields are replaced in place and an "updated" event carrying the
// diff is appended. Otherwise no write occurs.
//
// Partial application is never observable: either both the record and its
// event commit, or neither does.
func (s *Store) UpsertAndLog(ctx context.Context, rec *model.Record, decision WriteDecision) (Outcome, error) {
	if decision.Existing == nil {
		if err := s.insertRecord(ctx, rec, decision.EmitNewEvent); err != nil {
			return "", err
		}
		return OutcomeInserted, nil
	}

	if decision.Changes == nil && decision.Description == "" {
		return OutcomeUnchanged, nil
	}

	if err := s.updateRecord(ctx, rec, decision); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

// insertRecord inserts a record and optionally its "new" event.
func (s *Store) insertRecord(ctx context.Context, rec *model.Record, emitEvent bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO records (upc, title, category, description, price_incl, price_excl,
		is_available, stock, num_reviews, rating, image_url, source_url,
		raw_html, content_hash, crawled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UPC, rec.Title, rec.Category, rec.Description, rec.PriceIncl, rec.PriceExcl,
		boolToInt(rec.IsAvailable), rec.Stock, rec.NumReviews, rec.Rating, rec.ImageURL,
		rec.SourceURL, rec.RawHTML, rec.ContentHash, rec.CrawledAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return wrapConflict(err, "failed to insert record")
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted record id: %w", err)
	}

	if emitEvent {
		if err := insertEvent(ctx, tx, &model.ChangeEvent{
			Kind:       model.ChangeNew,
			RecordID:   rec.ID,
			SourceURL:  rec.SourceURL,
			OccurredAt: rec.CrawledAt,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

// updateRecord replaces an existing record's fields and appends the
// "updated" event carrying the diff.
func (s *Store) updateRecord(ctx context.Context, rec *model.Record, decision WriteDecision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	UPDATE records SET
		title = ?, category = ?, description = ?, price_incl = ?, price_excl = ?,
		is_available = ?, stock = ?, num_reviews = ?, rating = ?, image_url = ?,
		raw_html = ?, content_hash = ?, crawled_at = ?
	WHERE id = ?`,
		rec.Title, rec.Category, rec.Description, rec.PriceIncl, rec.PriceExcl,
		boolToInt(rec.IsAvailable), rec.Stock, rec.NumReviews, rec.Rating, rec.ImageURL,
		rec.RawHTML, rec.ContentHash, rec.CrawledAt.UTC().Format(timeLayout),
		decision.Existing.ID,
	)
	if err != nil {
		return wrapConflict(err, "failed to update record")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %d vanished during update", decision.Existing.ID)
	}

	rec.ID = decision.Existing.ID

	if err := insertEvent(ctx, tx, &model.ChangeEvent{
		Kind:        model.ChangeUpdated,
		RecordID:    rec.ID,
		SourceURL:   rec.SourceURL,
		OccurredAt:  rec.CrawledAt,
		Description: decision.Description,
		Changes:     decision.Changes,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

// insertEvent appends a change event within an open transaction.
func insertEvent(ctx context.Context, tx *sql.Tx, ev *model.ChangeEvent) error {
	var changesJSON any
	if ev.Changes != nil {
		data, err := json.Marshal(ev.Changes)
		if err != nil {
			return fmt.Errorf("failed to serialize changes: %w", err)
		}
		changesJSON = string(data)
	}

	_, err := tx.ExecContext(ctx, `
	INSERT INTO change_events (kind, record_id, source_url, occurred_at, description, changes)
	VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Kind), ev.RecordID, ev.SourceURL,
		ev.OccurredAt.UTC().Format(timeLayout), ev.Description, changesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert change event: %w", err)
	}
	return nil
}

// FindBySourceURL retrieves the record for a source URL.
// Returns (nil, nil) when no record exists.
func (s *Store) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Record, error) {
	return s.findOne(ctx, "source_url", sourceURL)
}

// FindByUPC retrieves the record for a natural key.
// Returns (nil, nil) when no record exists.
func (s *Store) FindByUPC(ctx context.Context, upc string) (*model.Record, error) {
	return s.findOne(ctx, "upc", upc)
}

func (s *Store) findOne(ctx context.Context, column, value string) (*model.Record, error) {
	query := fmt.Sprintf(`
	SELECT id, upc, title, category, description, price_incl, price_excl,
		is_available, stock, num_reviews, rating, image_url, source_url,
		raw_html, content_hash, crawled_at
	FROM records WHERE %s = ?`, column)

	var rec model.Record
	var category, description, imageURL, rawHTML sql.NullString
	var isAvailable int
	var crawledAt string

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&rec.ID, &rec.UPC, &rec.Title, &category, &description,
		&rec.PriceIncl, &rec.PriceExcl, &isAvailable, &rec.Stock,
		&rec.NumReviews, &rec.Rating, &imageURL, &rec.SourceURL,
		&rawHTML, &rec.ContentHash, &crawledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec.Category = category.String
	rec.Description = description.String
	rec.ImageURL = imageURL.String
	rec.RawHTML = rawHTML.String
	rec.IsAvailable = isAvailable != 0
	rec.CrawledAt = parseTimestamp(crawledAt)

	return &rec, nil
}

// Cursor returns the next page number for an incremental run.
// An absent cursor means the crawl has never run; page 1 is returned.
func (s *Store) Cursor(ctx context.Context) (int, error) {
	var page int
	err := s.db.QueryRowContext(ctx, `SELECT next_page FROM crawl_cursor WHERE id = 1`).Scan(&page)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl cursor: %w", err)
	}
	return page, nil
}

// AdvanceCursor idempotently sets the stored cursor, creating it if absent.
func (s *Store) AdvanceCursor(ctx context.Context, page int) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO crawl_cursor (id, next_page) VALUES (1, ?)
	ON CONFLICT(id) DO UPDATE SET next_page = excluded.next_page`, page)
	if err != nil {
		return fmt.Errorf("failed to advance crawl cursor: %w", err)
	}
	return nil
}

// ChangeEventsBetween returns one keyset page of change events with
// occurred_at in [from, to), id > afterID, ordered by id ascending.
//
// Keyset pagination keeps each query O(batch) on a growing log where
// OFFSET would rescan everything before the requested page.
func (s *Store) ChangeEventsBetween(ctx context.Context, from, to time.Time, afterID int64, limit int) ([]model.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, kind, record_id, source_url, occurred_at, description, changes
	FROM change_events
	WHERE occurred_at >= ? AND occurred_at < ? AND id > ?
	ORDER BY id ASC
	LIMIT ?`,
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout), afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var ev model.ChangeEvent
		var kind, occurredAt string
		var description, changesJSON sql.NullString

		if err := rows.Scan(&ev.ID, &kind, &ev.RecordID, &ev.SourceURL, &occurredAt, &description, &changesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}

		ev.Kind = model.ChangeKind(kind)
		ev.OccurredAt = parseTimestamp(occurredAt)
		ev.Description = description.String
		if changesJSON.Valid && changesJSON.String != "" {
			if err := json.Unmarshal([]byte(changesJSON.String), &ev.Changes); err != nil {
				return nil, fmt.Errorf("failed to parse change map: %w", err)
			}
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// CountChangeEvents returns the number of stored change events.
func (s *Store) CountChangeEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count change events: %w", err)
	}
	return n, nil
}

// timeLayout is the canonical timestamp format stored in SQLite.
// Storing UTC in a lexicographically sortable layout keeps range queries
// on occurred_at correct without driver-specific time handling.
const timeLayout = "2006-01-02 15:04:05.999999999"

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// Returns zero time if no format matches.
func parseTimestamp(v string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// wrapConflict converts a uniqueness violation into ErrConflict and wraps
// everything else with msg.
func wrapConflict(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// boolToInt stores booleans as SQLite integers.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
