package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"golang.org/x/sync/errgroup"

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// DefaultBatchSize is the number of change events per report file.
const DefaultBatchSize = 500

// EventSource supplies one keyset page of change events at a time.
// Implemented by database.Store.
type EventSource interface {
	ChangeEventsBetween(ctx context.Context, from, to time.Time, afterID int64, limit int) ([]model.ChangeEvent, error)
}

// Generator writes daily change reports.
type Generator struct {
	source    EventSource
	dir       string
	batchSize int
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithBatchSize sets the number of events per report file.
func WithBatchSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a Generator writing report files into dir.
func NewGenerator(source EventSource, dir string, opts ...Option) *Generator {
	g := &Generator{
		source:    source,
		dir:       dir,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// reportEvent is the exported wire shape of one change event.
//
// Design decision: IDs are rendered as strings rather than JSON numbers so
// downstream consumers in languages with 53-bit number precision never
// corrupt them; timestamps are ISO-8601 for the same interoperability
// reason.
type reportEvent struct {
	ID          string                       `json:"id"`
	Kind        string                       `json:"kind"`
	RecordID    string                       `json:"record_id"`
	SourceURL   string                       `json:"source_url"`
	OccurredAt  string                       `json:"occurred_at"`
	Description string                       `json:"description,omitempty"`
	Changes     map[string]model.FieldChange `json:"changes,omitempty"`
}

// toReportEvent converts a stored event to its wire shape.
func toReportEvent(ev model.ChangeEvent) reportEvent {
	return reportEvent{
		ID:          strconv.FormatInt(ev.ID, 10),
		Kind:        string(ev.Kind),
		RecordID:    strconv.FormatInt(ev.RecordID, 10),
		SourceURL:   ev.SourceURL,
		OccurredAt:  ev.OccurredAt.UTC().Format(time.RFC3339),
		Description: ev.Description,
		Changes:     ev.Changes,
	}
}

// fileName returns the report file name for one batch of a day's events.
// Batch numbering starts at 1.
func fileName(day time.Time, batch int) string {
	return fmt.Sprintf("Change-Log-%s-%d.json", day.Format("2006.01.02"), batch)
}

// Generate exports every change event that occurred on day (UTC midnight to
// midnight) into numbered JSON files and returns their paths in batch order.
//
// Batches are read from the source sequentially with keyset pagination, so
// a day with millions of events never loads fully into memory; the file
// writes themselves run concurrently since the batches are independent.
// A day with no events produces no files.
func (g *Generator) Generate(ctx context.Context, day time.Time) ([]string, error) {
	if err := os.MkdirAll(g.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	eg, egCtx := errgroup.WithContext(ctx)

	var paths []string
	var afterID int64
	batch := 0

	for {
		events, err := g.source.ChangeEventsBetween(ctx, from, to, afterID, g.batchSize)
		if err != nil {
			// Let in-flight writes settle before surfacing the read error.
			_ = eg.Wait()
			return nil, fmt.Errorf("failed to read change events: %w", err)
		}
		if len(events) == 0 {
			break
		}

		afterID = events[len(events)-1].ID
		batch++

		path := filepath.Join(g.dir, fileName(from, batch))
		paths = append(paths, path)

		eg.Go(func() error {
			return writeBatch(egCtx, path, events)
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.logger.Info("change report generated",
		"day", from.Format("2006-01-02"),
		"files", len(paths),
	)

	return paths, nil
}

// writeBatch serializes one batch as a JSON array in a single file open, so
// readers either see the complete array or no file at all on this path.
func writeBatch(ctx context.Context, path string, events []model.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make([]reportEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, toReportEvent(ev))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report batch: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// WriteSummary writes a Markdown summary of one day's change activity.
//
// The summary counts events by kind over the same window Generate exports,
// reading in the same keyset batches.
func (g *Generator) WriteSummary(ctx context.Context, day time.Time, w io.Writer) error {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	var newCount, updatedCount, otherCount int
	var afterID int64

	for {
		events, err := g.source.ChangeEventsBetween(ctx, from, to, afterID, g.batchSize)
		if err != nil {
			return fmt.Errorf("failed to read change events: %w", err)
		}
		if len(events) == 0 {
			break
		}
		afterID = events[len(events)-1].ID

		for _, ev := range events {
			switch ev.Kind {
			case model.ChangeNew:
				newCount++
			case model.ChangeUpdated:
				updatedCount++
			default:
				otherCount++
			}
		}
	}

	total := newCount + updatedCount + otherCount

	md := markdown.NewMarkdown(w)
	md.H1("Change Report " + from.Format("2006-01-02"))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"New", strconv.Itoa(newCount)},
			{"Updated", strconv.Itoa(updatedCount)},
			{"**Total**", "**" + strconv.Itoa(total) + "**"},
		},
	})

	if err := md.Build(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
