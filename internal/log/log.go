package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// NewLogger creates a text logger writing to w.
// Verbose enables debug output; otherwise only warnings and errors are
// emitted, keeping interactive runs quiet.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level(verbose),
	}))
}

// NewJSONLogger creates a JSON logger writing to w.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level(verbose),
	}))
}

// level maps the verbose flag to a slog level.
func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// DatedFileName returns the log file name for one day, e.g.
// "crawl-2026.08.31.log".
func DatedFileName(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s.log", prefix, day.Format("2006.01.02"))
}

// OpenDatedFile opens (appending) the dated log file for day under dir,
// creating the directory as needed. Two runs on the same day share one
// file.
func OpenDatedFile(dir, prefix string, day time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, DatedFileName(prefix, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // Path is operator-configured
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
