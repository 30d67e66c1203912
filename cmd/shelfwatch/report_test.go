package main

import (
	"testing"
	"time"
)

// TestNewReportCmd tests the report command definition.
func TestNewReportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewReportCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "report" {
			t.Errorf("expected use 'report', got %q", cmd.Use)
		}
	})

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"date", "db-dir", "report-dir", "batch-size", "summary"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %q flag", name)
			}
		}
	})
}

// TestReportDay tests --date resolution.
func TestReportDay(t *testing.T) {
	t.Parallel()

	t.Run("parses an explicit date as UTC midnight", func(t *testing.T) {
		t.Parallel()

		cmd := NewReportCmd()
		if err := cmd.ParseFlags([]string{"--date", "2026-08-30"}); err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		day, err := reportDay(cmd)
		if err != nil {
			t.Fatalf("reportDay failed: %v", err)
		}

		want := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
		if !day.Equal(want) {
			t.Errorf("day = %v, want %v", day, want)
		}
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		t.Parallel()

		cmd := NewReportCmd()
		if err := cmd.ParseFlags([]string{"--date", "30/08/2026"}); err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		if _, err := reportDay(cmd); err == nil {
			t.Error("expected error for malformed date")
		}
	})

	t.Run("defaults to today at UTC midnight", func(t *testing.T) {
		t.Parallel()

		cmd := NewReportCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		day, err := reportDay(cmd)
		if err != nil {
			t.Fatalf("reportDay failed: %v", err)
		}

		if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 {
			t.Errorf("day = %v, want midnight", day)
		}
		if day.Location() != time.UTC {
			t.Errorf("location = %v, want UTC", day.Location())
		}
	})
}
