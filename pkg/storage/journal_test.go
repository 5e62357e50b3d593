package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestCreateTablesIsIdempotent(t *testing.T) {
	j := openTestJournal(t)
	if err := CreateTables(j.db); err != nil {
		t.Errorf("Expected second CreateTables to succeed, got %v", err)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	if err := j.TouchSession(ctx, "s1", "127.0.0.1"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	programs := []string{"FD 10", "RT 90", "BOGUS"}
	for i, program := range programs {
		r := &Run{
			SessionID: "s1",
			Program:   program,
			OK:        program != "BOGUS",
			Steps:     i + 1,
			Duration:  time.Duration(i+1) * time.Millisecond,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if !r.OK {
			r.Error = "SYNTAX ERROR IN LINE 1: unknown command BOGUS"
			r.ErrorLine = 1
		}
		if err := j.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
		if r.ID == "" {
			t.Errorf("Expected an ID to be assigned")
		}
	}

	runs, err := j.RecentRuns(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].Program != "BOGUS" || runs[1].Program != "RT 90" {
		t.Errorf("Expected newest first, got %q then %q", runs[0].Program, runs[1].Program)
	}
	if runs[0].OK || runs[0].ErrorLine != 1 || runs[0].Error == "" {
		t.Errorf("Expected failed run with error details, got %+v", runs[0])
	}
	if runs[1].Duration != 2*time.Millisecond || runs[1].Steps != 2 {
		t.Errorf("Expected 2 steps in 2ms, got %d in %v", runs[1].Steps, runs[1].Duration)
	}

	count, err := j.RunCount(ctx, "s1")
	if err != nil {
		t.Fatalf("RunCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected run count 3, got %d", count)
	}
}

func TestRecordRunUnknownSession(t *testing.T) {
	j := openTestJournal(t)
	err := j.RecordRun(context.Background(), &Run{SessionID: "missing", Program: "FD 1", OK: true})
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestPurgeBefore(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	j.now = func() time.Time { return old }
	if err := j.TouchSession(ctx, "old", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordRun(ctx, &Run{SessionID: "old", Program: "FD 1", OK: true}); err != nil {
		t.Fatal(err)
	}

	j.now = func() time.Time { return recent }
	if err := j.TouchSession(ctx, "new", "10.0.0.2"); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordRun(ctx, &Run{SessionID: "new", Program: "FD 2", OK: true}); err != nil {
		t.Fatal(err)
	}

	n, err := j.PurgeBefore(ctx, old.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged run, got %d", n)
	}

	if runs, _ := j.RecentRuns(ctx, "old", 10); len(runs) != 0 {
		t.Errorf("Expected old runs to be gone, got %d", len(runs))
	}
	if _, err := j.RunCount(ctx, "old"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected idle session to be purged, got %v", err)
	}
	if runs, _ := j.RecentRuns(ctx, "new", 10); len(runs) != 1 {
		t.Errorf("Expected recent run to survive, got %d", len(runs))
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	ctx := context.Background()
	if err := j.TouchSession(ctx, "s", "ip"); err != nil {
		t.Errorf("Expected nil journal to ignore TouchSession, got %v", err)
	}
	if err := j.RecordRun(ctx, &Run{SessionID: "s"}); err != nil {
		t.Errorf("Expected nil journal to ignore RecordRun, got %v", err)
	}
	if runs, err := j.RecentRuns(ctx, "s", 5); err != nil || runs != nil {
		t.Errorf("Expected no runs, got %v, %v", runs, err)
	}
}
