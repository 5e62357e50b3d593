package resources

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager() (*SessionResourceManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	srm := NewSessionResourceManager()
	srm.now = clock.now
	srm.maxSessions = 3
	srm.maxSessionsPerIP = 2
	srm.maxRuns = 3
	srm.runWindow = time.Minute
	return srm, clock
}

func TestRegisterSessionLimits(t *testing.T) {
	srm, _ := newTestManager()

	if err := srm.RegisterSession("a", "10.0.0.1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := srm.RegisterSession("b", "10.0.0.1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := srm.RegisterSession("c", "10.0.0.1"); !errors.Is(err, ErrTooManySessionsForIP) {
		t.Errorf("Expected ErrTooManySessionsForIP, got %v", err)
	}
	if err := srm.RegisterSession("c", "10.0.0.2"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := srm.RegisterSession("d", "10.0.0.3"); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("Expected ErrTooManySessions, got %v", err)
	}

	// reattaching an existing session is always allowed
	if err := srm.RegisterSession("a", "10.0.0.1"); err != nil {
		t.Errorf("Expected reattach to succeed, got %v", err)
	}
	res, err := srm.GetSessionResource("a")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Connections != 2 {
		t.Errorf("Expected 2 connections, got %d", res.Connections)
	}
}

func TestAllowRunSlidingWindow(t *testing.T) {
	srm, clock := newTestManager()
	if err := srm.RegisterSession("s", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := srm.AllowRun("s"); err != nil {
			t.Fatalf("Run %d: unexpected error %v", i, err)
		}
		clock.advance(10 * time.Second)
	}
	if err := srm.AllowRun("s"); !errors.Is(err, ErrRunRateExceeded) {
		t.Errorf("Expected ErrRunRateExceeded, got %v", err)
	}

	// the first run leaves the window 60s after it started
	clock.advance(31 * time.Second)
	if err := srm.AllowRun("s"); err != nil {
		t.Errorf("Expected run to be allowed once the window moved, got %v", err)
	}

	res, _ := srm.GetSessionResource("s")
	if res.RunCount != 4 {
		t.Errorf("Expected 4 counted runs, got %d", res.RunCount)
	}
}

func TestAllowRunUnknownSession(t *testing.T) {
	srm, _ := newTestManager()
	if err := srm.AllowRun("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestInactiveSessions(t *testing.T) {
	srm, clock := newTestManager()
	srm.RegisterSession("idle", "10.0.0.1")
	srm.RegisterSession("connected", "10.0.0.2")
	srm.RegisterSession("busy", "10.0.0.3")

	srm.Detach("idle")
	srm.Detach("busy")
	clock.advance(20 * time.Minute)
	srm.Touch("busy")
	clock.advance(15 * time.Minute)

	removed := srm.CleanupInactiveSessions(30 * time.Minute)
	if len(removed) != 1 || removed[0] != "idle" {
		t.Fatalf("Expected only idle to be removed, got %v", removed)
	}
	if _, err := srm.GetSessionResource("idle"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected idle session to be gone, got %v", err)
	}
	if _, err := srm.GetSessionResource("connected"); err != nil {
		t.Errorf("Expected connected session to stay, got %v", err)
	}
	if _, err := srm.GetSessionResource("busy"); err != nil {
		t.Errorf("Expected recently active session to stay, got %v", err)
	}
}

func TestCleanupSkipsReconnectedSessions(t *testing.T) {
	srm, clock := newTestManager()
	srm.RegisterSession("returning", "10.0.0.1")
	srm.RegisterSession("gone", "10.0.0.2")
	srm.Detach("returning")
	srm.Detach("gone")
	clock.advance(time.Hour)

	candidates := srm.Inactive(30 * time.Minute)
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 idle candidates, got %v", candidates)
	}

	// reconnect between listing and removal
	if err := srm.RegisterSession("returning", "10.0.0.1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	removed := srm.removeIdle(candidates, 30*time.Minute)
	if len(removed) != 1 || removed[0] != "gone" {
		t.Fatalf("Expected only gone to be removed, got %v", removed)
	}
	if err := srm.AllowRun("returning"); err != nil {
		t.Errorf("Expected reconnected session to keep running, got %v", err)
	}
}

func TestUnregisterSession(t *testing.T) {
	srm, _ := newTestManager()
	srm.RegisterSession("s", "10.0.0.1")
	if err := srm.UnregisterSession("s"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := srm.UnregisterSession("s"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestRunContextHasDeadline(t *testing.T) {
	srm, _ := newTestManager()
	srm.maxRunTime = time.Second
	ctx, cancel := srm.RunContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Errorf("Expected a deadline")
	}

	srm.maxRunTime = 0
	ctx2, cancel2 := srm.RunContext(context.Background())
	defer cancel2()
	if _, ok := ctx2.Deadline(); ok {
		t.Errorf("Expected no deadline when max_run_time is 0")
	}
}

func TestGetSessionStats(t *testing.T) {
	srm, _ := newTestManager()
	srm.RegisterSession("a", "10.0.0.1")
	srm.RegisterSession("b", "10.0.0.1")
	srm.AllowRun("a")

	stats := srm.GetSessionStats()
	if stats["total_sessions"] != 2 || stats["unique_ips"] != 1 || stats["total_runs"] != int64(1) {
		t.Errorf("Unexpected stats: %v", stats)
	}
}
