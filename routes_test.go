package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/examples"
	"github.com/antibyte/retroturtle/pkg/resources"
	"github.com/antibyte/retroturtle/pkg/storage"
	"github.com/antibyte/retroturtle/pkg/terminal"
)

func newTestMux(t *testing.T, staticDir string) (*http.ServeMux, *storage.Journal) {
	t.Helper()
	journal, err := storage.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	catalog, err := examples.Default()
	if err != nil {
		t.Fatalf("Failed to load examples: %v", err)
	}
	handler := terminal.NewTerminalHandler(journal, resources.NewSessionResourceManager(), terminal.WithCatalog(catalog))
	return newMux(handler, staticDir), journal
}

func TestExamplesRoute(t *testing.T) {
	mux, _ := newTestMux(t, t.TempDir())

	tests := []struct {
		url    string
		status int
		count  int
	}{
		{url: "/api/examples", status: http.StatusOK, count: -1},
		{url: "/api/examples?name=square", status: http.StatusOK, count: 1},
		{url: "/api/examples?name=missing", status: http.StatusNotFound, count: 0},
	}
	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", test.url, nil))
			if w.Code != test.status {
				t.Fatalf("Expected status %d, got %d", test.status, w.Code)
			}
			var body terminal.ExamplesResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if test.count >= 0 && len(body.Examples) != test.count {
				t.Errorf("Expected %d examples, got %d", test.count, len(body.Examples))
			}
			if test.count < 0 && len(body.Examples) == 0 {
				t.Errorf("Expected the full catalog")
			}
		})
	}
}

func TestHistoryRoute(t *testing.T) {
	mux, journal := newTestMux(t, t.TempDir())
	ctx := context.Background()
	sessionID := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

	if err := journal.TouchSession(ctx, sessionID, "127.0.0.1"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}
	if err := journal.RecordRun(ctx, &storage.Run{SessionID: sessionID, Program: "FD 10", OK: true, Steps: 1}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/history", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/history?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body terminal.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(body.Runs) != 1 || body.Runs[0].Program != "FD 10" {
		t.Errorf("Expected the journaled run, got %+v", body.Runs)
	}

	req = httptest.NewRequest("GET", "/api/history?limit=zero", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad limit, got %d", w.Code)
	}
}

func TestAdminRoutesRequireCredentials(t *testing.T) {
	mux, _ := newTestMux(t, t.TempDir())
	for _, path := range []string{"/api/admin/purge", "/api/admin/stats"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, nil)
			req.SetBasicAuth("admin", "guess")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", w.Code)
			}
		})
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>turtle</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	mux, _ := newTestMux(t, dir)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "turtle") {
		t.Errorf("Expected index.html, got %d %q", w.Code, w.Body.String())
	}

	missing, _ := newTestMux(t, filepath.Join(dir, "nope"))
	w = httptest.NewRecorder()
	missing.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a static directory, got %d", w.Code)
	}
}

func TestCleanupInterval(t *testing.T) {
	tests := []struct {
		configured time.Duration
		expected   time.Duration
	}{
		{configured: time.Minute, expected: time.Minute},
		{configured: 0, expected: defaultCleanupInterval},
		{configured: -time.Second, expected: defaultCleanupInterval},
	}
	for _, test := range tests {
		t.Run(test.configured.String(), func(t *testing.T) {
			got := cleanupInterval(test.configured)
			if got != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, got)
			}
			// must be accepted by time.NewTicker
			time.NewTicker(got).Stop()
		})
	}
}

// TestNoHardcodedSecrets scans the Go sources for credentials.
func TestNoHardcodedSecrets(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)password\s*[:=]+\s*"[^"]{8,}"`),
		regexp.MustCompile(`(?i)api_?key\s*[:=]+\s*"[^"]{10,}"`),
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	}

	var violations []string
	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), "_") || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, p := range patterns {
			if loc := p.FindIndex(data); loc != nil {
				violations = append(violations, path+": "+string(data[loc[0]:loc[1]]))
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	for _, v := range violations {
		t.Errorf("Possible hardcoded secret in %s", v)
	}
}
