package terminal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/examples"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/storage"
)

// HistoryResponse lists recent runs of the caller's session.
type HistoryResponse struct {
	Success   bool          `json:"success"`
	SessionID string        `json:"sessionId,omitempty"`
	Runs      []storage.Run `json:"runs"`
	Message   string        `json:"message,omitempty"`
}

// ExamplesResponse lists the example catalog.
type ExamplesResponse struct {
	Success  bool               `json:"success"`
	Examples []examples.Example `json:"examples"`
	Message  string             `json:"message,omitempty"`
}

// PurgeResponse reports what the admin purge removed.
type PurgeResponse struct {
	Success         bool     `json:"success"`
	RunsDeleted     int64    `json:"runsDeleted"`
	SessionsRemoved []string `json:"sessionsRemoved"`
	Message         string   `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(logger.AreaGeneral, "Error encoding response: %v", err)
	}
}

// HandleHistory returns the journaled runs of the session in the request
// context. Wrap it with auth.RequireSessionToken.
func (h *TerminalHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, HistoryResponse{Message: "Method not allowed"})
		return
	}
	sessionID, ok := auth.GetSessionIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, HistoryResponse{Message: "No session"})
		return
	}

	maxLimit := configuration.GetInt("Server", "history_page_limit", 20)
	limit := maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, HistoryResponse{Message: "Invalid limit"})
			return
		}
		if n < maxLimit {
			limit = n
		}
	}

	runs, err := h.journal.RecentRuns(r.Context(), sessionID, limit)
	if err != nil {
		logger.Error(logger.AreaDatabase, "History query for session %s failed: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, HistoryResponse{Message: "History unavailable"})
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, SessionID: sessionID, Runs: runs})
}

// HandleExamples lists the catalog, or a single example with ?name=.
func (h *TerminalHandler) HandleExamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ExamplesResponse{Message: "Method not allowed"})
		return
	}
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, ExamplesResponse{Success: true, Examples: []examples.Example{}})
		return
	}

	if name := r.URL.Query().Get("name"); name != "" {
		example, ok := h.catalog.Find(name)
		if !ok {
			writeJSON(w, http.StatusNotFound, ExamplesResponse{Message: "Unknown example"})
			return
		}
		writeJSON(w, http.StatusOK, ExamplesResponse{Success: true, Examples: []examples.Example{example}})
		return
	}
	writeJSON(w, http.StatusOK, ExamplesResponse{Success: true, Examples: h.catalog.Examples})
}

// HandlePurge deletes journal entries older than ?older_than= (default
// [Session] journal_retention) and drops idle sessions. Wrap it with
// auth.RequireAdmin.
func (h *TerminalHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, PurgeResponse{Message: "Method not allowed"})
		return
	}

	retention := configuration.GetDuration("Session", "journal_retention", 7*24*time.Hour)
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, PurgeResponse{Message: "Invalid duration"})
			return
		}
		retention = d
	}

	deleted, err := h.journal.PurgeBefore(r.Context(), time.Now().Add(-retention))
	if err != nil {
		logger.Error(logger.AreaDatabase, "Purge failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, PurgeResponse{Message: "Purge failed"})
		return
	}
	removed := h.CleanupInactive(configuration.GetDuration("Session", "max_inactive_time", 30*time.Minute))
	if removed == nil {
		removed = []string{}
	}

	logger.SecurityInfo("Admin purge from %s: %d runs, %d sessions", auth.GetClientIP(r), deleted, len(removed))
	writeJSON(w, http.StatusOK, PurgeResponse{Success: true, RunsDeleted: deleted, SessionsRemoved: removed})
}

// HandleStats reports session statistics. Wrap it with auth.RequireAdmin.
func (h *TerminalHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": h.Stats()})
}
