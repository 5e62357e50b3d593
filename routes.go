package main

import (
	"net/http"
	"os"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/terminal"
)

// newMux registers every route. The static file server is registered last
// on "/" so it only sees paths no other route claims.
func newMux(handler *terminal.TerminalHandler, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", handler.HandleWebSocket)

	mux.HandleFunc("/api/auth/session", auth.HandleCreateSession)
	mux.HandleFunc("/api/auth/validate", auth.HandleTokenValidation)
	mux.HandleFunc("/api/auth/logout", auth.HandleLogout)

	mux.HandleFunc("/api/examples", handler.HandleExamples)
	mux.HandleFunc("/api/history", auth.RequireSessionToken(handler.HandleHistory))

	mux.HandleFunc("/api/admin/purge", auth.RequireAdmin(handler.HandlePurge))
	mux.HandleFunc("/api/admin/stats", auth.RequireAdmin(handler.HandleStats))

	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else {
		logger.Warn(logger.AreaGeneral, "Static directory %s not found, serving API only", staticDir)
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	return mux
}
