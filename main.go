package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/examples"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/resources"
	"github.com/antibyte/retroturtle/pkg/storage"
	"github.com/antibyte/retroturtle/pkg/terminal"
	tlsmanager "github.com/antibyte/retroturtle/pkg/tls"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "path of the settings file")
	hashPassword := flag.String("hash-admin-password", "", "print the bcrypt hash for [Server] admin_password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashAdminPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Error hashing password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Configuration comes first, everything else reads from it
	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", *configPath)

	catalog, err := examples.Load(configuration.GetString("Examples", "catalog_file", ""))
	if err != nil {
		logger.Fatal(logger.AreaExamples, "Example catalog failed to load: %v", err)
	}
	logger.Info(logger.AreaExamples, "Loaded %d examples", len(catalog.Examples))

	journal, err := storage.Open(configuration.GetString("Storage", "database_file", "data/retroturtle.db"))
	if err != nil {
		logger.Fatal(logger.AreaDatabase, "Database initialization failed: %v", err)
	}
	defer journal.Close()

	sessions := resources.NewSessionResourceManager()
	handler := terminal.NewTerminalHandler(journal, sessions, terminal.WithCatalog(catalog))
	mux := newMux(handler, configuration.GetString("Server", "static_dir", "./static"))

	tlsManager, err := tlsmanager.NewManager(tlsmanager.LoadConfig())
	if err != nil {
		logger.Fatal(logger.AreaSecurity, "TLS manager initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, handler, journal)

	servers, errorChan := startServers(mux, tlsManager)

	select {
	case <-ctx.Done():
		logger.Info(logger.AreaGeneral, "Shutdown requested")
	case err := <-errorChan:
		logger.Error(logger.AreaGeneral, "Server stopped: %v", err)
	}

	handler.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		configuration.GetDuration("Server", "shutdown_timeout", 10*time.Second))
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logger.AreaGeneral, "Server %s did not shut down cleanly: %v", srv.Addr, err)
		}
	}
	logger.Info(logger.AreaGeneral, "Server stopped")
}

// startServers starts HTTP, or HTTPS plus the optional HTTP helper
// listener, and reports the first failure on the returned channel.
func startServers(mux http.Handler, tlsManager *tlsmanager.Manager) ([]*http.Server, <-chan error) {
	host := configuration.GetString("Server", "host", "")
	httpAddr := net.JoinHostPort(host, strconv.Itoa(configuration.GetInt("Server", "port", 8080)))
	errorChan := make(chan error, 2)

	serve := func(srv *http.Server, useTLS bool) {
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("%s: %w", srv.Addr, err)
		}
	}

	if !tlsManager.Enabled() {
		srv := &http.Server{Addr: httpAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info(logger.AreaGeneral, "Starting HTTP server on %s", httpAddr)
		go serve(srv, false)
		return []*http.Server{srv}, errorChan
	}

	httpsAddr := net.JoinHostPort(host, tlsManager.HTTPSPort())
	httpsServer := &http.Server{
		Addr:              httpsAddr,
		Handler:           mux,
		TLSConfig:         tlsManager.TLSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info(logger.AreaSecurity, "Starting HTTPS server on %s", httpsAddr)
	go serve(httpsServer, true)
	servers := []*http.Server{httpsServer}

	if tlsManager.NeedsHTTPServer() {
		httpServer := &http.Server{
			Addr:              httpAddr,
			Handler:           tlsManager.HTTPHandler(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info(logger.AreaSecurity, "Starting HTTP server for ACME challenges and redirects on %s", httpAddr)
		go serve(httpServer, false)
		servers = append(servers, httpServer)
	}
	return servers, errorChan
}

const defaultCleanupInterval = 5 * time.Minute

// cleanupInterval validates [Server] cleanup_interval. Values that
// time.NewTicker rejects fall back to the default.
func cleanupInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		logger.ConfigWarn("cleanup_interval %v is not positive, using %v", interval, defaultCleanupInterval)
		return defaultCleanupInterval
	}
	return interval
}

// runCleanup periodically drops idle sessions and expired journal rows.
func runCleanup(ctx context.Context, handler *terminal.TerminalHandler, journal *storage.Journal) {
	interval := cleanupInterval(configuration.GetDuration("Server", "cleanup_interval", defaultCleanupInterval))
	maxIdle := configuration.GetDuration("Session", "max_inactive_time", 30*time.Minute)
	retention := configuration.GetDuration("Session", "journal_retention", 7*24*time.Hour)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := handler.CleanupInactive(maxIdle); len(removed) > 0 {
				logger.SessionInfo("Removed %d idle sessions", len(removed))
			}
			if retention > 0 {
				if _, err := journal.PurgeBefore(ctx, time.Now().Add(-retention)); err != nil {
					logger.Error(logger.AreaDatabase, "Journal purge failed: %v", err)
				}
			}
		}
	}
}
