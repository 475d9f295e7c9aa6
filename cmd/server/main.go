/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, backend tier selection, dependency injection, and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Select the backing-store tier from configuration (exactly once)
  3. Construct the matching backend and the gateway over it
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path; overrides ATTENDANCE_DB
           Use ":memory:" for an in-memory database

ENVIRONMENT (.env supported):
  ATTENDANCE_DB             SQLite path          -> tier 1 (direct)
  ATTENDANCE_API_URL        data API base URL    -> tiers 2/3
  ATTENDANCE_SERVICE_KEY    elevated credential  -> tier 2 (privileged)
  ATTENDANCE_SESSION_TOKEN  caller credential    -> tier 3 (caller-scoped)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - gateway/config.go: Tier selection rules
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/gateway"
	"github.com/warp/attendance-engine/store/restapi"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Println("[Main] Loaded configuration from .env")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path (overrides ATTENDANCE_DB)")
	flag.Parse()

	cfg := gateway.ConfigFromEnv()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	tier, err := cfg.SelectTier()
	if err != nil {
		log.Fatalf("Failed to select backing store: %v", err)
	}

	var backend gateway.Backend
	switch tier {
	case gateway.TierDirect:
		store, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()
		backend = store
	case gateway.TierPrivileged:
		backend = restapi.NewPrivileged(cfg.APIBaseURL, cfg.ServiceKey)
	case gateway.TierCallerScoped:
		backend = restapi.NewCallerScoped(cfg.APIBaseURL, cfg.SessionToken)
	}

	log.Printf("[Main] Backing store tier: %s (transactional: %v)", tier, tier.Transactional())
	if !tier.Transactional() {
		log.Printf("[Main] WARNING: tier %s applies deletions and upserts as separate calls; batches are not atomic", tier)
	}

	handler := api.NewHandler(gateway.New(backend, tier))
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Main] Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
