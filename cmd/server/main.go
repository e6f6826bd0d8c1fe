/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server: store, HTTP surface,
  and the maintenance orchestrator.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Wire API handler (aggregator, detector, executor)
  4. Start maintenance orchestrator (daily cleanup, yearly reset)
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: leave.db)
           Use ":memory:" for an in-memory database
  -hours   Working hours per day (default: 8)

ENVIRONMENT (see maintenance/jobs.go):
  LEAVE_YEARLY_RESET_ENABLED, LEAVE_DAILY_CLEANUP_ENABLED,
  LEAVE_GRANT_CLEANUP_ENABLED, LEAVE_TIMEZONE, LEAVE_RESET_URL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the maintenance orchestrator (waits for in-flight runs)
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Close the database connection

SEE ALSO:
  - api/server.go: Router configuration
  - maintenance/jobs.go: Scheduled job wiring
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

	"github.com/clockwise/leave-engine/api"
	"github.com/clockwise/leave-engine/duration"
	"github.com/clockwise/leave-engine/maintenance"
	"github.com/clockwise/leave-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[Server] Loaded configuration from .env")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "leave.db", "SQLite database path (\":memory:\" for in-memory)")
	hours := flag.Int("hours", 8, "working hours per day")
	flag.Parse()

	if *hours <= 0 {
		log.Fatalf("[Server] -hours must be positive, got %d", *hours)
	}

	st, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("[Server] Failed to open store: %v", err)
	}
	defer st.Close()

	cfg := duration.DefaultConfig()
	cfg.WorkingHoursPerDay = *hours

	handler := api.NewHandler(st, cfg)
	router := api.NewRouter(handler)

	maintCfg := maintenance.ConfigFromEnv()
	if os.Getenv("LEAVE_RESET_URL") == "" {
		maintCfg.ResetURL = fmt.Sprintf("http://localhost:%d/api/admin/quota/reset", *port)
	}
	orchestrator, err := maintenance.New(maintCfg, handler.Executor)
	if err != nil {
		log.Fatalf("[Server] Failed to build orchestrator: %v", err)
	}
	orchestrator.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	go func() {
		log.Printf("[Server] Listening on :%d (db=%s, %dh work days)", *port, *dbPath, *hours)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] ListenAndServe: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")
	orchestrator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[Server] Forced shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}
