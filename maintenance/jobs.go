/*
jobs.go - Concrete maintenance tasks and their configuration

JOBS:
  daily-cleanup (01:00 local):
      1. category erasure sweep (AutoCleanupOrphanedCategories)
      2. orphaned-grant sweep, if independently enabled
      Each stage's failure is caught and logged without preventing the
      other stage or future recurrences.

  yearly-quota-reset (Jan 1, 00:05 local):
      Delegates a POST {"force":false,"strategy":"zero"} to the reset
      endpoint. Only delegates - never resets anything itself. The HTTP
      call carries a bounded timeout so one slow dependency cannot hang
      the scheduler; a non-2xx response or timeout is a logged failure,
      not a crash.

CONFIGURATION:
  Environment toggles, each independent, all defaulting to enabled:
    LEAVE_YEARLY_RESET_ENABLED   yearly reset trigger
    LEAVE_DAILY_CLEANUP_ENABLED  daily cleanup job
    LEAVE_GRANT_CLEANUP_ENABLED  grant sweep stage inside daily cleanup
    LEAVE_TIMEZONE               named zone (default Asia/Jakarta)
    LEAVE_RESET_URL              reset endpoint the yearly trigger calls
*/
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/clockwise/leave-engine/cleanup"
)

// =============================================================================
// CONFIG
// =============================================================================

const (
	DefaultTimezone     = "Asia/Jakarta"
	DefaultResetTimeout = 30 * time.Second

	dailyCleanupHour   = 1 // 01:00 local
	dailyCleanupMinute = 0
	yearlyResetHour    = 0 // Jan 1, 00:05 local
	yearlyResetMinute  = 5
)

type Config struct {
	YearlyResetEnabled  bool
	DailyCleanupEnabled bool
	GrantCleanupEnabled bool
	Timezone            string
	ResetURL            string
	ResetTimeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		YearlyResetEnabled:  true,
		DailyCleanupEnabled: true,
		GrantCleanupEnabled: true,
		Timezone:            DefaultTimezone,
		ResetURL:            "http://localhost:8080/api/admin/quota/reset",
		ResetTimeout:        DefaultResetTimeout,
	}
}

// ConfigFromEnv reads the environment toggles over the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.YearlyResetEnabled = envBool("LEAVE_YEARLY_RESET_ENABLED", cfg.YearlyResetEnabled)
	cfg.DailyCleanupEnabled = envBool("LEAVE_DAILY_CLEANUP_ENABLED", cfg.DailyCleanupEnabled)
	cfg.GrantCleanupEnabled = envBool("LEAVE_GRANT_CLEANUP_ENABLED", cfg.GrantCleanupEnabled)
	if tz := os.Getenv("LEAVE_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if url := os.Getenv("LEAVE_RESET_URL"); url != "" {
		cfg.ResetURL = url
	}
	return cfg
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// =============================================================================
// WIRING
// =============================================================================

// New builds the orchestrator with both jobs wired against the executor.
// Returns an error only when the configured zone does not exist.
func New(cfg Config, executor *cleanup.Executor) (*Orchestrator, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	logError := func(name string, err error) {
		log.Printf("[Maintenance] Task %q failed: %v (next recurrence is the retry)", name, err)
	}

	o := NewOrchestrator(loc)
	o.Add(&Task{
		Name:    "daily-cleanup",
		Enabled: cfg.DailyCleanupEnabled,
		Next: func(now time.Time) time.Time {
			return NextDailyAt(now, dailyCleanupHour, dailyCleanupMinute, loc)
		},
		Run:     dailyCleanup(executor, cfg.GrantCleanupEnabled),
		OnError: logError,
	})
	o.Add(&Task{
		Name:    "yearly-quota-reset",
		Enabled: cfg.YearlyResetEnabled,
		Next: func(now time.Time) time.Time {
			return NextYearlyAt(now, time.January, 1, yearlyResetHour, yearlyResetMinute, loc)
		},
		Run:     yearlyReset(cfg.ResetURL, cfg.ResetTimeout),
		OnError: logError,
	})
	return o, nil
}

// =============================================================================
// DAILY CLEANUP
// =============================================================================

func dailyCleanup(executor *cleanup.Executor, grantStageEnabled bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		// Categories first: erasing a category also removes its grants,
		// shrinking the orphan set the second stage has to walk.
		catResult, catErr := executor.AutoCleanupOrphanedCategories(ctx)
		if catErr != nil {
			log.Printf("[Maintenance] Category cleanup failed: %v", catErr)
		} else {
			log.Printf("[Maintenance] Category cleanup: %d checked, %d deleted, %d blocked, %d errors",
				catResult.TotalChecked, len(catResult.Deleted), len(catResult.CannotDelete), len(catResult.Errors))
		}

		if !grantStageEnabled {
			return catErr
		}

		// The grant stage runs even when the category stage failed.
		grantResult, grantErr := executor.AutoCleanupOrphanedQuotaGrants(ctx)
		if grantErr != nil {
			log.Printf("[Maintenance] Grant cleanup failed: %v", grantErr)
		} else {
			log.Printf("[Maintenance] Grant cleanup: %d deleted, %d failed, %s quota-days removed",
				len(grantResult.Deleted), len(grantResult.Failed), grantResult.TotalQuotaRemoved)
		}

		if catErr != nil {
			return catErr
		}
		return grantErr
	}
}

// =============================================================================
// YEARLY RESET TRIGGER
// =============================================================================

// ResetRequest is the payload delegated to the reset endpoint. The zero
// strategy touches only grants whose new-year baseline is zero, leaving
// manually-adjusted grants alone.
type ResetRequest struct {
	Force    bool   `json:"force"`
	Strategy string `json:"strategy"`
}

func yearlyReset(url string, timeout time.Duration) func(ctx context.Context) error {
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context) error {
		body, err := json.Marshal(ResetRequest{Force: false, Strategy: "zero"})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build reset request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("reset delegation failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("reset endpoint returned %s", resp.Status)
		}

		log.Printf("[Maintenance] Yearly quota reset delegated (%s)", resp.Status)
		return nil
	}
}
