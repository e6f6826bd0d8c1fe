package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clockwise/leave-engine/cleanup"
	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store/memory"
)

// =============================================================================
// DAILY CLEANUP TESTS
// =============================================================================

func retireCategory(t *testing.T, m *memory.Memory, id string) {
	t.Helper()
	ctx := context.Background()
	err := m.CreateCategory(ctx, leave.LeaveCategory{ID: id, Name: id, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := m.SoftDeleteCategory(ctx, id, time.Now()); err != nil {
		t.Fatalf("SoftDeleteCategory: %v", err)
	}
}

func TestDailyCleanup_RunsBothStages(t *testing.T) {
	// GIVEN: A retired category (erasable) and a grant against a missing
	//        category (orphan)
	// WHEN: Running the daily job with the grant stage enabled
	// THEN: Both are gone afterwards

	m := memory.New()
	ctx := context.Background()
	retireCategory(t, m, "retired")
	err := m.CreateQuotaGrant(ctx, leave.QuotaGrant{
		ID: "g-1", PositionID: "pos-1", CategoryID: "ghost", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateQuotaGrant: %v", err)
	}

	run := dailyCleanup(cleanup.NewExecutor(m), true)
	if err := run(ctx); err != nil {
		t.Fatalf("dailyCleanup: %v", err)
	}

	if _, err := m.GetCategory(ctx, "retired"); !errors.Is(err, leave.ErrCategoryNotFound) {
		t.Errorf("retired category should be erased, got %v", err)
	}
	grants, _ := m.ListQuotaGrants(ctx)
	if len(grants) != 0 {
		t.Errorf("orphaned grant should be swept, %d left", len(grants))
	}
}

func TestDailyCleanup_GrantStageDisabled(t *testing.T) {
	// With the grant stage off, orphaned grants survive the daily job.
	m := memory.New()
	ctx := context.Background()
	err := m.CreateQuotaGrant(ctx, leave.QuotaGrant{
		ID: "g-1", PositionID: "pos-1", CategoryID: "ghost", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateQuotaGrant: %v", err)
	}

	run := dailyCleanup(cleanup.NewExecutor(m), false)
	if err := run(ctx); err != nil {
		t.Fatalf("dailyCleanup: %v", err)
	}

	grants, _ := m.ListQuotaGrants(ctx)
	if len(grants) != 1 {
		t.Errorf("grant stage disabled, orphan must survive; %d grants left", len(grants))
	}
}

// =============================================================================
// YEARLY RESET TRIGGER TESTS
// =============================================================================

func TestYearlyReset_DelegatesZeroStrategy(t *testing.T) {
	// GIVEN: A reset endpoint capturing its request
	// WHEN: The yearly trigger fires
	// THEN: One POST with {"force":false,"strategy":"zero"} arrives

	var gotMethod, gotContentType string
	var gotBody ResetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := yearlyReset(srv.URL, time.Second)
	if err := run(context.Background()); err != nil {
		t.Fatalf("yearlyReset: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}
	if gotBody.Force || gotBody.Strategy != "zero" {
		t.Errorf("body = %+v, want force=false strategy=zero", gotBody)
	}
}

func TestYearlyReset_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	run := yearlyReset(srv.URL, time.Second)
	if err := run(context.Background()); err == nil {
		t.Fatal("expected non-2xx response to surface as an error")
	}
}

func TestYearlyReset_UnreachableEndpointIsError(t *testing.T) {
	// The trigger only delegates; a dead endpoint is a logged failure for
	// the scheduler, not a panic.
	run := yearlyReset("http://127.0.0.1:1/reset", 500*time.Millisecond)
	if err := run(context.Background()); err == nil {
		t.Fatal("expected connection failure to surface as an error")
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestConfigFromEnv_Toggles(t *testing.T) {
	t.Setenv("LEAVE_YEARLY_RESET_ENABLED", "false")
	t.Setenv("LEAVE_GRANT_CLEANUP_ENABLED", "0")
	t.Setenv("LEAVE_TIMEZONE", "UTC")
	t.Setenv("LEAVE_RESET_URL", "http://example.test/reset")

	cfg := ConfigFromEnv()

	if cfg.YearlyResetEnabled {
		t.Error("yearly reset should be disabled")
	}
	if cfg.GrantCleanupEnabled {
		t.Error("grant cleanup should be disabled")
	}
	if !cfg.DailyCleanupEnabled {
		t.Error("daily cleanup should default to enabled")
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.ResetURL != "http://example.test/reset" {
		t.Errorf("reset URL = %q", cfg.ResetURL)
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"

	if _, err := New(cfg, cleanup.NewExecutor(memory.New())); err == nil {
		t.Fatal("expected invalid timezone to fail construction")
	}
}

// =============================================================================
// ORCHESTRATOR TESTS
// =============================================================================

func TestOrchestrator_FiresAndStops(t *testing.T) {
	fired := make(chan struct{}, 1)

	o := NewOrchestrator(time.UTC, &Task{
		Name:    "tick",
		Enabled: true,
		Next:    func(now time.Time) time.Time { return now.Add(10 * time.Millisecond) },
		Run: func(ctx context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	})

	o.Start()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
	o.Stop()
}

func TestOrchestrator_LongRunDoesNotBlockNextFiring(t *testing.T) {
	// GIVEN: A run that outlives its own recurrence interval
	// WHEN: The scheduler keeps firing
	// THEN: The next recurrence starts while the previous run is still in
	//       flight; no firing is skipped behind a slow run

	var started atomic.Int32
	release := make(chan struct{})

	o := NewOrchestrator(time.UTC, &Task{
		Name:    "slow",
		Enabled: true,
		Next:    func(now time.Time) time.Time { return now.Add(20 * time.Millisecond) },
		Run: func(ctx context.Context) error {
			started.Add(1)
			<-release
			return nil
		},
	})

	o.Start()
	deadline := time.After(2 * time.Second)
	for started.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("second firing never started while the first was in flight")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)
	o.Stop()
}

func TestOrchestrator_DisabledTaskNeverFires(t *testing.T) {
	fired := make(chan struct{}, 1)

	o := NewOrchestrator(time.UTC, &Task{
		Name:    "off",
		Enabled: false,
		Next:    func(now time.Time) time.Time { return now.Add(time.Millisecond) },
		Run: func(ctx context.Context) error {
			fired <- struct{}{}
			return nil
		},
	})

	o.Start()
	select {
	case <-fired:
		t.Fatal("disabled task fired")
	case <-time.After(100 * time.Millisecond):
	}
	o.Stop()

	if !o.NextRun("off").IsZero() {
		t.Error("NextRun for a disabled task should be zero")
	}
}

func TestOrchestrator_StopIsIdempotent(t *testing.T) {
	o := NewOrchestrator(nil)
	o.Start()
	o.Stop()
	o.Stop() // second Stop must not panic or block
}
