/*
Package maintenance schedules the unattended jobs of the leave engine.

PURPOSE:
  Two recurring jobs keep the ledger healthy with no user present:
    - daily cleanup: category erasure sweep, then orphaned-grant sweep
    - yearly reset:  delegates an annual quota-reset request over HTTP
  Both run at a fixed local time in one configured zone so "midnight" and
  "Jan 1" mean the same thing regardless of host clock configuration.

DESIGN:
  - Orchestrator is an explicit object constructed once at process start,
    holding its timers, with a Stop() path for clean shutdown in tests.
  - Task carries an explicit OnError hook. A swallowed failure is a
    deliberate, reviewable choice at the wiring site, not an accident.
  - A failed run is logged and NOT retried within the recurrence; the next
    scheduled firing is the retry. No run is skipped because a previous run
    is still in flight - overlap is tolerated, not locked out.

SEE ALSO:
  - jobs.go: The concrete daily-cleanup and yearly-reset tasks
  - orchestrator.go: Timer loop, Start/Stop
*/
package maintenance

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// TASK - One recurring job with an explicit error hook
// =============================================================================

// Task is a named recurring job. Next computes the following fire time
// strictly after now; Run does the work; OnError observes a failed run.
type Task struct {
	Name    string
	Enabled bool
	Next    func(now time.Time) time.Time
	Run     func(ctx context.Context) error
	OnError func(name string, err error)
}

// fire executes one recurrence. Panics are converted to errors so a bad
// run can never kill the scheduler goroutine; the next firing still happens.
func (t *Task) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.reportError(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := t.Run(ctx); err != nil {
		t.reportError(err)
	}
}

func (t *Task) reportError(err error) {
	if t.OnError != nil {
		t.OnError(t.Name, err)
	}
}

// =============================================================================
// FIRE-TIME HELPERS - Fixed local times in a named zone
// =============================================================================

// NextDailyAt returns the next occurrence of hh:mm in loc strictly after now.
func NextDailyAt(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextYearlyAt returns the next occurrence of month/day hh:mm in loc
// strictly after now.
func NextYearlyAt(now time.Time, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), month, day, hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year()+1, month, day, hour, minute, 0, 0, loc)
	}
	return next
}
