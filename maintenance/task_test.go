package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"
)

// =============================================================================
// FIRE-TIME HELPER TESTS
// =============================================================================

func TestNextDailyAt_BeforeTodaysFiring(t *testing.T) {
	// GIVEN: 00:30 local, job fires at 01:00
	// WHEN: Computing the next firing
	// THEN: Today at 01:00

	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	now := time.Date(2026, time.March, 10, 0, 30, 0, 0, loc)
	next := NextDailyAt(now, 1, 0, loc)

	want := time.Date(2026, time.March, 10, 1, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextDailyAt = %v, want %v", next, want)
	}
}

func TestNextDailyAt_AfterTodaysFiring(t *testing.T) {
	// Past today's slot, the next firing is tomorrow.
	loc := time.UTC
	now := time.Date(2026, time.March, 10, 14, 0, 0, 0, loc)
	next := NextDailyAt(now, 1, 0, loc)

	want := time.Date(2026, time.March, 11, 1, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextDailyAt = %v, want %v", next, want)
	}
}

func TestNextDailyAt_ExactlyAtFiringTimeIsStrictlyAfter(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, time.March, 10, 1, 0, 0, 0, loc)
	next := NextDailyAt(now, 1, 0, loc)

	if !next.After(now) {
		t.Errorf("NextDailyAt must be strictly after now, got %v", next)
	}
	want := time.Date(2026, time.March, 11, 1, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextDailyAt = %v, want %v", next, want)
	}
}

func TestNextYearlyAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-year rolls to next January",
			now:  time.Date(2026, time.June, 15, 12, 0, 0, 0, loc),
			want: time.Date(2027, time.January, 1, 0, 5, 0, 0, loc),
		},
		{
			name: "just before the firing stays in this year",
			now:  time.Date(2026, time.January, 1, 0, 0, 0, 0, loc),
			want: time.Date(2026, time.January, 1, 0, 5, 0, 0, loc),
		},
		{
			name: "exactly at the firing rolls a full year",
			now:  time.Date(2026, time.January, 1, 0, 5, 0, 0, loc),
			want: time.Date(2027, time.January, 1, 0, 5, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextYearlyAt(tc.now, time.January, 1, 0, 5, loc)
			if !got.Equal(tc.want) {
				t.Errorf("NextYearlyAt = %v, want %v", got, tc.want)
			}
		})
	}
}

// =============================================================================
// TASK FIRING TESTS
// =============================================================================

func TestTask_FireReportsError(t *testing.T) {
	errFailure := errors.New("job failed")
	var reportedName string
	var reportedErr error

	task := &Task{
		Name: "failing-job",
		Run: func(ctx context.Context) error {
			return errFailure
		},
		OnError: func(name string, err error) {
			reportedName = name
			reportedErr = err
		},
	}

	task.fire(context.Background())

	if reportedName != "failing-job" {
		t.Errorf("reported name = %q, want failing-job", reportedName)
	}
	if !errors.Is(reportedErr, errFailure) {
		t.Errorf("reported err = %v, want %v", reportedErr, errFailure)
	}
}

func TestTask_FireRecoversPanic(t *testing.T) {
	// A panicking run must be converted to a reported error, never allowed
	// to kill the scheduler goroutine.
	var reportedErr error

	task := &Task{
		Name: "panicking-job",
		Run: func(ctx context.Context) error {
			panic("boom")
		},
		OnError: func(_ string, err error) {
			reportedErr = err
		},
	}

	task.fire(context.Background())

	if reportedErr == nil {
		t.Fatal("expected panic to be reported as an error")
	}
}

func TestTask_FireSwallowsWhenNoHook(t *testing.T) {
	// A nil OnError means failures are deliberately unobserved; fire must
	// not panic on the nil hook.
	task := &Task{
		Name: "silent-job",
		Run: func(ctx context.Context) error {
			return errors.New("ignored")
		},
	}
	task.fire(context.Background())
}
