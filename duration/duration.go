/*
Package duration provides pure conversions between clock-time pairs,
fractional-hour decimals, and day/hour counts.

PURPOSE:
  Leave requests arrive as "HH:MM"-"HH:MM" pairs or as whole-day spans; the
  ledger keeps day/hour splits. This package is the single place where those
  representations convert, under one work-day length constant, so quota,
  usage, and remaining figures always share the same "day" unit.

DESIGN PRINCIPLES:
  1. Purity: no clocks, no stores, no side effects - every function is a
     deterministic mapping, which keeps the conversion table testable.
  2. Soft failure on parse: a malformed "HH:MM" yields 0, never an error.
     Scheduled jobs must not die on a bad string that validation upstream
     should have caught.
  3. No clamping of negative spans: Hours() returns a negative value when
     end < start. Ordering validation is the caller's job; clamping here
     would hide the caller's bug.

USAGE:
  cfg := duration.DefaultConfig()
  h := cfg.Hours("09:00", "12:30")        // 3.5
  split := cfg.DayHourSplit(3.5)          // {Days: 3, Hours: 4} with 8h days

SEE ALSO:
  - balance/: blends day/hour usage into decimal day totals
*/
package duration

import (
	"math"
	"time"
)

// =============================================================================
// CONFIG - Work-day length and business-hour window
// =============================================================================

// Config carries the two conversion constants. Changing WorkingHoursPerDay
// changes rounding outcomes in DayHourSplit; it must stay consistent with
// the constant the balance aggregator uses.
type Config struct {
	WorkingHoursPerDay int
	BusinessStartHour  int // inclusive
	BusinessEndHour    int // inclusive
}

func DefaultConfig() Config {
	return Config{
		WorkingHoursPerDay: 8,
		BusinessStartHour:  8,
		BusinessEndHour:    17,
	}
}

// =============================================================================
// CLOCK-TIME CONVERSIONS
// =============================================================================

// ToMinutes converts an hour/minute pair to minutes since midnight.
func ToMinutes(hour, minute int) int {
	return hour*60 + minute
}

// parseClock parses "HH:MM" with HH in [00,23] and MM in [00,59].
// Returns (minutes since midnight, ok).
func parseClock(text string) (int, bool) {
	if len(text) != 5 || text[2] != ':' {
		return 0, false
	}
	hh, ok1 := twoDigits(text[0], text[1])
	mm, ok2 := twoDigits(text[3], text[4])
	if !ok1 || !ok2 || hh > 23 || mm > 59 {
		return 0, false
	}
	return ToMinutes(hh, mm), true
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// DecimalHours converts "HH:MM" to fractional hours since midnight.
// Fails soft: malformed input yields 0.
func DecimalHours(text string) float64 {
	mins, ok := parseClock(text)
	if !ok {
		return 0
	}
	return float64(mins) / 60
}

// Hours returns the span between two clock times in fractional hours.
// A negative result means end < start; it is returned as-is, not clamped.
// Callers must validate ordering upstream.
func Hours(startText, endText string) float64 {
	start, ok1 := parseClock(startText)
	end, ok2 := parseClock(endText)
	if !ok1 || !ok2 {
		return 0
	}
	return float64(end-start) / 60
}

// WithinBusinessHours reports whether a clock time falls inside the
// configured business window, bounds inclusive.
func (c Config) WithinBusinessHours(text string) bool {
	mins, ok := parseClock(text)
	if !ok {
		return false
	}
	return mins >= ToMinutes(c.BusinessStartHour, 0) && mins <= ToMinutes(c.BusinessEndHour, 0)
}

// =============================================================================
// CALENDAR-DAY COUNTING
// =============================================================================

// DaysBetween returns the inclusive day count between two instants using
// calendar-local midnight boundaries, so a span inside one calendar day
// counts as 1 regardless of the wall-clock hours. DST makes some local
// days 23 or 25 hours long; rounding the elapsed hours recovers the
// calendar day count either way.
func DaysBetween(start, end time.Time) int {
	s := midnight(start)
	e := midnight(end)
	return int(math.Round(e.Sub(s).Hours()/24)) + 1
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// =============================================================================
// DAY/HOUR SPLIT
// =============================================================================

// Split is a day count plus a remainder of working hours.
type Split struct {
	Days  int
	Hours int
}

// DayHourSplit decomposes a fractional day total into whole days and a
// rounded remainder of working hours: days = floor(total), hours =
// round(frac * WorkingHoursPerDay).
func (c Config) DayHourSplit(totalDays float64) Split {
	days := int(math.Floor(totalDays))
	frac := totalDays - float64(days)
	hours := int(math.Round(frac * float64(c.WorkingHoursPerDay)))
	return Split{Days: days, Hours: hours}
}
