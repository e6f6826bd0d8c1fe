/*
Package balance aggregates quota and usage into remaining leave figures.

PURPOSE:
  Answers "how much of category C has user U consumed, and how much remains"
  without mutating anything. Called synchronously on every dashboard render
  and on every approved-request write, so every method is a handful of
  indexed lookups and pure decimal arithmetic.

NUMERIC SEMANTICS:
  All three figures (quota, used, remaining) are decimal day counts blended
  with ONE conversion constant, workingHoursPerDay:

      totalDays = days + hours / workingHoursPerDay

  Rounding happens at the presentation boundary, never here. Remaining is
  clamped at zero: over-consumption shows as 0 remaining, not negative.

LOOKUP MODEL:
  Usage is ONE running-total row per (user, category, year) tuple, not a sum
  over many rows. An absent row is zero consumption, not an error. An absent
  quota grant is zero entitlement, not an error. An unresolvable
  user->position mapping IS an error - quota cannot be determined without it.

SEE ALSO:
  - duration/: the same workingHoursPerDay constant drives day/hour splits
  - store/: the read interfaces this package consumes
*/
package balance

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// Reader is the slice of the store the aggregator needs. Read-only.
type Reader interface {
	store.CategoryStore
	store.QuotaStore
	store.UsageStore
	store.DirectoryStore
}

// Aggregator computes balance figures. Stateless beyond its dependencies.
type Aggregator struct {
	Store              Reader
	WorkingHoursPerDay int
}

func NewAggregator(s Reader, workingHoursPerDay int) *Aggregator {
	return &Aggregator{Store: s, WorkingHoursPerDay: workingHoursPerDay}
}

func (a *Aggregator) hoursPerDay() decimal.Decimal {
	return decimal.NewFromInt(int64(a.WorkingHoursPerDay))
}

// =============================================================================
// USAGE
// =============================================================================

// UsageSummary is the consumption picture for one (user, category) tuple.
// Category display names travel with it so callers can render a zero-usage
// row without a second lookup.
type UsageSummary struct {
	UserID       string
	CategoryID   string
	CategoryName string
	Year         int
	Days         int
	Hours        decimal.Decimal
	TotalDays    decimal.Decimal
}

// UsageFor returns the running-total consumption for the tuple. An absent
// row yields a zero-valued summary.
func (a *Aggregator) UsageFor(ctx context.Context, userID, categoryID string, year int) (UsageSummary, error) {
	summary := UsageSummary{
		UserID:     userID,
		CategoryID: categoryID,
		Year:       year,
		Hours:      decimal.Zero,
		TotalDays:  decimal.Zero,
	}

	if cat, err := a.Store.GetCategory(ctx, categoryID); err == nil {
		summary.CategoryName = cat.Name
	} else if !errors.Is(err, leave.ErrCategoryNotFound) {
		return summary, err
	}

	rec, err := a.Store.UsageRecordFor(ctx, userID, categoryID, year)
	if errors.Is(err, leave.ErrUsageNotFound) {
		return summary, nil
	}
	if err != nil {
		return summary, err
	}

	summary.Days = rec.Days
	summary.Hours = rec.Hours
	summary.TotalDays = totalDays(rec, a.hoursPerDay())
	return summary, nil
}

func totalDays(rec *leave.UsageRecord, hoursPerDay decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(rec.Days)).Add(rec.Hours.Div(hoursPerDay))
}

// =============================================================================
// QUOTA
// =============================================================================

// QuotaFor resolves the user's position and returns the quota granted for
// the category. No grant means zero entitlement. No resolvable position is
// a hard failure (leave.ErrPositionNotResolved).
func (a *Aggregator) QuotaFor(ctx context.Context, userID, categoryID string) (decimal.Decimal, error) {
	user, err := a.Store.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user.PositionID == "" {
		return decimal.Zero, leave.ErrPositionNotResolved
	}

	grant, err := a.Store.QuotaGrantFor(ctx, user.PositionID, categoryID)
	if errors.Is(err, leave.ErrQuotaGrantNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return grant.Quota, nil
}

// =============================================================================
// PER-USER SUMMARY
// =============================================================================

// CategorySummary is one row of the per-user balance report.
type CategorySummary struct {
	CategoryID   string
	CategoryName string
	Quota        decimal.Decimal
	Used         decimal.Decimal
	Remaining    decimal.Decimal
}

// SummaryForUser joins quota and usage across every category. No category
// is ever dropped: zero-quota categories appear with Remaining 0. Order is
// the store's stable category enumeration order.
func (a *Aggregator) SummaryForUser(ctx context.Context, userID string, year int) ([]CategorySummary, error) {
	user, err := a.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PositionID == "" {
		return nil, leave.ErrPositionNotResolved
	}

	categories, err := a.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	hoursPerDay := a.hoursPerDay()
	summaries := make([]CategorySummary, 0, len(categories))

	for _, cat := range categories {
		row := CategorySummary{
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Quota:        decimal.Zero,
			Used:         decimal.Zero,
			Remaining:    decimal.Zero,
		}

		grant, err := a.Store.QuotaGrantFor(ctx, user.PositionID, cat.ID)
		if err != nil && !errors.Is(err, leave.ErrQuotaGrantNotFound) {
			return nil, err
		}
		if err == nil {
			row.Quota = grant.Quota
		}

		rec, err := a.Store.UsageRecordFor(ctx, userID, cat.ID, year)
		if err != nil && !errors.Is(err, leave.ErrUsageNotFound) {
			return nil, err
		}
		if err == nil {
			row.Used = totalDays(rec, hoursPerDay)
		}

		// Over-consumption never shows as negative remaining.
		remaining := row.Quota.Sub(row.Used)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		row.Remaining = remaining

		summaries = append(summaries, row)
	}

	return summaries, nil
}
