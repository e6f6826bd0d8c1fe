/*
Package leave defines the shared domain model for the leave-balance engine.

PURPOSE:
  This package contains the entity shapes and classification rules that every
  other package (balance, cleanup, maintenance, store) builds on. It holds no
  behavior beyond pure classification - persistence lives in store/, arithmetic
  in balance/ and duration/.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveCategory: A named kind of leave (sick, vacation) with soft-delete lifecycle
  - QuotaGrant: The annual entitlement a position holds for a category
  - UsageRecord: Running total of days/hours a user consumed against a category
  - Obligation: A submitted leave request, referenced only as a blocking condition

SOFT-DELETE MODEL:
  Categories are soft-deletable: retirement sets DeletedAt and clears IsActive,
  preserving audit history. QuotaGrants and UsageRecords are NOT soft-deletable;
  they are removed physically. The distinction is carried in the type shapes
  (only LeaveCategory has DeletedAt) so hard- vs soft-delete dispatch is static,
  never a runtime column probe.

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - balance/: Quota and usage aggregation
  - cleanup/: Orphan detection and permanent erasure
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE CATEGORY - Soft-deletable leave type definition
// =============================================================================

type LeaveCategory struct {
	ID        string
	Name      string // localized primary name
	NameAlt   string // secondary/localized name, may be empty
	IsActive  bool
	DeletedAt *time.Time // nil while the category is live
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the category may still be drawn against.
// A category is valid iff it has never been soft-retired AND is active.
func (c LeaveCategory) Valid() bool {
	return c.DeletedAt == nil && c.IsActive
}

// SoftDeleted reports whether the category has been soft-retired.
func (c LeaveCategory) SoftDeleted() bool {
	return c.DeletedAt != nil
}

// CategoryState classifies a category reference for orphan detection.
type CategoryState string

const (
	CategoryValid       CategoryState = "valid"
	CategoryMissing     CategoryState = "missing"
	CategorySoftDeleted CategoryState = "soft_deleted"
	CategoryInactive    CategoryState = "inactive"
)

// Classify returns the lifecycle state of a category row.
// A nil pointer classifies as missing.
func Classify(c *LeaveCategory) CategoryState {
	switch {
	case c == nil:
		return CategoryMissing
	case c.SoftDeleted():
		return CategorySoftDeleted
	case !c.IsActive:
		return CategoryInactive
	default:
		return CategoryValid
	}
}

// CategoryInfo is a best-effort display snapshot attached to orphan reports.
// When the category row itself is gone, placeholder values are used so the
// report never drops a record for lack of a name.
type CategoryInfo struct {
	ID      string
	Name    string
	NameAlt string
	State   CategoryState
}

// UnknownCategoryInfo builds the placeholder snapshot for a missing row.
func UnknownCategoryInfo(id string) CategoryInfo {
	return CategoryInfo{
		ID:      id,
		Name:    "Unknown",
		NameAlt: "Not Found",
		State:   CategoryMissing,
	}
}

// SnapshotCategory builds the display snapshot for an existing row.
func SnapshotCategory(c *LeaveCategory) CategoryInfo {
	if c == nil {
		return CategoryInfo{}
	}
	return CategoryInfo{
		ID:      c.ID,
		Name:    c.Name,
		NameAlt: c.NameAlt,
		State:   Classify(c),
	}
}

// =============================================================================
// QUOTA GRANT - Annual entitlement for a (position, category) pair
// =============================================================================

type QuotaGrant struct {
	ID         string
	PositionID string
	CategoryID string
	Quota      decimal.Decimal // non-negative days
	Baseline   decimal.Decimal // new-year starting quota; reset target
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// USAGE RECORD - Running consumption total for a (user, category, year) tuple
// =============================================================================

// UsageRecord keeps ONE running-total row per tuple; approving a request
// updates this row rather than inserting a new one.
// Invariants: Days >= 0, 0 <= Hours < workingHoursPerDay.
type UsageRecord struct {
	ID         string
	UserID     string
	CategoryID string
	Year       int
	Days       int
	Hours      decimal.Decimal // fractional, bounded by work-day length
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// OBLIGATION - Leave request, used here only as a blocking condition
// =============================================================================

type ObligationStatus string

const (
	StatusPending    ObligationStatus = "pending"
	StatusApproved   ObligationStatus = "approved"
	StatusInProgress ObligationStatus = "in_progress"
	StatusRejected   ObligationStatus = "rejected"
	StatusCompleted  ObligationStatus = "completed"
)

// ActiveStatuses are the obligation states that block permanent erasure of
// the category they reference.
var ActiveStatuses = []ObligationStatus{StatusPending, StatusApproved, StatusInProgress}

func (s ObligationStatus) Active() bool {
	return s == StatusPending || s == StatusApproved || s == StatusInProgress
}

type Obligation struct {
	ID         string
	UserID     string
	CategoryID string
	Status     ObligationStatus
	StartDate  time.Time
	EndDate    time.Time
	CreatedAt  time.Time
}

// =============================================================================
// SUPPORTING ENTITIES - Resolved through the store, owned elsewhere
// =============================================================================

// User carries only what balance aggregation needs: the position link.
type User struct {
	ID         string
	Name       string
	PositionID string // empty when the user has no resolvable position
}

type Position struct {
	ID   string
	Name string
}
