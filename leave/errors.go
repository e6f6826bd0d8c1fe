/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All sentinel and structured errors in one place. Packages wrap these with
  additional context; callers branch with errors.Is().

ERROR CATEGORIES:
  1. Validation errors - malformed input, unresolvable user->position mapping
  2. Not-found errors  - referenced rows absent
  3. Store errors      - persistence-level failures

EXPECTED OUTCOMES ARE NOT ERRORS:
  A category erasure blocked by active obligations is a normal business
  outcome. It is reported through the CanDelete result shape in cleanup/,
  never raised as an error from the safety check itself.

SEE ALSO:
  - cleanup/: wraps ErrCategoryNotFound, returns PurgeBlockedError from
    the transactional erasure path
  - balance/: returns ErrPositionNotResolved for users without a position
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCategoryNotFound is returned when a referenced leave category row
	// does not exist.
	ErrCategoryNotFound = errors.New("leave category not found")

	// ErrUserNotFound is returned when a referenced user row does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrPositionNotResolved is returned when a user exists but carries no
	// resolvable position. Quota cannot be determined without one.
	ErrPositionNotResolved = errors.New("user has no resolvable position")

	// ErrQuotaGrantNotFound is returned when a referenced quota grant row
	// does not exist. Note: "no grant for a category" during aggregation is
	// zero entitlement, not this error.
	ErrQuotaGrantNotFound = errors.New("quota grant not found")

	// ErrUsageNotFound is returned when a usage row lookup by ID fails.
	ErrUsageNotFound = errors.New("usage record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PurgeBlockedError reports that permanent category erasure was refused
// because active obligations still reference the category. It carries the
// count observed inside the deleting transaction.
type PurgeBlockedError struct {
	CategoryID     string
	ActiveCount    int
	Classification CategoryState
}

func (e *PurgeBlockedError) Error() string {
	if e.ActiveCount > 0 {
		return fmt.Sprintf("category %s blocked by %d active obligation(s)", e.CategoryID, e.ActiveCount)
	}
	return fmt.Sprintf("category %s cannot be purged (state: %s)", e.CategoryID, e.Classification)
}

// IsNotFound reports whether err indicates a missing row of any entity kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrQuotaGrantNotFound) ||
		errors.Is(err, ErrUsageNotFound)
}
