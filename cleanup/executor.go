/*
executor.go - Mutating half of the cleanup subsystem

PURPOSE:
  Permanently removes orphaned quota grants and soft-deleted, unreferenced
  leave categories, producing an auditable per-record outcome ledger.

TWO DELETE CONTRACTS, TWO NAMES:
  DeleteOrphanedQuotaGrants  - best-effort. Each grant is deleted
      independently; one failure lands in the Failed list and the batch
      carries on. Grant orphans are cosmetic cleanup.
  PermanentlyDeleteCategory  - all-or-nothing. Revalidate, delete grants,
      delete usage, delete the category row, all inside ONE transaction.
      Any failure rolls everything back. Category erasure is
      referential-integrity-critical.
  The contracts are separate operations rather than one function with a
  flag so the atomicity promise is visible at the call site.

SEE ALSO:
  - detector.go: The safety predicate re-run inside the transaction
  - store/store.go: The Tx surface the atomic path runs on
*/
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// ExecutorStore is the full slice the executor needs: detector reads plus
// grant deletion plus the transactional unit-of-work.
type ExecutorStore interface {
	DetectorStore
	store.TxRunner
}

// Executor performs the destructive half of cleanup.
type Executor struct {
	Store    ExecutorStore
	Detector *Detector
}

func NewExecutor(s ExecutorStore) *Executor {
	return &Executor{Store: s, Detector: NewDetector(s)}
}

// =============================================================================
// BEST-EFFORT GRANT CLEANUP
// =============================================================================

// GrantFailure records one grant that could not be deleted.
type GrantFailure struct {
	GrantID string
	Err     error
}

// GrantCleanupResult is the outcome ledger of a best-effort batch.
type GrantCleanupResult struct {
	Deleted           []leave.QuotaGrant
	Failed            []GrantFailure
	TotalQuotaRemoved decimal.Decimal
}

// DeleteOrphanedQuotaGrants removes the given grants one by one. A failure
// on one grant never aborts the rest; it is recorded and the batch
// continues. No ordering guarantee across grants.
func (e *Executor) DeleteOrphanedQuotaGrants(ctx context.Context, orphans []OrphanedGrant) GrantCleanupResult {
	result := GrantCleanupResult{TotalQuotaRemoved: decimal.Zero}

	for _, o := range orphans {
		if err := e.Store.DeleteQuotaGrant(ctx, o.Grant.ID); err != nil {
			log.Printf("[Cleanup] Failed to delete quota grant %s (category %s): %v",
				o.Grant.ID, o.Grant.CategoryID, err)
			result.Failed = append(result.Failed, GrantFailure{GrantID: o.Grant.ID, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, o.Grant)
		result.TotalQuotaRemoved = result.TotalQuotaRemoved.Add(o.Grant.Quota)
	}

	return result
}

// AutoCleanupOrphanedQuotaGrants runs detection then best-effort deletion.
func (e *Executor) AutoCleanupOrphanedQuotaGrants(ctx context.Context) (GrantCleanupResult, error) {
	orphans, err := e.Detector.FindOrphanedQuotaGrants(ctx)
	if err != nil {
		return GrantCleanupResult{TotalQuotaRemoved: decimal.Zero}, err
	}
	if len(orphans) == 0 {
		return GrantCleanupResult{TotalQuotaRemoved: decimal.Zero}, nil
	}
	return e.DeleteOrphanedQuotaGrants(ctx, orphans), nil
}

// =============================================================================
// ATOMIC CATEGORY ERASURE
// =============================================================================

// PurgeDetails reports what one successful erasure removed.
type PurgeDetails struct {
	CategoryID    string
	GrantsDeleted int
	UsageDeleted  int
}

// PermanentlyDeleteCategory erases a soft-deleted category and everything
// referencing it in a single transaction:
//
//	1. re-run the safety predicate (same transaction, fresh reads)
//	2. delete all quota grants referencing the category
//	3. delete all usage rows referencing the category
//	4. delete the category row
//
// Any failure at any step rolls the whole transaction back, leaving the
// category and its grants untouched. A blocked erasure surfaces as
// *leave.PurgeBlockedError.
func (e *Executor) PermanentlyDeleteCategory(ctx context.Context, categoryID string) (PurgeDetails, error) {
	details := PurgeDetails{CategoryID: categoryID}

	err := e.Store.InTx(ctx, func(tx store.Tx) error {
		cat, err := tx.GetCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		state := leave.Classify(cat)
		if state != leave.CategorySoftDeleted {
			return &leave.PurgeBlockedError{CategoryID: categoryID, Classification: state}
		}

		// Re-check inside the transaction: an obligation created after the
		// caller's check must still block the delete.
		count, err := tx.CountActiveObligations(ctx, categoryID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &leave.PurgeBlockedError{
				CategoryID:     categoryID,
				ActiveCount:    count,
				Classification: state,
			}
		}

		grants, err := tx.DeleteQuotaGrantsByCategory(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("delete grants for category %s: %w", categoryID, err)
		}
		details.GrantsDeleted = grants

		usage, err := tx.DeleteUsageByCategory(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("delete usage for category %s: %w", categoryID, err)
		}
		details.UsageDeleted = usage

		if err := tx.HardDeleteCategory(ctx, categoryID); err != nil {
			return fmt.Errorf("delete category %s: %w", categoryID, err)
		}
		return nil
	})
	if err != nil {
		return PurgeDetails{CategoryID: categoryID}, err
	}

	log.Printf("[Cleanup] Purged category %s (%d grants, %d usage rows)",
		categoryID, details.GrantsDeleted, details.UsageDeleted)
	return details, nil
}

// =============================================================================
// SCHEDULED CATEGORY SWEEP
// =============================================================================

// CategoryFailure records one category whose erasure errored (as opposed to
// being safely blocked).
type CategoryFailure struct {
	CategoryID string
	Err        error
}

// Blocked records one category whose erasure was refused by the predicate.
type Blocked struct {
	CategoryID            string
	Reason                string
	ActiveObligationCount int
}

// CategoryCleanupResult is the outcome ledger of one sweep: three disjoint
// buckets per checked category.
type CategoryCleanupResult struct {
	TotalChecked int
	Deleted      []PurgeDetails
	CannotDelete []Blocked
	Errors       []CategoryFailure
}

// AutoCleanupOrphanedCategories sweeps every soft-deleted category, checks
// the safety predicate, and erases the ones that pass. One category's error
// never aborts processing of the rest. Running the sweep twice with no
// intervening writes yields an empty Deleted list the second time.
func (e *Executor) AutoCleanupOrphanedCategories(ctx context.Context) (CategoryCleanupResult, error) {
	var result CategoryCleanupResult

	retired, err := e.Store.ListSoftDeletedCategories(ctx)
	if err != nil {
		return result, err
	}
	result.TotalChecked = len(retired)

	for _, cat := range retired {
		check, err := e.Detector.CanPermanentlyDelete(ctx, cat.ID)
		if err != nil {
			result.Errors = append(result.Errors, CategoryFailure{CategoryID: cat.ID, Err: err})
			continue
		}
		if !check.CanDelete {
			result.CannotDelete = append(result.CannotDelete, Blocked{
				CategoryID:            cat.ID,
				Reason:                check.Reason,
				ActiveObligationCount: check.ActiveObligationCount,
			})
			continue
		}

		details, err := e.PermanentlyDeleteCategory(ctx, cat.ID)
		if err != nil {
			// The in-transaction recheck may block what the first check
			// allowed; that is still a CannotDelete, not an error.
			var blocked *leave.PurgeBlockedError
			if errors.As(err, &blocked) {
				result.CannotDelete = append(result.CannotDelete, Blocked{
					CategoryID:            cat.ID,
					Reason:                blocked.Error(),
					ActiveObligationCount: blocked.ActiveCount,
				})
				continue
			}
			result.Errors = append(result.Errors, CategoryFailure{CategoryID: cat.ID, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, details)
	}

	return result, nil
}
