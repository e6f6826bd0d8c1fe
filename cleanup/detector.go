/*
Package cleanup detects and removes records orphaned by category retirement.

PURPOSE:
  When an administrator retires a leave category, quota grants and usage
  rows referencing it become dead weight, and the soft-deleted category row
  itself must eventually be erased - but only once nothing active depends on
  it. This package splits that into a read-only Detector (classification,
  safety predicate) and a mutating Executor (best-effort grant removal,
  transactional category erasure).

DETECTOR vs EXECUTOR:
  The Detector never writes. Its safety predicate CanPermanentlyDelete is
  the single authority on whether erasure is safe; the Executor re-runs the
  same predicate inside the deleting transaction to close the race against
  an obligation created between check and delete.

SEE ALSO:
  - executor.go: The mutating half
  - maintenance/: Schedules the auto-cleanup runs
*/
package cleanup

import (
	"context"
	"errors"

	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// DetectorStore is the read-only slice of the store the detector needs.
type DetectorStore interface {
	store.CategoryStore
	store.QuotaStore
	store.ObligationStore
}

// Detector classifies category references and flags orphaned quota grants.
type Detector struct {
	Store DetectorStore
}

func NewDetector(s DetectorStore) *Detector {
	return &Detector{Store: s}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ClassifyCategory resolves a category ID to its lifecycle state.
func (d *Detector) ClassifyCategory(ctx context.Context, categoryID string) (leave.CategoryState, error) {
	cat, err := d.Store.GetCategory(ctx, categoryID)
	if errors.Is(err, leave.ErrCategoryNotFound) {
		return leave.CategoryMissing, nil
	}
	if err != nil {
		return "", err
	}
	return leave.Classify(cat), nil
}

// =============================================================================
// ORPHANED QUOTA GRANTS
// =============================================================================

// OrphanedGrant pairs a flagged grant with the classification of its target
// and a best-effort display snapshot of the category.
type OrphanedGrant struct {
	Grant    leave.QuotaGrant
	State    leave.CategoryState
	Category leave.CategoryInfo
}

// FindOrphanedQuotaGrants flags every grant whose category is not valid:
// missing, soft-deleted, or deactivated. Exhaustive and precise - a grant
// referencing a valid category is never flagged.
func (d *Detector) FindOrphanedQuotaGrants(ctx context.Context) ([]OrphanedGrant, error) {
	grants, err := d.Store.ListQuotaGrants(ctx)
	if err != nil {
		return nil, err
	}
	valid, err := d.Store.ListValidCategories(ctx)
	if err != nil {
		return nil, err
	}

	validIDs := make(map[string]bool, len(valid))
	for _, c := range valid {
		validIDs[c.ID] = true
	}

	var orphans []OrphanedGrant
	for _, g := range grants {
		if validIDs[g.CategoryID] {
			continue
		}

		orphan := OrphanedGrant{Grant: g}
		cat, err := d.Store.GetCategory(ctx, g.CategoryID)
		switch {
		case errors.Is(err, leave.ErrCategoryNotFound):
			orphan.State = leave.CategoryMissing
			orphan.Category = leave.UnknownCategoryInfo(g.CategoryID)
		case err != nil:
			// Snapshot is best-effort: a read failure downgrades to the
			// placeholder rather than dropping the orphan from the report.
			orphan.State = leave.CategoryMissing
			orphan.Category = leave.UnknownCategoryInfo(g.CategoryID)
		default:
			orphan.State = leave.Classify(cat)
			orphan.Category = leave.SnapshotCategory(cat)
		}

		orphans = append(orphans, orphan)
	}
	return orphans, nil
}

// =============================================================================
// ERASURE SAFETY PREDICATE
// =============================================================================

// DeleteCheck is the outcome of the erasure safety predicate. A blocked
// erasure is an expected result, not an error.
type DeleteCheck struct {
	CanDelete             bool
	Reason                string
	State                 leave.CategoryState
	ActiveObligationCount int
}

// CanPermanentlyDelete decides whether a category may be physically erased:
// the row must exist, must already be soft-deleted, and no obligation in an
// active status (pending, approved, in_progress) may still reference it.
// The Executor re-runs this predicate inside its deleting transaction.
func (d *Detector) CanPermanentlyDelete(ctx context.Context, categoryID string) (DeleteCheck, error) {
	cat, err := d.Store.GetCategory(ctx, categoryID)
	if errors.Is(err, leave.ErrCategoryNotFound) {
		return DeleteCheck{
			CanDelete: false,
			Reason:    "category does not exist",
			State:     leave.CategoryMissing,
		}, nil
	}
	if err != nil {
		return DeleteCheck{}, err
	}

	state := leave.Classify(cat)
	if state != leave.CategorySoftDeleted {
		return DeleteCheck{
			CanDelete: false,
			Reason:    "category is not soft-deleted",
			State:     state,
		}, nil
	}

	count, err := d.Store.CountActiveObligations(ctx, categoryID)
	if err != nil {
		return DeleteCheck{}, err
	}
	if count > 0 {
		return DeleteCheck{
			CanDelete:             false,
			Reason:                "active obligations still reference this category",
			State:                 state,
			ActiveObligationCount: count,
		}, nil
	}

	return DeleteCheck{CanDelete: true, State: state}, nil
}
