package cleanup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/cleanup"
	"github.com/clockwise/leave-engine/leave"
)

// =============================================================================
// BEST-EFFORT GRANT CLEANUP TESTS
// =============================================================================

func TestDeleteOrphanedQuotaGrants_BestEffort(t *testing.T) {
	// GIVEN: Three orphaned grants, one of which cannot be deleted
	// WHEN: Running the batch
	// THEN: The other two are deleted, the failure is recorded, and the
	//       batch never aborts

	m := newTestStore(t)
	addGrant(t, m, "g-1", "ghost", 10)
	addGrant(t, m, "g-2", "ghost", 5)
	addGrant(t, m, "g-3", "ghost", 3)
	m.FailDeleteGrant["g-2"] = errors.New("simulated storage failure")

	e := cleanup.NewExecutor(m)
	ctx := context.Background()

	orphans, err := e.Detector.FindOrphanedQuotaGrants(ctx)
	if err != nil {
		t.Fatalf("FindOrphanedQuotaGrants: %v", err)
	}
	result := e.DeleteOrphanedQuotaGrants(ctx, orphans)

	if len(result.Deleted) != 2 {
		t.Errorf("Deleted = %d grants, want 2", len(result.Deleted))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %d grants, want 1", len(result.Failed))
	}
	if result.Failed[0].GrantID != "g-2" {
		t.Errorf("failed grant = %s, want g-2", result.Failed[0].GrantID)
	}
	if !result.TotalQuotaRemoved.Equal(decimal.NewFromInt(13)) {
		t.Errorf("TotalQuotaRemoved = %s, want 13 (only deleted grants)", result.TotalQuotaRemoved)
	}
}

func TestAutoCleanupOrphanedQuotaGrants_NothingToDo(t *testing.T) {
	m := newTestStore(t)
	addCategory(t, m, "valid", true, false)
	addGrant(t, m, "g-1", "valid", 10)

	e := cleanup.NewExecutor(m)
	result, err := e.AutoCleanupOrphanedQuotaGrants(context.Background())
	if err != nil {
		t.Fatalf("AutoCleanupOrphanedQuotaGrants: %v", err)
	}
	if len(result.Deleted) != 0 || len(result.Failed) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if !result.TotalQuotaRemoved.IsZero() {
		t.Errorf("TotalQuotaRemoved = %s, want 0", result.TotalQuotaRemoved)
	}
}

// =============================================================================
// ATOMIC CATEGORY ERASURE TESTS
// =============================================================================

func TestPermanentlyDeleteCategory_RemovesEverything(t *testing.T) {
	// GIVEN: A soft-deleted category with grants and usage, no active
	//        obligations
	// WHEN: Erasing it
	// THEN: Category, grants, and usage rows are all gone

	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "retired", true, true)
	addGrant(t, m, "g-1", "retired", 10)
	addGrant(t, m, "g-2", "retired", 5)
	if err := m.AddUsage(ctx, "emp-1", "retired", 2026, 2, 0, 8); err != nil {
		t.Fatalf("AddUsage: %v", err)
	}

	e := cleanup.NewExecutor(m)
	details, err := e.PermanentlyDeleteCategory(ctx, "retired")
	if err != nil {
		t.Fatalf("PermanentlyDeleteCategory: %v", err)
	}

	if details.GrantsDeleted != 2 {
		t.Errorf("GrantsDeleted = %d, want 2", details.GrantsDeleted)
	}
	if details.UsageDeleted != 1 {
		t.Errorf("UsageDeleted = %d, want 1", details.UsageDeleted)
	}

	if _, err := m.GetCategory(ctx, "retired"); !errors.Is(err, leave.ErrCategoryNotFound) {
		t.Errorf("category should be gone, got %v", err)
	}
	grants, _ := m.ListQuotaGrants(ctx)
	if len(grants) != 0 {
		t.Errorf("expected no grants left, got %d", len(grants))
	}
	if _, err := m.UsageRecordFor(ctx, "emp-1", "retired", 2026); !errors.Is(err, leave.ErrUsageNotFound) {
		t.Errorf("usage should be gone, got %v", err)
	}

	// Classification after erasure is missing, indistinguishable from a
	// category that never existed.
	state, err := e.Detector.ClassifyCategory(ctx, "retired")
	if err != nil {
		t.Fatalf("ClassifyCategory: %v", err)
	}
	if state != leave.CategoryMissing {
		t.Errorf("post-erasure state = %s, want missing", state)
	}
}

func TestPermanentlyDeleteCategory_BlockedByActiveObligation(t *testing.T) {
	// The in-transaction recheck refuses erasure and surfaces a typed error.
	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "retired", true, true)
	addGrant(t, m, "g-1", "retired", 10)
	addObligation(t, m, "ob-1", "retired", leave.StatusApproved)

	e := cleanup.NewExecutor(m)
	_, err := e.PermanentlyDeleteCategory(ctx, "retired")

	var blocked *leave.PurgeBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected PurgeBlockedError, got %v", err)
	}
	if blocked.ActiveCount != 1 {
		t.Errorf("ActiveCount = %d, want 1", blocked.ActiveCount)
	}

	// Nothing was touched.
	if _, err := m.GetCategory(ctx, "retired"); err != nil {
		t.Errorf("category must survive a blocked erasure: %v", err)
	}
	grants, _ := m.ListQuotaGrants(ctx)
	if len(grants) != 1 {
		t.Errorf("grants must survive a blocked erasure, got %d", len(grants))
	}
}

func TestPermanentlyDeleteCategory_NotSoftDeleted(t *testing.T) {
	m := newTestStore(t)
	addCategory(t, m, "live", true, false)

	e := cleanup.NewExecutor(m)
	_, err := e.PermanentlyDeleteCategory(context.Background(), "live")

	var blocked *leave.PurgeBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected PurgeBlockedError, got %v", err)
	}
	if blocked.Classification != leave.CategoryValid {
		t.Errorf("Classification = %s, want valid", blocked.Classification)
	}
}

func TestPermanentlyDeleteCategory_MidTransactionFailureRollsBack(t *testing.T) {
	// GIVEN: Grant deletion fails inside the erasure transaction
	// WHEN: Erasing the category
	// THEN: The whole transaction rolls back; category, grants, and usage
	//       all survive untouched

	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "retired", true, true)
	addGrant(t, m, "g-1", "retired", 10)
	if err := m.AddUsage(ctx, "emp-1", "retired", 2026, 1, 0, 8); err != nil {
		t.Fatalf("AddUsage: %v", err)
	}
	m.FailDeleteGrant["retired"] = errors.New("simulated storage failure")

	e := cleanup.NewExecutor(m)
	_, err := e.PermanentlyDeleteCategory(ctx, "retired")
	if err == nil {
		t.Fatal("expected erasure to fail")
	}

	if _, err := m.GetCategory(ctx, "retired"); err != nil {
		t.Errorf("category must survive rollback: %v", err)
	}
	grants, _ := m.ListQuotaGrants(ctx)
	if len(grants) != 1 {
		t.Errorf("grants must survive rollback, got %d", len(grants))
	}
	if _, err := m.UsageRecordFor(ctx, "emp-1", "retired", 2026); err != nil {
		t.Errorf("usage must survive rollback: %v", err)
	}
}

// =============================================================================
// SCHEDULED SWEEP TESTS
// =============================================================================

func TestAutoCleanupOrphanedCategories_ThreeBuckets(t *testing.T) {
	// GIVEN: One erasable retired category, one blocked by an obligation,
	//        and one live category (not swept at all)
	// WHEN: Running the sweep
	// THEN: Each retired category lands in exactly one bucket

	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "erasable", true, true)
	addCategory(t, m, "blocked", true, true)
	addCategory(t, m, "live", true, false)
	addObligation(t, m, "ob-1", "blocked", leave.StatusInProgress)

	e := cleanup.NewExecutor(m)
	result, err := e.AutoCleanupOrphanedCategories(ctx)
	if err != nil {
		t.Fatalf("AutoCleanupOrphanedCategories: %v", err)
	}

	if result.TotalChecked != 2 {
		t.Errorf("TotalChecked = %d, want 2 (live category not swept)", result.TotalChecked)
	}
	if len(result.Deleted) != 1 || result.Deleted[0].CategoryID != "erasable" {
		t.Errorf("Deleted = %+v, want exactly [erasable]", result.Deleted)
	}
	if len(result.CannotDelete) != 1 || result.CannotDelete[0].CategoryID != "blocked" {
		t.Errorf("CannotDelete = %+v, want exactly [blocked]", result.CannotDelete)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", result.Errors)
	}

	if _, err := m.GetCategory(ctx, "live"); err != nil {
		t.Errorf("live category must be untouched: %v", err)
	}
	if _, err := m.GetCategory(ctx, "blocked"); err != nil {
		t.Errorf("blocked category must be untouched: %v", err)
	}
}

func TestAutoCleanupOrphanedCategories_Idempotent(t *testing.T) {
	// Running the sweep twice with no intervening writes erases nothing
	// the second time.
	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "retired", true, true)

	e := cleanup.NewExecutor(m)
	first, err := e.AutoCleanupOrphanedCategories(ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if len(first.Deleted) != 1 {
		t.Fatalf("first sweep Deleted = %d, want 1", len(first.Deleted))
	}

	second, err := e.AutoCleanupOrphanedCategories(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.TotalChecked != 0 || len(second.Deleted) != 0 {
		t.Errorf("second sweep should find nothing, got %+v", second)
	}
}

func TestAutoCleanupOrphanedCategories_OneFailureDoesNotAbort(t *testing.T) {
	// A mid-transaction failure on one category lands in Errors while the
	// rest of the sweep completes.
	m := newTestStore(t)
	ctx := context.Background()
	addCategory(t, m, "broken", true, true)
	addCategory(t, m, "fine", true, true)
	m.FailDeleteGrant["broken"] = errors.New("simulated storage failure")

	e := cleanup.NewExecutor(m)
	result, err := e.AutoCleanupOrphanedCategories(ctx)
	if err != nil {
		t.Fatalf("AutoCleanupOrphanedCategories: %v", err)
	}

	if len(result.Errors) != 1 || result.Errors[0].CategoryID != "broken" {
		t.Errorf("Errors = %+v, want exactly [broken]", result.Errors)
	}
	if len(result.Deleted) != 1 || result.Deleted[0].CategoryID != "fine" {
		t.Errorf("Deleted = %+v, want exactly [fine]", result.Deleted)
	}
}
