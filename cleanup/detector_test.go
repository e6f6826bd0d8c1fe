package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/cleanup"
	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *memory.Memory {
	t.Helper()
	return memory.New()
}

func addCategory(t *testing.T, m *memory.Memory, id string, active bool, deleted bool) {
	t.Helper()
	c := leave.LeaveCategory{
		ID:        id,
		Name:      "Category " + id,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	if deleted {
		at := time.Now()
		c.DeletedAt = &at
		c.IsActive = false
	}
	if err := m.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
}

func addGrant(t *testing.T, m *memory.Memory, id, categoryID string, quota int64) {
	t.Helper()
	err := m.CreateQuotaGrant(context.Background(), leave.QuotaGrant{
		ID:         id,
		PositionID: "pos-1",
		CategoryID: categoryID,
		Quota:      decimal.NewFromInt(quota),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create grant: %v", err)
	}
}

func addObligation(t *testing.T, m *memory.Memory, id, categoryID string, status leave.ObligationStatus) {
	t.Helper()
	err := m.CreateObligation(context.Background(), leave.Obligation{
		ID:         id,
		UserID:     "emp-1",
		CategoryID: categoryID,
		Status:     status,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create obligation: %v", err)
	}
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestClassifyCategory(t *testing.T) {
	m := newTestStore(t)
	addCategory(t, m, "valid", true, false)
	addCategory(t, m, "retired", true, true)
	addCategory(t, m, "inactive", false, false)

	d := cleanup.NewDetector(m)
	ctx := context.Background()

	cases := []struct {
		id   string
		want leave.CategoryState
	}{
		{"valid", leave.CategoryValid},
		{"retired", leave.CategorySoftDeleted},
		{"inactive", leave.CategoryInactive},
		{"never-existed", leave.CategoryMissing},
	}
	for _, tc := range cases {
		got, err := d.ClassifyCategory(ctx, tc.id)
		if err != nil {
			t.Fatalf("ClassifyCategory(%s): %v", tc.id, err)
		}
		if got != tc.want {
			t.Errorf("ClassifyCategory(%s) = %s, want %s", tc.id, got, tc.want)
		}
	}
}

// =============================================================================
// ORPHAN DETECTION TESTS
// =============================================================================

func TestFindOrphanedQuotaGrants_ExhaustiveAndPrecise(t *testing.T) {
	// GIVEN: Grants against a valid, a soft-deleted, a missing, and an
	//        inactive category
	// WHEN: Running detection
	// THEN: Exactly the three non-valid targets are flagged, the valid one
	//       is never flagged, and each orphan carries its classification

	m := newTestStore(t)
	addCategory(t, m, "valid", true, false)
	addCategory(t, m, "retired", true, true)
	addCategory(t, m, "inactive", false, false)

	addGrant(t, m, "g-valid", "valid", 10)
	addGrant(t, m, "g-retired", "retired", 12)
	addGrant(t, m, "g-missing", "ghost", 5)
	addGrant(t, m, "g-inactive", "inactive", 8)

	d := cleanup.NewDetector(m)
	orphans, err := d.FindOrphanedQuotaGrants(context.Background())
	if err != nil {
		t.Fatalf("FindOrphanedQuotaGrants: %v", err)
	}

	if len(orphans) != 3 {
		t.Fatalf("expected 3 orphans, got %d", len(orphans))
	}

	byGrant := make(map[string]cleanup.OrphanedGrant)
	for _, o := range orphans {
		if o.Grant.ID == "g-valid" {
			t.Fatal("grant referencing a valid category must never be flagged")
		}
		byGrant[o.Grant.ID] = o
	}

	if got := byGrant["g-retired"].State; got != leave.CategorySoftDeleted {
		t.Errorf("g-retired state = %s, want soft_deleted", got)
	}
	if got := byGrant["g-missing"].State; got != leave.CategoryMissing {
		t.Errorf("g-missing state = %s, want missing", got)
	}
	if got := byGrant["g-inactive"].State; got != leave.CategoryInactive {
		t.Errorf("g-inactive state = %s, want inactive", got)
	}
}

func TestFindOrphanedQuotaGrants_MissingCategoryPlaceholder(t *testing.T) {
	// A missing category still yields a renderable snapshot.
	m := newTestStore(t)
	addGrant(t, m, "g-1", "ghost", 5)

	d := cleanup.NewDetector(m)
	orphans, err := d.FindOrphanedQuotaGrants(context.Background())
	if err != nil {
		t.Fatalf("FindOrphanedQuotaGrants: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}

	info := orphans[0].Category
	if info.ID != "ghost" || info.Name != "Unknown" || info.NameAlt != "Not Found" {
		t.Errorf("unexpected placeholder snapshot: %+v", info)
	}
}

func TestFindOrphanedQuotaGrants_CleanStateIsEmpty(t *testing.T) {
	m := newTestStore(t)
	addCategory(t, m, "valid", true, false)
	addGrant(t, m, "g-1", "valid", 10)

	d := cleanup.NewDetector(m)
	orphans, err := d.FindOrphanedQuotaGrants(context.Background())
	if err != nil {
		t.Fatalf("FindOrphanedQuotaGrants: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected no orphans, got %d", len(orphans))
	}
}

// =============================================================================
// ERASURE SAFETY PREDICATE TESTS
// =============================================================================

func TestCanPermanentlyDelete_SoftDeletedAndUnreferenced(t *testing.T) {
	// GIVEN: A soft-deleted category with only terminal obligations
	// WHEN: Running the safety predicate
	// THEN: Erasure is allowed

	m := newTestStore(t)
	addCategory(t, m, "retired", true, true)
	addObligation(t, m, "ob-1", "retired", leave.StatusRejected)
	addObligation(t, m, "ob-2", "retired", leave.StatusCompleted)

	d := cleanup.NewDetector(m)
	check, err := d.CanPermanentlyDelete(context.Background(), "retired")
	if err != nil {
		t.Fatalf("CanPermanentlyDelete: %v", err)
	}
	if !check.CanDelete {
		t.Errorf("expected CanDelete=true, got %+v", check)
	}
}

func TestCanPermanentlyDelete_BlockedByActiveObligation(t *testing.T) {
	// A single pending obligation blocks erasure and is counted.
	m := newTestStore(t)
	addCategory(t, m, "retired", true, true)
	addObligation(t, m, "ob-1", "retired", leave.StatusPending)

	d := cleanup.NewDetector(m)
	check, err := d.CanPermanentlyDelete(context.Background(), "retired")
	if err != nil {
		t.Fatalf("CanPermanentlyDelete: %v", err)
	}
	if check.CanDelete {
		t.Fatal("expected erasure to be blocked")
	}
	if check.ActiveObligationCount != 1 {
		t.Errorf("ActiveObligationCount = %d, want 1", check.ActiveObligationCount)
	}
}

func TestCanPermanentlyDelete_NotSoftDeleted(t *testing.T) {
	// A live category can never be erased, obligations or not.
	m := newTestStore(t)
	addCategory(t, m, "live", true, false)

	d := cleanup.NewDetector(m)
	check, err := d.CanPermanentlyDelete(context.Background(), "live")
	if err != nil {
		t.Fatalf("CanPermanentlyDelete: %v", err)
	}
	if check.CanDelete {
		t.Fatal("live category must not be erasable")
	}
	if check.State != leave.CategoryValid {
		t.Errorf("State = %s, want valid", check.State)
	}
}

func TestCanPermanentlyDelete_MissingCategory(t *testing.T) {
	m := newTestStore(t)

	d := cleanup.NewDetector(m)
	check, err := d.CanPermanentlyDelete(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("CanPermanentlyDelete: %v", err)
	}
	if check.CanDelete {
		t.Fatal("missing category must not be erasable")
	}
	if check.State != leave.CategoryMissing {
		t.Errorf("State = %s, want missing", check.State)
	}
}
