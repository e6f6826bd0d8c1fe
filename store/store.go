/*
Package store defines the persistence interfaces for the leave engine.

PURPOSE:
  The engine packages (balance, cleanup, maintenance, api) talk to the
  database only through these interfaces. Implementations exist for SQLite
  (store/sqlite, production) and memory (store/memory, tests/dev).

KEY INTERFACES:
  CategoryStore:   Leave category lifecycle (create, list, soft-delete)
  QuotaStore:      Quota grants per (position, category)
  UsageStore:      Running-total usage rows per (user, category, year)
  ObligationStore: Leave requests, queried only as blocking conditions
  DirectoryStore:  User -> position resolution
  TxRunner:        Transactional unit-of-work for referential-integrity work

DELETE SEMANTICS:
  Categories are soft-deleted through SoftDeleteCategory and physically
  removed only inside a Tx (HardDeleteCategory), after the safety check has
  been re-run in the same transaction. Grants and usage rows are always
  physically removed; they have no soft-delete shape.

TRANSACTION CONTRACT:
  InTx runs fn inside one database transaction. Any error from fn rolls the
  whole transaction back; a nil return commits. The Tx value is only valid
  for the duration of fn.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/memory.go: In-memory implementation for tests
*/
package store

import (
	"context"
	"time"

	"github.com/clockwise/leave-engine/leave"
)

// =============================================================================
// READ/WRITE INTERFACES PER ENTITY
// =============================================================================

type CategoryStore interface {
	// GetCategory returns the row or leave.ErrCategoryNotFound.
	GetCategory(ctx context.Context, id string) (*leave.LeaveCategory, error)

	// ListCategories returns every category, retired ones included,
	// in stable enumeration order (creation order).
	ListCategories(ctx context.Context) ([]leave.LeaveCategory, error)

	// ListValidCategories returns only categories with DeletedAt unset
	// and IsActive true.
	ListValidCategories(ctx context.Context) ([]leave.LeaveCategory, error)

	// ListSoftDeletedCategories returns categories with DeletedAt set.
	ListSoftDeletedCategories(ctx context.Context) ([]leave.LeaveCategory, error)

	CreateCategory(ctx context.Context, c leave.LeaveCategory) error

	// SoftDeleteCategory sets DeletedAt and clears IsActive.
	SoftDeleteCategory(ctx context.Context, id string, at time.Time) error
}

type QuotaStore interface {
	ListQuotaGrants(ctx context.Context) ([]leave.QuotaGrant, error)

	// QuotaGrantFor returns the authoritative grant for the pair, or
	// leave.ErrQuotaGrantNotFound. When duplicates exist the most recently
	// created grant wins.
	QuotaGrantFor(ctx context.Context, positionID, categoryID string) (*leave.QuotaGrant, error)

	CreateQuotaGrant(ctx context.Context, g leave.QuotaGrant) error

	// DeleteQuotaGrant physically removes one grant by ID.
	DeleteQuotaGrant(ctx context.Context, id string) error

	// ResetQuotas sets Quota back to Baseline. With force=false only grants
	// whose baseline is zero are touched; force=true resets every grant.
	// Returns the number of grants affected.
	ResetQuotas(ctx context.Context, force bool) (int, error)
}

type UsageStore interface {
	// UsageRecordFor returns the single running-total row for the tuple,
	// or leave.ErrUsageNotFound when the user has no consumption yet.
	UsageRecordFor(ctx context.Context, userID, categoryID string, year int) (*leave.UsageRecord, error)

	// AddUsage folds additional consumption into the running-total row,
	// creating it when absent. Hours overflow carries into Days so the
	// stored row keeps 0 <= Hours < workingHoursPerDay.
	AddUsage(ctx context.Context, userID, categoryID string, year, days int, hours float64, workingHoursPerDay int) error
}

type ObligationStore interface {
	// CountActiveObligations counts obligations referencing the category
	// with status in {pending, approved, in_progress}.
	CountActiveObligations(ctx context.Context, categoryID string) (int, error)

	CreateObligation(ctx context.Context, o leave.Obligation) error
}

type DirectoryStore interface {
	// GetUser returns the row or leave.ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*leave.User, error)

	CreateUser(ctx context.Context, u leave.User) error
	CreatePosition(ctx context.Context, p leave.Position) error
}

// =============================================================================
// TRANSACTIONAL UNIT-OF-WORK
// =============================================================================

// Tx exposes the operations usable inside one transaction. Only the
// referential-integrity-critical path (permanent category erasure) needs
// transactional scope, so the surface is deliberately narrow.
type Tx interface {
	// GetCategory returns the row or leave.ErrCategoryNotFound,
	// read within the transaction.
	GetCategory(ctx context.Context, id string) (*leave.LeaveCategory, error)

	// CountActiveObligations re-runs the safety predicate inside the
	// transaction, closing the race against concurrent obligation creation.
	CountActiveObligations(ctx context.Context, categoryID string) (int, error)

	// DeleteQuotaGrantsByCategory removes every grant referencing the
	// category. Returns the number of rows removed.
	DeleteQuotaGrantsByCategory(ctx context.Context, categoryID string) (int, error)

	// DeleteUsageByCategory removes every usage row referencing the
	// category. Returns the number of rows removed.
	DeleteUsageByCategory(ctx context.Context, categoryID string) (int, error)

	// HardDeleteCategory physically removes the category row.
	HardDeleteCategory(ctx context.Context, id string) error
}

type TxRunner interface {
	// InTx runs fn in a single transaction: error rolls back, nil commits.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// =============================================================================
// COMPOSITE
// =============================================================================

// Store is the full persistence surface the engine wires at startup.
type Store interface {
	CategoryStore
	QuotaStore
	UsageStore
	ObligationStore
	DirectoryStore
	TxRunner
}
