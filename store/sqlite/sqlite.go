/*
Package sqlite provides the SQLite-backed implementation of the store interfaces.

PURPOSE:
  Implements store.Store using database/sql + mattn/go-sqlite3. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  leave_categories:  Category definitions with soft-delete columns
  quota_grants:      Entitlements per (position, category)
  usage_records:     One running-total row per (user, category, year)
  leave_obligations: Requests, queried as erasure blocking conditions
  users, positions:  Directory rows for user -> position resolution

SOFT-DELETE:
  Only leave_categories carries deleted_at. "Valid" rows are
  deleted_at IS NULL AND is_active = 1. Grants, usage, and obligations are
  hard-deleted; no runtime probing for a soft-delete column anywhere.

DECIMALS:
  Quota and hour figures are stored as TEXT and parsed with
  shopspring/decimal, never as REAL, so balance arithmetic stays exact.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers don't
  block, single writer at a time, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

USAGE:
  st, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_alt TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_deleted
		ON leave_categories(deleted_at) WHERE deleted_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS quota_grants (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		quota TEXT NOT NULL,
		baseline TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: grant resolution per (position, category), newest first
	CREATE INDEX IF NOT EXISTS idx_grants_position_category
		ON quota_grants(position_id, category_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_grants_category
		ON quota_grants(category_id);

	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		days INTEGER NOT NULL DEFAULT 0,
		hours TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One running-total row per tuple
	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_tuple
		ON usage_records(user_id, category_id, year);
	CREATE INDEX IF NOT EXISTS idx_usage_category
		ON usage_records(category_id);

	CREATE TABLE IF NOT EXISTS leave_obligations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: active-obligation count per category (erasure safety check)
	CREATE INDEX IF NOT EXISTS idx_obligations_category_status
		ON leave_obligations(category_id, status);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position_id TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATEGORIES
// =============================================================================

const categoryColumns = "id, name, name_alt, is_active, deleted_at, created_at, updated_at"

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) GetCategory(ctx context.Context, id string) (*leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCategory(ctx, s.db, id)
}

func getCategory(ctx context.Context, q querier, id string) (*leave.LeaveCategory, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM leave_categories WHERE id = ?", id)
	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*leave.LeaveCategory, error) {
	var (
		cat       leave.LeaveCategory
		nameAlt   sql.NullString
		isActive  int
		deletedAt sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&cat.ID, &cat.Name, &nameAlt, &isActive, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	cat.NameAlt = nameAlt.String
	cat.IsActive = isActive != 0
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		cat.DeletedAt = &t
	}
	cat.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cat.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cat, nil
}

func (s *Store) listCategories(ctx context.Context, where string, args ...any) ([]leave.LeaveCategory, error) {
	query := "SELECT " + categoryColumns + " FROM leave_categories " + where +
		" ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveCategory
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, *cat)
	}
	return out, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCategories(ctx, "")
}

func (s *Store) ListValidCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCategories(ctx, "WHERE deleted_at IS NULL AND is_active = 1")
}

func (s *Store) ListSoftDeletedCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCategories(ctx, "WHERE deleted_at IS NOT NULL")
}

func (s *Store) CreateCategory(ctx context.Context, c leave.LeaveCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	var deletedAt any
	if c.DeletedAt != nil {
		deletedAt = c.DeletedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_categories (id, name, name_alt, is_active, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.NameAlt, boolToInt(c.IsActive), deletedAt,
		c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *Store) SoftDeleteCategory(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_categories
		SET deleted_at = ?, is_active = 0, updated_at = ?
		WHERE id = ?`,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrCategoryNotFound
	}
	return nil
}

// =============================================================================
// QUOTA GRANTS
// =============================================================================

const grantColumns = "id, position_id, category_id, quota, baseline, created_at, updated_at"

func scanGrant(row rowScanner) (*leave.QuotaGrant, error) {
	var (
		g         leave.QuotaGrant
		quota     string
		baseline  string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&g.ID, &g.PositionID, &g.CategoryID, &quota, &baseline, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.Quota = parseDecimal(quota)
	g.Baseline = parseDecimal(baseline)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &g, nil
}

func (s *Store) ListQuotaGrants(ctx context.Context) ([]leave.QuotaGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listGrants(ctx)
}

func (s *Store) listGrants(ctx context.Context) ([]leave.QuotaGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+grantColumns+" FROM quota_grants ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query quota grants: %w", err)
	}
	defer rows.Close()

	var out []leave.QuotaGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quota grant: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *Store) QuotaGrantFor(ctx context.Context, positionID, categoryID string) (*leave.QuotaGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Duplicate pairs: most recently created grant is authoritative.
	row := s.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+` FROM quota_grants
		WHERE position_id = ? AND category_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		positionID, categoryID,
	)
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrQuotaGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota grant: %w", err)
	}
	return g, nil
}

func (s *Store) CreateQuotaGrant(ctx context.Context, g leave.QuotaGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_grants (id, position_id, category_id, quota, baseline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.PositionID, g.CategoryID, g.Quota.String(), g.Baseline.String(),
		g.CreatedAt.UTC().Format(time.RFC3339), g.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create quota grant: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuotaGrant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM quota_grants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete quota grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrQuotaGrantNotFound
	}
	return nil
}

func (s *Store) ResetQuotas(ctx context.Context, force bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Decimals live as TEXT, so the zero-baseline filter runs in Go rather
	// than as a string comparison in SQL.
	grants, err := s.listGrants(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	affected := 0
	for _, g := range grants {
		if !force && !g.Baseline.IsZero() {
			continue
		}
		if g.Quota.Equal(g.Baseline) {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			"UPDATE quota_grants SET quota = ?, updated_at = ? WHERE id = ?",
			g.Baseline.String(), now, g.ID,
		)
		if err != nil {
			return affected, fmt.Errorf("failed to reset quota grant %s: %w", g.ID, err)
		}
		affected++
	}
	return affected, nil
}

// =============================================================================
// USAGE RECORDS
// =============================================================================

func (s *Store) UsageRecordFor(ctx context.Context, userID, categoryID string, year int) (*leave.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec       leave.UsageRecord
		hours     string
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, year, days, hours, created_at, updated_at
		FROM usage_records
		WHERE user_id = ? AND category_id = ? AND year = ?`,
		userID, categoryID, year,
	).Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Year, &rec.Days, &hours, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, leave.ErrUsageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}

	rec.Hours = parseDecimal(hours)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func (s *Store) AddUsage(ctx context.Context, userID, categoryID string, year, days int, hours float64, workingHoursPerDay int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var (
		id       string
		curDays  int
		curHours string
	)
	now := time.Now().UTC().Format(time.RFC3339)
	err = sqlTx.QueryRowContext(ctx, `
		SELECT id, days, hours FROM usage_records
		WHERE user_id = ? AND category_id = ? AND year = ?`,
		userID, categoryID, year,
	).Scan(&id, &curDays, &curHours)

	totalDays := curDays + days
	totalHours := parseDecimal(curHours).Add(decimal.NewFromFloat(hours))

	// Carry hour overflow into days so the stored row keeps
	// 0 <= hours < workingHoursPerDay. A non-positive day length would
	// make the carry loop spin, so it skips the carry entirely.
	perDay := decimal.NewFromInt(int64(workingHoursPerDay))
	for perDay.IsPositive() && totalHours.GreaterThanOrEqual(perDay) {
		totalHours = totalHours.Sub(perDay)
		totalDays++
	}

	switch {
	case err == sql.ErrNoRows:
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO usage_records (id, user_id, category_id, year, days, hours, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			usageID(userID, categoryID, year), userID, categoryID, year,
			totalDays, totalHours.String(), now, now,
		)
	case err != nil:
		return fmt.Errorf("failed to read usage record: %w", err)
	default:
		_, err = sqlTx.ExecContext(ctx, `
			UPDATE usage_records SET days = ?, hours = ?, updated_at = ? WHERE id = ?`,
			totalDays, totalHours.String(), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to write usage record: %w", err)
	}

	return sqlTx.Commit()
}

func usageID(userID, categoryID string, year int) string {
	return fmt.Sprintf("%s:%s:%d", userID, categoryID, year)
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) CountActiveObligations(ctx context.Context, categoryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countActiveObligations(ctx, s.db, categoryID)
}

func countActiveObligations(ctx context.Context, q querier, categoryID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_obligations
		WHERE category_id = ? AND status IN (?, ?, ?)`,
		categoryID,
		string(leave.StatusPending), string(leave.StatusApproved), string(leave.StatusInProgress),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count obligations: %w", err)
	}
	return count, nil
}

func (s *Store) CreateObligation(ctx context.Context, o leave.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_obligations (id, user_id, category_id, status, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.CategoryID, string(o.Status),
		o.StartDate.UTC().Format(time.RFC3339), o.EndDate.UTC().Format(time.RFC3339),
		o.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create obligation: %w", err)
	}
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id string) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u          leave.User
		positionID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, position_id FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &positionID)
	if err == sql.ErrNoRows {
		return nil, leave.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.PositionID = positionID.String
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var positionID any
	if u.PositionID != "" {
		positionID = u.PositionID
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, position_id) VALUES (?, ?, ?)",
		u.ID, u.Name, positionID,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) CreatePosition(ctx context.Context, p leave.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO positions (id, name) VALUES (?, ?)", p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL UNIT-OF-WORK (store.TxRunner)
// =============================================================================

// InTx executes fn within one database transaction. The deferred Rollback
// is a no-op after Commit, so every exit path - success, business-rule
// failure, unexpected error - releases the transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&storeTx{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) GetCategory(ctx context.Context, id string) (*leave.LeaveCategory, error) {
	return getCategory(ctx, t.tx, id)
}

func (t *storeTx) CountActiveObligations(ctx context.Context, categoryID string) (int, error) {
	return countActiveObligations(ctx, t.tx, categoryID)
}

func (t *storeTx) DeleteQuotaGrantsByCategory(ctx context.Context, categoryID string) (int, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM quota_grants WHERE category_id = ?", categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete grants: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (t *storeTx) DeleteUsageByCategory(ctx context.Context, categoryID string) (int, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM usage_records WHERE category_id = ?", categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (t *storeTx) HardDeleteCategory(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM leave_categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrCategoryNotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
