// Package memory provides an in-memory Store implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// =============================================================================
// MEMORY STORE - Map-backed implementation guarded by one RWMutex
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	categories  map[string]leave.LeaveCategory
	catOrder    []string // creation order for stable enumeration
	grants      map[string]leave.QuotaGrant
	usage       map[usageKey]leave.UsageRecord
	obligations map[string]leave.Obligation
	users       map[string]leave.User
	positions   map[string]leave.Position

	// FailDeleteGrant makes DeleteQuotaGrant / in-Tx grant deletion fail for
	// the given grant or category ID. Test hook for failure-path coverage.
	FailDeleteGrant map[string]error
}

type usageKey struct {
	UserID     string
	CategoryID string
	Year       int
}

func New() *Memory {
	return &Memory{
		categories:      make(map[string]leave.LeaveCategory),
		grants:          make(map[string]leave.QuotaGrant),
		usage:           make(map[usageKey]leave.UsageRecord),
		obligations:     make(map[string]leave.Obligation),
		users:           make(map[string]leave.User),
		positions:       make(map[string]leave.Position),
		FailDeleteGrant: make(map[string]error),
	}
}

var _ store.Store = (*Memory)(nil)

// =============================================================================
// CATEGORIES
// =============================================================================

func (m *Memory) GetCategory(_ context.Context, id string) (*leave.LeaveCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategoryLocked(id)
}

func (m *Memory) getCategoryLocked(id string) (*leave.LeaveCategory, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, leave.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]leave.LeaveCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.LeaveCategory, 0, len(m.catOrder))
	for _, id := range m.catOrder {
		if c, ok := m.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ListValidCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	all, _ := m.ListCategories(ctx)
	out := all[:0:0]
	for _, c := range all {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ListSoftDeletedCategories(ctx context.Context) ([]leave.LeaveCategory, error) {
	all, _ := m.ListCategories(ctx)
	out := all[:0:0]
	for _, c := range all {
		if c.SoftDeleted() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) CreateCategory(_ context.Context, c leave.LeaveCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[c.ID]; !exists {
		m.catOrder = append(m.catOrder, c.ID)
	}
	m.categories[c.ID] = c
	return nil
}

func (m *Memory) SoftDeleteCategory(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return leave.ErrCategoryNotFound
	}
	c.DeletedAt = &at
	c.IsActive = false
	c.UpdatedAt = at
	m.categories[id] = c
	return nil
}

// =============================================================================
// QUOTA GRANTS
// =============================================================================

func (m *Memory) ListQuotaGrants(_ context.Context) ([]leave.QuotaGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]leave.QuotaGrant, 0, len(m.grants))
	for _, g := range m.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) QuotaGrantFor(_ context.Context, positionID, categoryID string) (*leave.QuotaGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *leave.QuotaGrant
	for id := range m.grants {
		g := m.grants[id]
		if g.PositionID != positionID || g.CategoryID != categoryID {
			continue
		}
		// Duplicate pairs: most recently created grant wins.
		if best == nil || g.CreatedAt.After(best.CreatedAt) {
			copied := g
			best = &copied
		}
	}
	if best == nil {
		return nil, leave.ErrQuotaGrantNotFound
	}
	return best, nil
}

func (m *Memory) CreateQuotaGrant(_ context.Context, g leave.QuotaGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[g.ID] = g
	return nil
}

func (m *Memory) DeleteQuotaGrant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailDeleteGrant[id]; ok {
		return err
	}
	if _, ok := m.grants[id]; !ok {
		return leave.ErrQuotaGrantNotFound
	}
	delete(m.grants, id)
	return nil
}

func (m *Memory) ResetQuotas(_ context.Context, force bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	affected := 0
	for id, g := range m.grants {
		if !force && !g.Baseline.IsZero() {
			continue
		}
		if g.Quota.Equal(g.Baseline) {
			continue
		}
		g.Quota = g.Baseline
		g.UpdatedAt = time.Now()
		m.grants[id] = g
		affected++
	}
	return affected, nil
}

// =============================================================================
// USAGE RECORDS
// =============================================================================

func (m *Memory) UsageRecordFor(_ context.Context, userID, categoryID string, year int) (*leave.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.usage[usageKey{UserID: userID, CategoryID: categoryID, Year: year}]
	if !ok {
		return nil, leave.ErrUsageNotFound
	}
	return &rec, nil
}

func (m *Memory) AddUsage(_ context.Context, userID, categoryID string, year, days int, hours float64, workingHoursPerDay int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := usageKey{UserID: userID, CategoryID: categoryID, Year: year}
	rec, ok := m.usage[k]
	if !ok {
		rec = leave.UsageRecord{
			ID:         userID + ":" + categoryID,
			UserID:     userID,
			CategoryID: categoryID,
			Year:       year,
			Hours:      decimal.Zero,
			CreatedAt:  time.Now(),
		}
	}

	rec.Days += days
	rec.Hours = rec.Hours.Add(decimal.NewFromFloat(hours))

	// Carry hour overflow into days: stored hours stay < one work day.
	// Skipped for a non-positive day length, which would spin the loop.
	perDay := decimal.NewFromInt(int64(workingHoursPerDay))
	for perDay.IsPositive() && rec.Hours.GreaterThanOrEqual(perDay) {
		rec.Hours = rec.Hours.Sub(perDay)
		rec.Days++
	}
	rec.UpdatedAt = time.Now()
	m.usage[k] = rec
	return nil
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (m *Memory) CountActiveObligations(_ context.Context, categoryID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countActiveLocked(categoryID), nil
}

func (m *Memory) countActiveLocked(categoryID string) int {
	count := 0
	for _, o := range m.obligations {
		if o.CategoryID == categoryID && o.Status.Active() {
			count++
		}
	}
	return count
}

func (m *Memory) CreateObligation(_ context.Context, o leave.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = o
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id string) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, leave.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) CreateUser(_ context.Context, u leave.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) CreatePosition(_ context.Context, p leave.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.ID] = p
	return nil
}

// =============================================================================
// TRANSACTIONS - Copy-on-write snapshot, swapped in on commit
// =============================================================================

// InTx clones the mutable maps, runs fn against the clone, and swaps the
// clone in only when fn returns nil. An error leaves the original state
// untouched, mirroring a database rollback.
func (m *Memory) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := &memTx{
		parent:      m,
		categories:  make(map[string]leave.LeaveCategory, len(m.categories)),
		grants:      make(map[string]leave.QuotaGrant, len(m.grants)),
		usage:       make(map[usageKey]leave.UsageRecord, len(m.usage)),
		obligations: m.obligations,
	}
	for k, v := range m.categories {
		clone.categories[k] = v
	}
	for k, v := range m.grants {
		clone.grants[k] = v
	}
	for k, v := range m.usage {
		clone.usage[k] = v
	}

	if err := fn(clone); err != nil {
		return err
	}

	m.categories = clone.categories
	m.grants = clone.grants
	m.usage = clone.usage
	m.catOrder = pruneOrder(m.catOrder, clone.categories)
	return nil
}

func pruneOrder(order []string, live map[string]leave.LeaveCategory) []string {
	out := order[:0:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

type memTx struct {
	parent      *Memory
	categories  map[string]leave.LeaveCategory
	grants      map[string]leave.QuotaGrant
	usage       map[usageKey]leave.UsageRecord
	obligations map[string]leave.Obligation
}

func (t *memTx) GetCategory(_ context.Context, id string) (*leave.LeaveCategory, error) {
	c, ok := t.categories[id]
	if !ok {
		return nil, leave.ErrCategoryNotFound
	}
	return &c, nil
}

func (t *memTx) CountActiveObligations(_ context.Context, categoryID string) (int, error) {
	count := 0
	for _, o := range t.obligations {
		if o.CategoryID == categoryID && o.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (t *memTx) DeleteQuotaGrantsByCategory(_ context.Context, categoryID string) (int, error) {
	if err, ok := t.parent.FailDeleteGrant[categoryID]; ok {
		return 0, err
	}
	deleted := 0
	for id, g := range t.grants {
		if g.CategoryID == categoryID {
			delete(t.grants, id)
			deleted++
		}
	}
	return deleted, nil
}

func (t *memTx) DeleteUsageByCategory(_ context.Context, categoryID string) (int, error) {
	deleted := 0
	for k := range t.usage {
		if k.CategoryID == categoryID {
			delete(t.usage, k)
			deleted++
		}
	}
	return deleted, nil
}

func (t *memTx) HardDeleteCategory(_ context.Context, id string) error {
	if _, ok := t.categories[id]; !ok {
		return leave.ErrCategoryNotFound
	}
	delete(t.categories, id)
	return nil
}
