/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract. Decimal figures are serialized as strings so
  clients never receive lossy floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/clockwise/leave-engine/balance"
	"github.com/clockwise/leave-engine/cleanup"
	"github.com/clockwise/leave-engine/leave"
)

// =============================================================================
// CATEGORY
// =============================================================================

type CategoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NameAlt   string `json:"name_alt,omitempty"`
	IsActive  bool   `json:"is_active"`
	DeletedAt string `json:"deleted_at,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCategoryRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NameAlt string `json:"name_alt"`
}

// =============================================================================
// QUOTA & USAGE
// =============================================================================

type CreateQuotaGrantRequest struct {
	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	CategoryID string `json:"category_id"`
	Quota      string `json:"quota"`
	Baseline   string `json:"baseline"`
}

// RecordUsageRequest folds consumption into the running-total row. Either
// explicit days/hours, or a start_time/end_time clock pair the server
// converts through the duration calculator.
type RecordUsageRequest struct {
	CategoryID string  `json:"category_id"`
	Year       int     `json:"year"`
	Days       int     `json:"days"`
	Hours      float64 `json:"hours"`
	StartTime  string  `json:"start_time,omitempty"`
	EndTime    string  `json:"end_time,omitempty"`
}

type UsageSummaryDTO struct {
	UserID       string `json:"user_id"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Year         int    `json:"year,omitempty"`
	Days         int    `json:"days"`
	Hours        string `json:"hours"`
	TotalDays    string `json:"total_days"`
}

type BalanceDTO struct {
	UserID       string `json:"user_id"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Quota        string `json:"quota"`
	Used         string `json:"used"`
	Remaining    string `json:"remaining"`
}

func toBalanceDTO(userID string, s balance.CategorySummary) BalanceDTO {
	return BalanceDTO{
		UserID:       userID,
		CategoryID:   s.CategoryID,
		CategoryName: s.CategoryName,
		Quota:        s.Quota.String(),
		Used:         s.Used.String(),
		Remaining:    s.Remaining.String(),
	}
}

// =============================================================================
// CLEANUP & MAINTENANCE
// =============================================================================

type OrphanDTO struct {
	GrantID      string `json:"grant_id"`
	PositionID   string `json:"position_id"`
	CategoryID   string `json:"category_id"`
	Quota        string `json:"quota"`
	State        string `json:"state"`
	CategoryName string `json:"category_name"`
}

func toOrphanDTO(o cleanup.OrphanedGrant) OrphanDTO {
	return OrphanDTO{
		GrantID:      o.Grant.ID,
		PositionID:   o.Grant.PositionID,
		CategoryID:   o.Grant.CategoryID,
		Quota:        o.Grant.Quota.String(),
		State:        string(o.State),
		CategoryName: o.Category.Name,
	}
}

type DeleteCheckDTO struct {
	CanDelete             bool   `json:"can_delete"`
	Reason                string `json:"reason,omitempty"`
	State                 string `json:"state"`
	ActiveObligationCount int    `json:"active_obligation_count,omitempty"`
}

type GrantCleanupDTO struct {
	Deleted           []string         `json:"deleted"`
	Failed            []FailedGrantDTO `json:"failed"`
	TotalQuotaRemoved string           `json:"total_quota_removed"`
}

type FailedGrantDTO struct {
	GrantID string `json:"grant_id"`
	Error   string `json:"error"`
}

type CategoryCleanupDTO struct {
	TotalChecked int                `json:"total_checked"`
	Deleted      []PurgeDTO         `json:"deleted"`
	CannotDelete []BlockedDTO       `json:"cannot_delete"`
	Errors       []CategoryErrorDTO `json:"errors"`
}

type PurgeDTO struct {
	CategoryID    string `json:"category_id"`
	GrantsDeleted int    `json:"grants_deleted"`
	UsageDeleted  int    `json:"usage_deleted"`
}

type BlockedDTO struct {
	CategoryID            string `json:"category_id"`
	Reason                string `json:"reason"`
	ActiveObligationCount int    `json:"active_obligation_count,omitempty"`
}

type CategoryErrorDTO struct {
	CategoryID string `json:"category_id"`
	Error      string `json:"error"`
}

type ResetQuotasRequest struct {
	Force    bool   `json:"force"`
	Strategy string `json:"strategy"`
}

type ResetQuotasResponse struct {
	Affected int    `json:"affected"`
	Strategy string `json:"strategy"`
}

// =============================================================================
// DIRECTORY & OBLIGATIONS
// =============================================================================

type CreateUserRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PositionID string `json:"position_id"`
}

type CreatePositionRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateObligationRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	CategoryID string `json:"category_id"`
	Status     string `json:"status"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toCategoryDTO(c leave.LeaveCategory) CategoryDTO {
	dto := CategoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		NameAlt:   c.NameAlt,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.Format("2006-01-02"),
	}
	if c.DeletedAt != nil {
		dto.DeletedAt = c.DeletedAt.Format("2006-01-02")
	}
	return dto
}
