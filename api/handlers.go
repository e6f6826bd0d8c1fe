/*
handlers.go - HTTP handlers for the leave engine

PURPOSE:
  Thin translation layer: parse/validate input, call the engine (balance
  aggregator, orphan detector, cleanup executor, store), serialize the
  result. No business logic lives here.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Erasure blocked by active obligations
  - 500: Internal errors
  A blocked category purge is an expected outcome (409 with the check
  shape), not a server error.

SECURITY NOTE:
  No authentication middleware. Authorization policy is out of scope for
  this service; front it with a gateway in production.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clockwise/leave-engine/balance"
	"github.com/clockwise/leave-engine/cleanup"
	"github.com/clockwise/leave-engine/duration"
	"github.com/clockwise/leave-engine/leave"
	"github.com/clockwise/leave-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      store.Store
	Aggregator *balance.Aggregator
	Detector   *cleanup.Detector
	Executor   *cleanup.Executor
	Duration   duration.Config
}

// NewHandler wires the engine components over one store.
func NewHandler(s store.Store, cfg duration.Config) *Handler {
	return &Handler{
		Store:      s,
		Aggregator: balance.NewAggregator(s, cfg.WorkingHoursPerDay),
		Detector:   cleanup.NewDetector(s),
		Executor:   cleanup.NewExecutor(s),
		Duration:   cfg,
	}
}

// =============================================================================
// CATEGORY ENDPOINTS
// =============================================================================

// ListCategories returns all categories, retired ones included.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a new active category.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	cat := leave.LeaveCategory{
		ID:       req.ID,
		Name:     req.Name,
		NameAlt:  req.NameAlt,
		IsActive: true,
	}
	if err := h.Store.CreateCategory(r.Context(), cat); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(cat))
}

// SoftDeleteCategory retires a category (sets deleted_at, clears is_active).
// DELETE /api/categories/{id}
func (h *Handler) SoftDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.SoftDeleteCategory(r.Context(), id, time.Now())
	if errors.Is(err, leave.ErrCategoryNotFound) {
		writeError(w, http.StatusNotFound, "Category not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retire category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetSummary returns the per-category balance report for a user.
// GET /api/users/{id}/summary?year=2026
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	year := queryYear(r)

	summaries, err := h.Aggregator.SummaryForUser(r.Context(), userID, year)
	if errors.Is(err, leave.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if errors.Is(err, leave.ErrPositionNotResolved) {
		writeError(w, http.StatusBadRequest, "User has no resolvable position", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}

	dtos := make([]BalanceDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, toBalanceDTO(userID, s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUsage returns the running-total consumption for one category.
// GET /api/users/{id}/usage/{categoryId}?year=2026
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	categoryID := chi.URLParam(r, "categoryId")

	summary, err := h.Aggregator.UsageFor(r.Context(), userID, categoryID, queryYear(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get usage", err)
		return
	}

	writeJSON(w, http.StatusOK, UsageSummaryDTO{
		UserID:       summary.UserID,
		CategoryID:   summary.CategoryID,
		CategoryName: summary.CategoryName,
		Year:         summary.Year,
		Days:         summary.Days,
		Hours:        summary.Hours.String(),
		TotalDays:    summary.TotalDays.String(),
	})
}

// RecordUsage folds approved consumption into the running-total row.
// POST /api/users/{id}/usage
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required", nil)
		return
	}

	days, hours := req.Days, req.Hours
	if req.StartTime != "" && req.EndTime != "" {
		// Clock-pair requests are converted server-side; a negative span
		// means end before start and is rejected here, not clamped.
		span := duration.Hours(req.StartTime, req.EndTime)
		if span <= 0 {
			writeError(w, http.StatusBadRequest, "end_time must be after start_time", nil)
			return
		}
		if !h.Duration.WithinBusinessHours(req.StartTime) || !h.Duration.WithinBusinessHours(req.EndTime) {
			writeError(w, http.StatusBadRequest, "times must fall within business hours", nil)
			return
		}
		split := h.Duration.DayHourSplit(span / float64(h.Duration.WorkingHoursPerDay))
		if split.Hours == h.Duration.WorkingHoursPerDay {
			split.Days++
			split.Hours = 0
		}
		days, hours = split.Days, float64(split.Hours)
	}

	if days < 0 || hours < 0 || hours >= float64(h.Duration.WorkingHoursPerDay) {
		writeError(w, http.StatusBadRequest, "days must be >= 0 and hours within one work day", nil)
		return
	}

	year := req.Year
	if year == 0 {
		year = time.Now().Year()
	}

	err := h.Store.AddUsage(r.Context(), userID, req.CategoryID, year, days, hours, h.Duration.WorkingHoursPerDay)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record usage", err)
		return
	}

	summary, err := h.Aggregator.UsageFor(r.Context(), userID, req.CategoryID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read usage back", err)
		return
	}
	writeJSON(w, http.StatusOK, UsageSummaryDTO{
		UserID:       summary.UserID,
		CategoryID:   summary.CategoryID,
		CategoryName: summary.CategoryName,
		Year:         summary.Year,
		Days:         summary.Days,
		Hours:        summary.Hours.String(),
		TotalDays:    summary.TotalDays.String(),
	})
}

// =============================================================================
// QUOTA ENDPOINTS
// =============================================================================

// CreateQuotaGrant creates an entitlement for a (position, category) pair.
// POST /api/quota-grants
func (h *Handler) CreateQuotaGrant(w http.ResponseWriter, r *http.Request) {
	var req CreateQuotaGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PositionID == "" || req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "position_id and category_id are required", nil)
		return
	}

	quota, err := decimal.NewFromString(req.Quota)
	if err != nil || quota.IsNegative() {
		writeError(w, http.StatusBadRequest, "quota must be a non-negative number", err)
		return
	}
	baseline := decimal.Zero
	if req.Baseline != "" {
		baseline, err = decimal.NewFromString(req.Baseline)
		if err != nil || baseline.IsNegative() {
			writeError(w, http.StatusBadRequest, "baseline must be a non-negative number", err)
			return
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	g := leave.QuotaGrant{
		ID:         req.ID,
		PositionID: req.PositionID,
		CategoryID: req.CategoryID,
		Quota:      quota,
		Baseline:   baseline,
	}
	if err := h.Store.CreateQuotaGrant(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create quota grant", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": g.ID})
}

// ResetQuotas applies the annual quota reset. The "zero" strategy touches
// only grants whose new-year baseline is zero unless force is set.
// POST /api/admin/quota/reset
func (h *Handler) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	var req ResetQuotasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Strategy == "" {
		req.Strategy = "zero"
	}
	if req.Strategy != "zero" {
		writeError(w, http.StatusBadRequest, "unsupported reset strategy", nil)
		return
	}

	affected, err := h.Store.ResetQuotas(r.Context(), req.Force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset quotas", err)
		return
	}
	writeJSON(w, http.StatusOK, ResetQuotasResponse{Affected: affected, Strategy: req.Strategy})
}

// =============================================================================
// CLEANUP / ADMIN ENDPOINTS
// =============================================================================

// ListOrphans returns the read-only orphaned-grant report.
// GET /api/admin/orphans
func (h *Handler) ListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.Detector.FindOrphanedQuotaGrants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to detect orphans", err)
		return
	}

	dtos := make([]OrphanDTO, 0, len(orphans))
	for _, o := range orphans {
		dtos = append(dtos, toOrphanDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CheckPurge runs the erasure safety predicate without deleting anything.
// GET /api/admin/categories/{id}/purge-check
func (h *Handler) CheckPurge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	check, err := h.Detector.CanPermanentlyDelete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run purge check", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteCheckDTO{
		CanDelete:             check.CanDelete,
		Reason:                check.Reason,
		State:                 string(check.State),
		ActiveObligationCount: check.ActiveObligationCount,
	})
}

// PurgeCategory permanently erases a soft-deleted category and everything
// referencing it, atomically.
// POST /api/admin/categories/{id}/purge
func (h *Handler) PurgeCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.Executor.PermanentlyDeleteCategory(r.Context(), id)
	var blocked *leave.PurgeBlockedError
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, BlockedDTO{
			CategoryID:            id,
			Reason:                blocked.Error(),
			ActiveObligationCount: blocked.ActiveCount,
		})
		return
	case errors.Is(err, leave.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, "Category not found", nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to purge category", err)
		return
	}

	writeJSON(w, http.StatusOK, PurgeDTO{
		CategoryID:    details.CategoryID,
		GrantsDeleted: details.GrantsDeleted,
		UsageDeleted:  details.UsageDeleted,
	})
}

// CleanupCategories runs the scheduled category sweep on demand.
// POST /api/admin/cleanup/categories
func (h *Handler) CleanupCategories(w http.ResponseWriter, r *http.Request) {
	result, err := h.Executor.AutoCleanupOrphanedCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Category cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryCleanupDTO(result))
}

// CleanupGrants runs the orphaned-grant sweep on demand.
// POST /api/admin/cleanup/grants
func (h *Handler) CleanupGrants(w http.ResponseWriter, r *http.Request) {
	result, err := h.Executor.AutoCleanupOrphanedQuotaGrants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Grant cleanup failed", err)
		return
	}

	dto := GrantCleanupDTO{
		Deleted:           make([]string, 0, len(result.Deleted)),
		Failed:            make([]FailedGrantDTO, 0, len(result.Failed)),
		TotalQuotaRemoved: result.TotalQuotaRemoved.String(),
	}
	for _, g := range result.Deleted {
		dto.Deleted = append(dto.Deleted, g.ID)
	}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, FailedGrantDTO{GrantID: f.GrantID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, dto)
}

func toCategoryCleanupDTO(result cleanup.CategoryCleanupResult) CategoryCleanupDTO {
	dto := CategoryCleanupDTO{
		TotalChecked: result.TotalChecked,
		Deleted:      make([]PurgeDTO, 0, len(result.Deleted)),
		CannotDelete: make([]BlockedDTO, 0, len(result.CannotDelete)),
		Errors:       make([]CategoryErrorDTO, 0, len(result.Errors)),
	}
	for _, d := range result.Deleted {
		dto.Deleted = append(dto.Deleted, PurgeDTO{
			CategoryID:    d.CategoryID,
			GrantsDeleted: d.GrantsDeleted,
			UsageDeleted:  d.UsageDeleted,
		})
	}
	for _, b := range result.CannotDelete {
		dto.CannotDelete = append(dto.CannotDelete, BlockedDTO{
			CategoryID:            b.CategoryID,
			Reason:                b.Reason,
			ActiveObligationCount: b.ActiveObligationCount,
		})
	}
	for _, e := range result.Errors {
		dto.Errors = append(dto.Errors, CategoryErrorDTO{CategoryID: e.CategoryID, Error: e.Err.Error()})
	}
	return dto
}

// =============================================================================
// DIRECTORY & OBLIGATION ENDPOINTS
// =============================================================================

// CreateUser registers a user with an optional position link.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err := h.Store.CreateUser(r.Context(), leave.User{ID: req.ID, Name: req.Name, PositionID: req.PositionID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// CreatePosition registers a position.
// POST /api/positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req CreatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := h.Store.CreatePosition(r.Context(), leave.Position{ID: req.ID, Name: req.Name}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create position", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// CreateObligation records a leave request in some lifecycle status.
// POST /api/obligations
func (h *Handler) CreateObligation(w http.ResponseWriter, r *http.Request) {
	var req CreateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status := leave.ObligationStatus(req.Status)
	switch status {
	case leave.StatusPending, leave.StatusApproved, leave.StatusInProgress,
		leave.StatusRejected, leave.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", nil)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", nil)
		return
	}
	o := leave.Obligation{
		ID:         req.ID,
		UserID:     req.UserID,
		CategoryID: req.CategoryID,
		Status:     status,
		StartDate:  start,
		EndDate:    end,
	}
	if err := h.Store.CreateObligation(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create obligation", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// =============================================================================
// HELPERS
// =============================================================================

// queryYear defaults an omitted ?year= to the current year, matching the
// default RecordUsage writes under, so a no-year read finds the row a
// no-year write just created.
func queryYear(r *http.Request) int {
	if raw := r.URL.Query().Get("year"); raw != "" {
		if y, err := strconv.Atoi(raw); err == nil {
			return y
		}
	}
	return time.Now().Year()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
