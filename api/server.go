/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/categories/*    Category lifecycle (create, list, soft-delete)
  /api/users/*         Balance reads and usage recording
  /api/quota-grants    Grant creation
  /api/obligations     Leave request seeding
  /api/admin/*         Orphan report, cleanup sweeps, purge, quota reset

SECURITY NOTE:
  No authentication middleware. All endpoints are public; authorization
  is out of scope for this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Category lifecycle
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.SoftDeleteCategory)
		})

		// Balance reads + usage writes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/usage/{categoryId}", h.GetUsage)
			r.Post("/{id}/usage", h.RecordUsage)
		})

		r.Post("/positions", h.CreatePosition)
		r.Post("/quota-grants", h.CreateQuotaGrant)
		r.Post("/obligations", h.CreateObligation)

		// Admin: cleanup, purge, reset
		r.Route("/admin", func(r chi.Router) {
			r.Get("/orphans", h.ListOrphans)
			r.Get("/categories/{id}/purge-check", h.CheckPurge)
			r.Post("/categories/{id}/purge", h.PurgeCategory)
			r.Post("/cleanup/categories", h.CleanupCategories)
			r.Post("/cleanup/grants", h.CleanupGrants)
			r.Post("/quota/reset", h.ResetQuotas)
		})
	})

	return r
}
