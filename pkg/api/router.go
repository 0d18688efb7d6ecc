// Package api wires the memvault HTTP surface: router, middleware chain and
// server lifecycle.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/api/handlers"
	"github.com/memvault/memvault/pkg/api/middleware"
	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"

	_ "github.com/memvault/memvault/docs/swagger" // Import generated docs
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Health serves the public liveness probe.
	Health *handlers.HealthHandler

	// Memory serves query, recall, ingest, compaction and onboarding.
	Memory *handlers.MemoryHandler

	// Admin serves namespace, key and maintenance endpoints.
	Admin *handlers.AdminHandler

	// Feed is the admin websocket event stream. Optional.
	Feed http.Handler

	// Gate authenticates API keys.
	Gate middleware.RoleAuthorizer

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}
	r.Use(middleware.CORS(&cfg.Server.CORS))

	r.NotFound(statusHandler(http.StatusNotFound))
	r.MethodNotAllowed(statusHandler(http.StatusMethodNotAllowed))

	RegisterRoutes(r, cfg, h)
	return r
}

func statusHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Status(w, status, middleware.GetRequestID(r.Context()))
	}
}

// RegisterRoutes registers all API routes. Authenticated routes require the
// role named in their group; namespace grants are checked by the handlers.
func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handlers) {
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
	}
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	header := cfg.Auth.Header
	requireRole := func(role memory.Role) func(http.Handler) http.Handler {
		return middleware.RequireRole(h.Gate, header, role)
	}

	// Bounded request/response routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.Server.HTTP.MaxBodyBytes))
		r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

		if h.Memory != nil {
			r.Group(func(r chi.Router) {
				r.Use(requireRole(memory.RoleReader))
				r.Get("/onboarding", h.Memory.Onboarding)
				r.Get("/query", h.Memory.Query)
				r.Post("/recall", h.Memory.Recall)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(memory.RoleWriter))
				r.Post("/ingest", h.Memory.Ingest)
				r.Post("/summarize_clear", h.Memory.SummarizeClear)
			})
		}

		if h.Admin != nil {
			r.Group(func(r chi.Router) {
				r.Use(requireRole(memory.RoleAdmin))
				r.Post("/admin/namespaces", h.Admin.CreateNamespace)
				r.Get("/admin/namespaces", h.Admin.ListNamespaces)
				r.Post("/admin/api-keys", h.Admin.CreateAPIKey)
				r.Get("/admin/api-keys", h.Admin.ListAPIKeys)
				r.Post("/admin/api-keys/{id}/revoke", h.Admin.RevokeAPIKey)
				r.Post("/admin/backfill-embeddings", h.Admin.BackfillEmbeddings)
				r.Post("/admin/dedup", h.Admin.Dedup)
				r.Post("/admin/delete-items", h.Admin.DeleteItems)
			})
		}
	})

	// The event stream is long-lived and must not sit behind the timeout.
	if h.Feed != nil {
		r.With(requireRole(memory.RoleAdmin)).Get("/admin/events", h.Feed.ServeHTTP)
	}
}
