package handlers

import (
	"context"
	"net/http"

	"github.com/memvault/memvault/pkg/api/models"
	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/version"
)

// StatsSource reports store health and row counts.
type StatsSource interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*storage.Stats, error)
}

// HealthHandler serves /health.
type HealthHandler struct {
	store      StatsSource
	providers  func() map[string]provider.SlotStatus
	compaction bool
	logger     logger.Logger
}

// NewHealthHandler creates a health handler. providers may be nil.
func NewHealthHandler(store StatsSource, providers func() map[string]provider.SlotStatus, compactionEnabled bool, log logger.Logger) *HealthHandler {
	if log == nil {
		log = logger.Global()
	}
	return &HealthHandler{store: store, providers: providers, compaction: compactionEnabled, logger: log}
}

// Health handles GET /health
// @Summary Service health
// @Description Reports provider modes and availability, the compaction flag and store row counts. No API key required.
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse "Store unreachable"
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := models.HealthResponse{
		Status:            "ok",
		Version:           version.Version,
		Providers:         map[string]models.ProviderStatus{},
		CompactionEnabled: h.compaction,
	}
	if h.providers != nil {
		for slot, st := range h.providers() {
			resp.Providers[slot] = models.ProviderStatus{Mode: st.Mode, Model: st.Model, Available: st.Available}
		}
	}

	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check: store unreachable", "error", err)
		resp.Status = "degraded"
		response.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "health check: stats failed", "error", err)
	} else {
		resp.Store = stats
	}
	response.JSON(w, status, resp)
}
