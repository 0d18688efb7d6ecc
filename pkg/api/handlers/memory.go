package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/memvault/memvault/pkg/api/models"
	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/compaction"
	"github.com/memvault/memvault/pkg/ingest"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/recall"
	"github.com/memvault/memvault/pkg/storage"
)

// Query limits.
const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
)

// Recaller serves semantic recall. *recall.Engine satisfies it.
type Recaller interface {
	Recall(ctx context.Context, req recall.Request) (*recall.Result, error)
}

// Ingester writes ingest batches. *ingest.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req *ingest.Request) (*ingest.Result, error)
}

// SessionCompactor compacts one session. *compaction.Compactor satisfies it.
type SessionCompactor interface {
	SummarizeSession(ctx context.Context, req compaction.SessionRequest) (*compaction.Result, error)
}

// Searcher serves keyword queries.
type Searcher interface {
	storage.EntityResolver
	NamespaceExists(ctx context.Context, name string) (bool, error)
	Query(ctx context.Context, filter storage.QueryFilter) ([]storage.QueryRecord, error)
}

// MemoryConfig holds the settings the memory handlers echo or enforce.
type MemoryConfig struct {
	MaxSnippetChars   int
	DefaultTopK       int
	EmbeddingProvider string
	ChunkMaxChars     int
	APIKeyHeader      string
	BaseURL           string
}

// MemoryHandler serves the agent-facing memory endpoints.
type MemoryHandler struct {
	gate      NamespaceChecker
	search    Searcher
	recall    Recaller
	ingest    Ingester
	compactor SessionCompactor
	cfg       MemoryConfig
	logger    logger.Logger
	validator *validator.Validate
}

// NewMemoryHandler creates a MemoryHandler.
func NewMemoryHandler(gate NamespaceChecker, search Searcher, rec Recaller, ing Ingester, comp SessionCompactor, cfg MemoryConfig, log logger.Logger) *MemoryHandler {
	if cfg.MaxSnippetChars <= 0 {
		cfg.MaxSnippetChars = 900
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if log == nil {
		log = logger.Global()
	}
	return &MemoryHandler{
		gate:      gate,
		search:    search,
		recall:    rec,
		ingest:    ing,
		compactor: comp,
		cfg:       cfg,
		logger:    log,
		validator: validator.New(),
	}
}

// Query handles GET /query
// @Summary Keyword query
// @Description Case-insensitive substring match over entities, requirements, knowledge items and events, newest first. Archived events are excluded unless include_archived is set.
// @Tags memory
// @Produce json
// @Security ApiKeyAuth
// @Param namespace query string false "Namespace" default(default)
// @Param q query string false "Text to match"
// @Param limit query int false "Maximum results, clamped to 1..100" default(20)
// @Param project_slug query string false "Project entity slug"
// @Param entity_slug query string false "Entity slug"
// @Param include_archived query bool false "Include archived events"
// @Success 200 {object} models.QueryResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Unknown namespace or slug"
// @Router /query [get]
func (h *MemoryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	namespace := namespaceOrDefault(q.Get("namespace"))

	if err := authorizeNamespace(h.gate, r, namespace); err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeArchived := false
	if raw := q.Get("include_archived"); raw != "" {
		if includeArchived, err = strconv.ParseBool(raw); err != nil {
			writeError(w, r, fmt.Errorf("%w: include_archived must be a boolean", memory.ErrValidation))
			return
		}
	}

	if err := h.requireNamespace(ctx, namespace); err != nil {
		writeError(w, r, err)
		return
	}

	filter := storage.QueryFilter{
		Namespace:       namespace,
		Text:            strings.TrimSpace(q.Get("q")),
		IncludeArchived: includeArchived,
		Limit:           limit,
	}
	if slug := q.Get("project_slug"); slug != "" {
		if filter.ProjectID, err = h.search.EntityIDBySlug(ctx, namespace, slug); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if slug := q.Get("entity_slug"); slug != "" {
		if filter.EntityID, err = h.search.EntityIDBySlug(ctx, namespace, slug); err != nil {
			writeError(w, r, err)
			return
		}
	}

	records, err := h.search.Query(ctx, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range records {
		records[i].Snippet = memory.Clip(records[i].Snippet, h.cfg.MaxSnippetChars)
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	if records == nil {
		records = []storage.QueryRecord{}
	}

	response.JSON(w, http.StatusOK, models.QueryResponse{
		Namespace: namespace,
		Total:     len(records),
		Results:   records,
	})
}

// parseLimit applies the default and clamps to 1..MaxQueryLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultQueryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", memory.ErrValidation)
	}
	return min(max(n, 1), MaxQueryLimit), nil
}

func (h *MemoryHandler) requireNamespace(ctx context.Context, namespace string) error {
	ok, err := h.search.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.NotFoundError{EntityType: "namespace", ID: namespace}
	}
	return nil
}

// Recall handles POST /recall
// @Summary Semantic recall
// @Description Nearest-neighbour search in one scope, optionally reranked. Score is the cosine distance (lower is closer); reranker_score is set when reranking ran.
// @Tags memory
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.RecallRequest true "Recall request"
// @Success 200 {object} recall.Result
// @Failure 400 {object} response.ErrorResponse "Validation failed or no query vector available"
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse "Embedding provider failed"
// @Router /recall [post]
func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	var req models.RecallRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.recall.Recall(r.Context(), recall.Request{
		Namespace:       req.Namespace,
		Scope:           memory.Scope(req.Scope),
		QueryText:       req.QueryText,
		QueryEmbedding:  req.QueryEmbedding,
		TopK:            req.TopK,
		ProjectSlug:     req.ProjectSlug,
		EntitySlug:      req.EntitySlug,
		IncludeArchived: req.IncludeArchived,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// Ingest handles POST /ingest
// @Summary Ingest memory
// @Description Writes entities, requirements, knowledge items and events in one transaction. Long knowledge content is chunked; rows are embedded unless the provider mode is none. Any validation failure rejects the whole batch.
// @Tags memory
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ingest.Request true "Ingest batch"
// @Success 200 {object} ingest.Result
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Unknown namespace or slug"
// @Failure 413 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse "Embedding provider failed"
// @Router /ingest [post]
func (h *MemoryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := decodeJSON(r, nil, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.ingest.Ingest(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// SummarizeClear handles POST /summarize_clear
// @Summary Compact a session
// @Description Summarizes the oldest unarchived events of a session into a knowledge item tagged summary and compaction, then archives those events atomically.
// @Tags memory
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.SummarizeClearRequest true "Session to compact"
// @Success 200 {object} compaction.Result
// @Failure 400 {object} response.ErrorResponse "Validation failed or no summarizer configured"
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "No unarchived events for the session"
// @Failure 409 {object} response.ErrorResponse "Session compacted concurrently"
// @Failure 502 {object} response.ErrorResponse "Summarizer failed"
// @Router /summarize_clear [post]
func (h *MemoryHandler) SummarizeClear(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeClearRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.compactor.SummarizeSession(r.Context(), compaction.SessionRequest{
		Namespace:   req.Namespace,
		SessionID:   req.SessionID,
		ProjectSlug: req.ProjectSlug,
		MaxEvents:   req.MaxEvents,
	})
	if err != nil {
		if !errors.Is(err, memory.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "summarize_clear failed",
				"namespace", req.Namespace, "session_id", req.SessionID, "error", err)
		}
		writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// Onboarding handles GET /onboarding
// @Summary Usage guide
// @Description Plaintext guide for agents, including the role and namespaces of the calling key.
// @Tags memory
// @Produce plain
// @Security ApiKeyAuth
// @Success 200 {string} string
// @Failure 401 {object} response.ErrorResponse
// @Router /onboarding [get]
func (h *MemoryHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, fmt.Errorf("%w: invalid or missing API key", memory.ErrUnauthenticated))
		return
	}
	response.Text(w, http.StatusOK, onboardingText(p, h.cfg))
}

func onboardingText(p *auth.Principal, cfg MemoryConfig) string {
	namespaces := "(none)"
	if len(p.Namespaces) > 0 {
		namespaces = strings.Join(p.Namespaces, ", ")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://<memvault-host>:8088"
	}
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = "none"
	}

	lines := []string{
		"memvault onboarding",
		"",
		"Purpose:",
		"- memvault is shared long-term memory for agents.",
		"- Retrieve only the few relevant facts and events for a task, then write back durable memory.",
		"",
		"Your key:",
		"- role: " + string(p.Role),
		"- namespaces: " + namespaces,
		"- This page cannot issue keys. Ask an admin (POST /admin/api-keys).",
		"",
		"Connection:",
		"- BASE_URL: " + baseURL,
		"- Header: " + cfg.APIKeyHeader + ": <your-key>",
		"",
		"Rules:",
		"- Set namespace on every request. Omitted means 'default'.",
		"- Requests for namespaces outside your key fail with 403, never with empty results.",
		"- Keep memory atomic and tagged. Do not store whole transcripts.",
		"",
		"Loop:",
		"1) Start: GET /query and POST /recall in the relevant namespaces.",
		"2) During: POST /ingest events for decisions, directives and results; knowledge_items for durable facts.",
		"3) End: POST /summarize_clear with your session_id to fold events into a summary.",
		"",
		"Endpoints:",
		"- GET  /health (no key)",
		"- GET  /query (reader)",
		"- POST /recall (reader)",
		"- POST /ingest (writer)",
		"- POST /summarize_clear (writer)",
		"- /admin/* (admin)",
		"",
		"Recall:",
		"- embedding provider: " + provider + ". With 'none', send query_embedding.",
		fmt.Sprintf("- default top_k: %d. Keep it small.", cfg.DefaultTopK),
		"- score is a distance: lower is closer.",
		"",
		"Ingest:",
		fmt.Sprintf("- knowledge content is split server-side into chunks of at most %d chars.", cfg.ChunkMaxChars),
		"- an embedding sent with a record is stored as is.",
		"",
		"Docs: GET /swagger/index.html",
		"",
	}
	return strings.Join(lines, "\n")
}
