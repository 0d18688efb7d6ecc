package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/memvault/memvault/pkg/api/events"
	"github.com/memvault/memvault/pkg/api/models"
	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/dedup"
	"github.com/memvault/memvault/pkg/ingest"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// KeyManager issues, lists and revokes API keys. *auth.CredentialStore
// satisfies it.
type KeyManager interface {
	CreateKey(ctx context.Context, req auth.CreateKeyRequest) (*auth.IssuedKey, error)
	ListKeys(ctx context.Context) ([]auth.KeyInfo, error)
	Revoke(ctx context.Context, id string) error
}

// AdminStore is the store surface of the admin endpoints.
type AdminStore interface {
	CreateNamespace(ctx context.Context, name string) (*memory.Namespace, error)
	ListNamespaces(ctx context.Context) ([]*memory.Namespace, error)
	NamespaceExists(ctx context.Context, name string) (bool, error)
	DeleteItems(ctx context.Context, namespace string, ids []string) (int, error)
}

// Backfiller embeds rows lacking vectors. *ingest.Backfiller satisfies it.
type Backfiller interface {
	Backfill(ctx context.Context, req ingest.BackfillRequest) (*ingest.BackfillResult, error)
}

// DedupScanner finds and removes duplicate knowledge. *dedup.Detector
// satisfies it.
type DedupScanner interface {
	Scan(ctx context.Context, namespace string, dryRun bool) (*dedup.Report, error)
}

// AdminHandler serves /admin endpoints. Every route requires the admin role;
// namespace-targeted routes also check the key's namespace grant.
type AdminHandler struct {
	gate       NamespaceChecker
	store      AdminStore
	keys       KeyManager
	backfiller Backfiller
	dedup      DedupScanner
	feed       *events.Broadcaster
	logger     logger.Logger
	validator  *validator.Validate
}

// NewAdminHandler creates an AdminHandler. feed may be nil.
func NewAdminHandler(gate NamespaceChecker, store AdminStore, keys KeyManager, backfiller Backfiller, scanner DedupScanner, feed *events.Broadcaster, log logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.Global()
	}
	if feed == nil {
		feed = events.NewBroadcaster()
	}
	return &AdminHandler{
		gate:       gate,
		store:      store,
		keys:       keys,
		backfiller: backfiller,
		dedup:      scanner,
		feed:       feed,
		logger:     log,
		validator:  validator.New(),
	}
}

// CreateNamespace handles POST /admin/namespaces
// @Summary Create a namespace
// @Description Idempotent: an existing namespace is returned unchanged.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.NamespaceCreateRequest true "Namespace"
// @Success 200 {object} models.NamespaceResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/namespaces [post]
func (h *AdminHandler) CreateNamespace(w http.ResponseWriter, r *http.Request) {
	var req models.NamespaceCreateRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || name == memory.WildcardNamespace {
		writeError(w, r, fmt.Errorf("%w: namespace name must be non-empty and not %q", memory.ErrValidation, memory.WildcardNamespace))
		return
	}

	ns, err := h.store.CreateNamespace(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "namespace ensured", "namespace", ns.Name)
	response.JSON(w, http.StatusOK, models.NamespaceResponse{Name: ns.Name, CreatedAt: ns.CreatedAt})
}

// ListNamespaces handles GET /admin/namespaces
// @Summary List namespaces
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.NamespaceListResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/namespaces [get]
func (h *AdminHandler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListNamespaces(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := models.NamespaceListResponse{Namespaces: make([]models.NamespaceResponse, 0, len(list))}
	for _, ns := range list {
		resp.Namespaces = append(resp.Namespaces, models.NamespaceResponse{Name: ns.Name, CreatedAt: ns.CreatedAt})
	}
	response.JSON(w, http.StatusOK, resp)
}

// CreateAPIKey handles POST /admin/api-keys
// @Summary Issue an API key
// @Description The plaintext key is returned once and never stored.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.APIKeyCreateRequest true "Key definition"
// @Success 201 {object} models.APIKeyResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/api-keys [post]
func (h *AdminHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req models.APIKeyCreateRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	namespaces := req.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{memory.DefaultNamespace}
	}

	issued, err := h.keys.CreateKey(r.Context(), auth.CreateKeyRequest{
		Name:       req.Name,
		Role:       req.Role,
		Namespaces: namespaces,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := issued.Credential
	h.feed.KeyCreated(c.ID, c.Name, string(c.Role), c.Namespaces)
	resp := keyResponse(c)
	resp.APIKey = issued.Secret
	response.JSON(w, http.StatusCreated, resp)
}

// ListAPIKeys handles GET /admin/api-keys
// @Summary List API keys
// @Description Keys are listed newest first with a masked hash preview.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.APIKeyResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/api-keys [get]
func (h *AdminHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]models.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		resp := keyResponse(k.Credential)
		resp.KeyPreview = k.KeyPreview
		out = append(out, resp)
	}
	response.JSON(w, http.StatusOK, out)
}

// RevokeAPIKey handles POST /admin/api-keys/{id}/revoke
// @Summary Revoke an API key
// @Description Deactivates the key. Cached resolutions are dropped immediately.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Key ID"
// @Success 200 {object} models.RevokeResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/api-keys/{id}/revoke [post]
func (h *AdminHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.keys.Revoke(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.feed.KeyRevoked(id)
	response.JSON(w, http.StatusOK, models.RevokeResponse{ID: id, Active: false})
}

// BackfillEmbeddings handles POST /admin/backfill-embeddings
// @Summary Backfill embeddings
// @Description Embeds rows of one scope that lack a vector, in batches. Re-running is idempotent. dry_run counts without calling the provider.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.BackfillRequest true "Backfill parameters"
// @Success 200 {object} ingest.BackfillResult
// @Failure 400 {object} response.ErrorResponse "Validation failed or embedding provider is none"
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /admin/backfill-embeddings [post]
func (h *AdminHandler) BackfillEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req models.BackfillRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}
	scope, err := memory.ParseScope(req.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.backfiller.Backfill(r.Context(), ingest.BackfillRequest{
		Namespace: req.Namespace,
		Scope:     scope,
		Limit:     req.Limit,
		BatchSize: req.BatchSize,
		DryRun:    req.DryRun,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.DryRun {
		h.feed.Backfilled(res)
	}
	response.JSON(w, http.StatusOK, res)
}

// Dedup handles POST /admin/dedup
// @Summary Remove duplicate knowledge
// @Description Groups knowledge items with identical normalized content or near-identical vectors and keeps the oldest of each group. dry_run reports without deleting.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.DedupRequest true "Dedup parameters"
// @Success 200 {object} dedup.Report
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/dedup [post]
func (h *AdminHandler) Dedup(w http.ResponseWriter, r *http.Request) {
	var req models.DedupRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.requireNamespace(r.Context(), req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.dedup.Scan(r.Context(), req.Namespace, req.DryRun)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.feed.DedupScanned(report)
	response.JSON(w, http.StatusOK, report)
}

// DeleteItems handles POST /admin/delete-items
// @Summary Delete items by id
// @Description Removes up to 100 ids from knowledge items, requirements and events of one namespace in a single transaction. Unknown ids are ignored.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.DeleteItemsRequest true "Items to delete"
// @Success 200 {object} models.DeleteItemsResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /admin/delete-items [post]
func (h *AdminHandler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteItemsRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Namespace = namespaceOrDefault(req.Namespace)
	if err := authorizeNamespace(h.gate, r, req.Namespace); err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := h.store.DeleteItems(r.Context(), req.Namespace, req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "items deleted", "namespace", req.Namespace, "requested", len(req.IDs), "deleted", deleted)
	h.feed.ItemsDeleted(req.Namespace, deleted)
	response.JSON(w, http.StatusOK, models.DeleteItemsResponse{Namespace: req.Namespace, Deleted: deleted})
}

func (h *AdminHandler) requireNamespace(ctx context.Context, namespace string) error {
	ok, err := h.store.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.NotFoundError{EntityType: "namespace", ID: namespace}
	}
	return nil
}

func keyResponse(c *memory.Credential) models.APIKeyResponse {
	return models.APIKeyResponse{
		ID:         c.ID,
		Name:       c.Name,
		Role:       string(c.Role),
		Namespaces: c.Namespaces,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt,
	}
}
