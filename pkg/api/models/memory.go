// Package models defines API request/response data structures.
package models

import (
	"time"

	"github.com/memvault/memvault/pkg/compaction"
	"github.com/memvault/memvault/pkg/recall"
	"github.com/memvault/memvault/pkg/storage"
)

// HealthResponse is the /health payload.
type HealthResponse struct {
	// Status is "ok" or "degraded" when the store is unreachable.
	Status string `json:"status" example:"ok"`

	// Version is the build version.
	Version string `json:"version" example:"v0.3.0"`

	// Providers lists each provider slot with its mode and availability.
	Providers map[string]ProviderStatus `json:"providers"`

	// CompactionEnabled reports whether the background compactor runs.
	CompactionEnabled bool `json:"compaction_enabled"`

	// Store holds row counts; absent when the store is unreachable.
	Store *storage.Stats `json:"store,omitempty"`
}

// ProviderStatus describes one provider slot.
type ProviderStatus struct {
	Mode      string `json:"mode" example:"openai"`
	Model     string `json:"model,omitempty" example:"text-embedding-3-small"`
	Available bool   `json:"available"`
}

// QueryResponse is the /query payload.
type QueryResponse struct {
	Namespace string                `json:"namespace" example:"default"`
	Total     int                   `json:"total" example:"2"`
	Results   []storage.QueryRecord `json:"results"`
}

// RecallRequest is the /recall body.
type RecallRequest struct {
	// Namespace defaults to "default".
	Namespace string `json:"namespace,omitempty" validate:"omitempty,max=200" example:"default"`

	// Scope is knowledge, requirements or events. Defaults to knowledge.
	Scope string `json:"scope,omitempty" validate:"omitempty,oneof=knowledge requirements events" example:"knowledge"`

	// QueryText is embedded by the server when QueryEmbedding is absent.
	QueryText string `json:"query_text,omitempty" example:"how do we rotate credentials"`

	// QueryEmbedding must match the configured dimension.
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`

	// TopK is clamped to 1..50.
	TopK int `json:"top_k,omitempty" example:"5"`

	ProjectSlug     string `json:"project_slug,omitempty" example:"memvault"`
	EntitySlug      string `json:"entity_slug,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
}

// RecallResponse is the /recall payload.
type RecallResponse = recall.Result

// SummarizeClearRequest is the /summarize_clear body.
type SummarizeClearRequest struct {
	Namespace   string `json:"namespace,omitempty" validate:"omitempty,max=200" example:"default"`
	SessionID   string `json:"session_id" validate:"required" example:"sess-2026-10-16"`
	ProjectSlug string `json:"project_slug,omitempty" example:"memvault"`

	// MaxEvents bounds how many of the oldest events are folded, 1..2000.
	MaxEvents int `json:"max_events,omitempty" validate:"omitempty,min=1,max=2000" example:"500"`
}

// SummarizeClearResponse is the /summarize_clear payload.
type SummarizeClearResponse = compaction.Result

// NamespaceCreateRequest is the POST /admin/namespaces body.
type NamespaceCreateRequest struct {
	Name string `json:"name" validate:"required,max=200" example:"team-alpha"`
}

// NamespaceListResponse is the GET /admin/namespaces payload.
type NamespaceListResponse struct {
	Namespaces []NamespaceResponse `json:"namespaces"`
}

// NamespaceResponse describes one namespace.
type NamespaceResponse struct {
	Name      string    `json:"name" example:"team-alpha"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKeyCreateRequest is the POST /admin/api-keys body.
type APIKeyCreateRequest struct {
	Name string `json:"name" validate:"required,max=200" example:"ci-agent"`
	Role string `json:"role" validate:"required,oneof=reader writer admin" example:"writer"`

	// Namespaces defaults to ["default"]. "*" grants every namespace.
	Namespaces []string `json:"namespaces,omitempty" example:"default"`
}

// APIKeyResponse describes a key. APIKey is only set on creation and
// KeyPreview only on listing.
type APIKeyResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" example:"ci-agent"`
	Role       string    `json:"role" example:"writer"`
	Namespaces []string  `json:"namespaces"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	APIKey     string    `json:"api_key,omitempty"`
	KeyPreview string    `json:"key_preview,omitempty" example:"bcrypt:$2a$12$abcdE..."`
}

// BackfillRequest is the POST /admin/backfill-embeddings body.
type BackfillRequest struct {
	Namespace string `json:"namespace,omitempty" validate:"omitempty,max=200" example:"default"`
	Scope     string `json:"scope,omitempty" validate:"omitempty,oneof=knowledge requirements events" example:"knowledge"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50000" example:"500"`
	BatchSize int    `json:"batch_size,omitempty" validate:"omitempty,min=1,max=500" example:"50"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// DedupRequest is the POST /admin/dedup body.
type DedupRequest struct {
	Namespace string `json:"namespace,omitempty" validate:"omitempty,max=200" example:"default"`
	DryRun    bool   `json:"dry_run"`
}

// DeleteItemsRequest is the POST /admin/delete-items body.
type DeleteItemsRequest struct {
	Namespace string   `json:"namespace,omitempty" validate:"omitempty,max=200" example:"default"`
	IDs       []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
}

// DeleteItemsResponse is the POST /admin/delete-items payload.
type DeleteItemsResponse struct {
	Namespace string `json:"namespace" example:"default"`
	Deleted   int    `json:"deleted" example:"3"`
}

// RevokeResponse is the POST /admin/api-keys/{id}/revoke payload.
type RevokeResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"is_active"`
}
