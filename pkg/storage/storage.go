// Package storage defines the persistence contracts memvault components depend on.
// The relational implementation lives in storage/sqlite; embedding caches live in
// storage/badger and storage/memory.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/memvault/memvault/pkg/memory"
)

// NamespaceStore manages tenancy namespaces.
type NamespaceStore interface {
	// CreateNamespace is idempotent: an existing namespace is returned as is.
	CreateNamespace(ctx context.Context, name string) (*memory.Namespace, error)
	ListNamespaces(ctx context.Context) ([]*memory.Namespace, error)
	NamespaceExists(ctx context.Context, name string) (bool, error)
	// MissingNamespaces returns the names that do not exist, in input order.
	MissingNamespaces(ctx context.Context, names []string) ([]string, error)
}

// CredentialStore persists API credentials.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *memory.Credential) error
	ListCredentials(ctx context.Context) ([]*memory.Credential, error)
	ActiveCredentials(ctx context.Context) ([]*memory.Credential, error)
	DeactivateCredential(ctx context.Context, id string) error
	CountCredentials(ctx context.Context) (int, error)

	// Bootstrap creates the namespaces and, only when no credential exists
	// yet, inserts c. Both happen in one transaction. It reports whether c
	// was inserted.
	Bootstrap(ctx context.Context, c *memory.Credential, namespaces []string) (bool, error)
}

// RequirementRecord is a requirement plus the entity slugs it references.
type RequirementRecord struct {
	*memory.Requirement
	ProjectSlug string
	OwnerSlug   string
}

// KnowledgeRecord is a knowledge chunk plus the entity slugs it references.
type KnowledgeRecord struct {
	*memory.KnowledgeItem
	ProjectSlug string
	EntitySlug  string
}

// EventRecord is an event plus the entity slugs it references.
type EventRecord struct {
	*memory.Event
	ProjectSlug string
	AgentSlug   string
}

// IngestBatch is written in a single transaction. Entities are upserted by
// slug first so later records may reference slugs created in the same batch.
type IngestBatch struct {
	Namespace      string
	Entities       []*memory.Entity
	Requirements   []RequirementRecord
	KnowledgeItems []KnowledgeRecord
	Events         []EventRecord
}

// IngestCounts reports rows written per kind.
type IngestCounts struct {
	Entities       int `json:"entities"`
	Requirements   int `json:"requirements"`
	KnowledgeItems int `json:"knowledge_items"`
	Events         int `json:"events"`
}

// IngestStore writes ingest batches.
type IngestStore interface {
	IngestBatch(ctx context.Context, batch *IngestBatch) (*IngestCounts, error)
}

// EntityResolver maps namespace-scoped slugs to entity ids.
type EntityResolver interface {
	// EntityIDBySlug fails with a NotFoundError for unknown slugs.
	EntityIDBySlug(ctx context.Context, namespace, slug string) (string, error)
}

// Record kinds returned by keyword query.
const (
	KindEntity        = "entity"
	KindRequirement   = "requirement"
	KindKnowledgeItem = "knowledge_item"
	KindEvent         = "event"
)

// QueryFilter selects rows for keyword search. Empty Text matches everything.
// EntityID filters entities by id, requirements by owner, knowledge items by
// entity and events by agent.
type QueryFilter struct {
	Namespace       string
	Text            string
	ProjectID       string
	EntityID        string
	IncludeArchived bool
	Limit           int
}

// QueryRecord is one keyword match. Snippet is unclipped.
type QueryRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// NeighborQuery is a nearest-neighbour search over one scope.
type NeighborQuery struct {
	Namespace       string
	Scope           memory.Scope
	Vector          []float32
	ProjectID       string
	EntityID        string
	IncludeArchived bool
	Limit           int
}

// Candidate is one nearest-neighbour hit. Text is the full embedded text,
// used as the reranker document; Snippet is the display text.
type Candidate struct {
	ID        string
	Scope     memory.Scope
	Distance  float64
	Text      string
	Snippet   string
	Tags      []string
	CreatedAt time.Time
}

// SearchStore serves keyword and vector retrieval.
type SearchStore interface {
	EntityResolver
	NamespaceExists(ctx context.Context, name string) (bool, error)
	Query(ctx context.Context, filter QueryFilter) ([]QueryRecord, error)
	// NearestNeighbors orders by ascending distance, newest first on ties.
	NearestNeighbors(ctx context.Context, q NeighborQuery) ([]Candidate, error)
}

// EmbeddingTarget is a row lacking an embedding and the text to embed for it.
type EmbeddingTarget struct {
	ID   string
	Text string
}

// EmbeddingStore supports backfill and dimension alignment.
type EmbeddingStore interface {
	// MissingEmbeddings lists rows without a vector, newest first.
	MissingEmbeddings(ctx context.Context, namespace string, scope memory.Scope, limit, offset int) ([]EmbeddingTarget, error)
	// SetEmbeddings writes vectors keyed by row id in one transaction.
	SetEmbeddings(ctx context.Context, scope memory.Scope, vectors map[string][]float32) error
	// ResetMismatchedEmbeddings nulls vectors whose length differs from dim.
	ResetMismatchedEmbeddings(ctx context.Context, dim int) (map[memory.Scope]int, error)
}

// DedupStore supports duplicate detection over knowledge items.
type DedupStore interface {
	// KnowledgeItems lists a namespace's items oldest first, with embeddings.
	KnowledgeItems(ctx context.Context, namespace string, limit int) ([]*memory.KnowledgeItem, error)
	// DeleteKnowledgeItems removes ids from the namespace in one transaction.
	DeleteKnowledgeItems(ctx context.Context, namespace string, ids []string) (int, error)
}

// CompactionCandidate is a session whose unarchived events crossed a threshold.
type CompactionCandidate struct {
	Namespace  string
	ProjectID  string
	SessionID  string
	EventCount int
	CharCount  int
}

// SessionFilter selects unarchived events of one session. Empty ProjectID
// means any project.
type SessionFilter struct {
	Namespace string
	SessionID string
	ProjectID string
	Limit     int
}

// CompactionStore supports session compaction.
type CompactionStore interface {
	EntityResolver
	NamespaceExists(ctx context.Context, name string) (bool, error)
	CompactionCandidates(ctx context.Context, eventThreshold, charThreshold int) ([]CompactionCandidate, error)
	// SessionEvents lists unarchived events oldest first.
	SessionEvents(ctx context.Context, filter SessionFilter) ([]*memory.Event, error)
	// ArchiveWithSummary inserts the summary items and archives eventIDs
	// atomically. It fails with ErrConflict when any event was archived
	// concurrently.
	ArchiveWithSummary(ctx context.Context, summary []*memory.KnowledgeItem, eventIDs []string) error
}

// Stats is a per-table row count snapshot.
type Stats struct {
	Namespaces     int `json:"namespaces"`
	Credentials    int `json:"api_keys"`
	Entities       int `json:"entities"`
	Requirements   int `json:"requirements"`
	KnowledgeItems int `json:"knowledge_items"`
	Events         int `json:"events"`
	ArchivedEvents int `json:"archived_events"`
	MissingVectors int `json:"missing_embeddings"`
}

// Store is the full relational contract.
type Store interface {
	NamespaceStore
	CredentialStore
	IngestStore
	SearchStore
	EmbeddingStore
	DedupStore
	CompactionStore

	// DeleteItems removes ids from knowledge, requirements and events of the
	// namespace in one transaction.
	DeleteItems(ctx context.Context, namespace string, ids []string) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// EmbeddingCache stores vectors keyed by an opaque digest.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
	Close() error
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// Is lets errors.Is(err, memory.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == memory.ErrNotFound
}

// DuplicateKeyError indicates that an entity with the given key already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// Is lets errors.Is(err, memory.ErrConflict) match.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == memory.ErrConflict
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
