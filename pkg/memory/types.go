package memory

import (
	"fmt"
	"time"
)

// Role is a credential role. Roles form a strict hierarchy reader < writer < admin.
type Role string

// Credential roles.
const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

// Rank orders roles; unknown roles rank zero and satisfy nothing.
func (r Role) Rank() int {
	switch r {
	case RoleReader:
		return 1
	case RoleWriter:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether r is at least required.
func (r Role) Satisfies(required Role) bool {
	return r.Rank() > 0 && r.Rank() >= required.Rank()
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if r.Rank() == 0 {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

// Scope selects the table searched by recall and backfill.
type Scope string

// Recall scopes.
const (
	ScopeKnowledge    Scope = "knowledge"
	ScopeRequirements Scope = "requirements"
	ScopeEvents       Scope = "events"
)

// ParseScope validates a scope name; empty means knowledge.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeKnowledge, nil
	case ScopeKnowledge, ScopeRequirements, ScopeEvents:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrValidation, s)
	}
}

// Namespace is the unit of tenancy isolation.
type Namespace struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential is a stored API key. Only the bcrypt hash of the secret is kept.
type Credential struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	KeyHash    string    `json:"-"`
	Role       Role      `json:"role"`
	Namespaces []string  `json:"namespaces"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entity is a typed, slug-addressed object within a namespace.
type Entity struct {
	ID          string         `json:"id"`
	Namespace   string         `json:"namespace"`
	Slug        string         `json:"slug"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Requirement is a goal or backlog record.
type Requirement struct {
	ID             string    `json:"id"`
	Namespace      string    `json:"namespace"`
	ProjectID      string    `json:"project_id,omitempty"`
	OwnerEntityID  string    `json:"owner_entity_id,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body,omitempty"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	ContextSnippet string    `json:"context_snippet,omitempty"`
	Tags           []string  `json:"tags"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// KnowledgeItem is an atomic durable fact.
type KnowledgeItem struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	ProjectID string    `json:"project_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	SourceRef string    `json:"source_ref,omitempty"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a session-scoped occurrence.
type Event struct {
	ID             string    `json:"id"`
	Namespace      string    `json:"namespace"`
	ProjectID      string    `json:"project_id,omitempty"`
	AgentID        string    `json:"agent_id,omitempty"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body,omitempty"`
	ContextSnippet string    `json:"context_snippet,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Tags           []string  `json:"tags"`
	Archived       bool      `json:"is_archived"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Chars is the character volume counted toward the compaction threshold.
func (e *Event) Chars() int {
	return len([]rune(e.Title)) + len([]rune(e.Body)) + len([]rune(e.ContextSnippet))
}

// Enumerations accepted at ingest.
var (
	EntityTypes       = []string{"project", "person", "agent", "document", "integration", "other"}
	RequirementLevels = []string{"low", "medium", "high", "critical"}
	RequirementStates = []string{"draft", "proposed", "in_progress", "blocked", "done", "archived"}
	EventTypes        = []string{"note", "decision", "directive", "action", "result", "error"}
)

// Compaction tags and provenance.
const (
	TagSummary              = "summary"
	TagCompaction           = "compaction"
	SourceSessionCompaction = "session_compaction"
)
