// Package ingest validates write batches, chunks knowledge content, embeds
// what it can and hands the batch to the store as one transaction. It also
// owns embedding backfill for rows written without vectors.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/memvault/memvault/pkg/chunker"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
)

// EntityInput upserts an entity by slug.
type EntityInput struct {
	Slug        string         `json:"slug" validate:"required,max=200"`
	Type        string         `json:"type" validate:"required,oneof=project person agent document integration other"`
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RequirementInput writes one requirement.
type RequirementInput struct {
	ProjectSlug     string    `json:"project_slug,omitempty"`
	OwnerEntitySlug string    `json:"owner_entity_slug,omitempty"`
	Title           string    `json:"title" validate:"required"`
	Body            string    `json:"body,omitempty"`
	Priority        string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Status          string    `json:"status,omitempty" validate:"omitempty,oneof=draft proposed in_progress blocked done archived"`
	ContextSnippet  string    `json:"context_snippet,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// KnowledgeInput writes one knowledge item, split into chunks when long.
type KnowledgeInput struct {
	ProjectSlug string    `json:"project_slug,omitempty"`
	EntitySlug  string    `json:"entity_slug,omitempty"`
	Content     string    `json:"content" validate:"required"`
	Source      string    `json:"source,omitempty"`
	SourceRef   string    `json:"source_ref,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// EventInput writes one event.
type EventInput struct {
	ProjectSlug    string    `json:"project_slug,omitempty"`
	AgentSlug      string    `json:"agent_slug,omitempty"`
	Type           string    `json:"type,omitempty" validate:"omitempty,oneof=note decision directive action result error"`
	Title          string    `json:"title" validate:"required"`
	Body           string    `json:"body,omitempty"`
	ContextSnippet string    `json:"context_snippet,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

// MaxRecords caps the number of input records in one batch.
const MaxRecords = 1000

// Request is an ingest batch.
type Request struct {
	Namespace      string             `json:"namespace"`
	Entities       []EntityInput      `json:"entities,omitempty" validate:"dive"`
	Requirements   []RequirementInput `json:"requirements,omitempty" validate:"dive"`
	KnowledgeItems []KnowledgeInput   `json:"knowledge_items,omitempty" validate:"dive"`
	Events         []EventInput       `json:"events,omitempty" validate:"dive"`
}

// Size reports the number of input records.
func (r *Request) Size() int {
	return len(r.Entities) + len(r.Requirements) + len(r.KnowledgeItems) + len(r.Events)
}

// Result is the ingest response body.
type Result struct {
	Namespace string               `json:"namespace"`
	Counts    storage.IngestCounts `json:"counts"`
}

// Service writes ingest batches.
type Service struct {
	store     storage.IngestStore
	embedder  provider.Embedder
	chunker   chunker.Chunker
	dimension int
	validate  *validator.Validate
	metrics   *metrics.Manager
	logger    logger.Logger
	onDone    func(ctx context.Context, r *Result)
}

// Option configures a Service.
type Option func(*Service)

// OnIngested registers a callback invoked after every committed batch.
func OnIngested(fn func(ctx context.Context, r *Result)) Option {
	return func(s *Service) { s.onDone = fn }
}

// NewService creates an ingest service. A nil embedder stores no vectors
// unless the request carries them.
func NewService(store storage.IngestStore, embedder provider.Embedder, ch chunker.Chunker, dimension int, m *metrics.Manager, log logger.Logger, opts ...Option) *Service {
	if embedder == nil {
		embedder = provider.NoneEmbedder()
	}
	if log == nil {
		log = logger.Global()
	}
	s := &Service{
		store:     store,
		embedder:  embedder,
		chunker:   ch,
		dimension: dimension,
		validate:  validator.New(),
		metrics:   m,
		logger:    log.With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates, chunks and embeds req, then writes it atomically. Any
// failure aborts the whole batch.
func (s *Service) Ingest(ctx context.Context, req *Request) (res *Result, err error) {
	ctx, span := tracing.Start(ctx, "ingest.Ingest",
		tracing.Namespace(req.Namespace),
		attribute.Int("memvault.records", req.Size()),
	)
	defer func() { tracing.End(span, err) }()

	if n := req.Size(); n > MaxRecords {
		return nil, fmt.Errorf("%w: batch has %d records, at most %d are accepted", memory.ErrValidation, n, MaxRecords)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	batch := &storage.IngestBatch{Namespace: req.Namespace}

	for _, in := range req.Entities {
		batch.Entities = append(batch.Entities, &memory.Entity{
			Slug:        strings.TrimSpace(in.Slug),
			Type:        in.Type,
			Name:        in.Name,
			Description: in.Description,
			Metadata:    in.Metadata,
		})
	}

	for i, in := range req.Requirements {
		vec, err := s.vectorFor(ctx, in.Embedding, memory.JoinNonEmpty(in.Title, in.Body, in.ContextSnippet))
		if err != nil {
			return nil, fmt.Errorf("requirements[%d]: %w", i, err)
		}
		batch.Requirements = append(batch.Requirements, storage.RequirementRecord{
			Requirement: &memory.Requirement{
				Title:          in.Title,
				Body:           in.Body,
				Priority:       defaultString(in.Priority, "medium"),
				Status:         defaultString(in.Status, "draft"),
				ContextSnippet: in.ContextSnippet,
				Tags:           in.Tags,
				Embedding:      vec,
			},
			ProjectSlug: in.ProjectSlug,
			OwnerSlug:   in.OwnerEntitySlug,
		})
	}

	chunks := 0
	for i, in := range req.KnowledgeItems {
		if err := s.checkExplicit(in.Embedding); err != nil {
			return nil, fmt.Errorf("knowledge_items[%d]: %w", i, err)
		}
		for _, chunk := range s.chunker.Split(in.Content) {
			vec, err := s.vectorFor(ctx, in.Embedding, chunk)
			if err != nil {
				return nil, fmt.Errorf("knowledge_items[%d]: %w", i, err)
			}
			batch.KnowledgeItems = append(batch.KnowledgeItems, storage.KnowledgeRecord{
				KnowledgeItem: &memory.KnowledgeItem{
					Content:   chunk,
					Source:    in.Source,
					SourceRef: in.SourceRef,
					Tags:      in.Tags,
					Embedding: vec,
				},
				ProjectSlug: in.ProjectSlug,
				EntitySlug:  in.EntitySlug,
			})
			chunks++
		}
	}

	for i, in := range req.Events {
		vec, err := s.vectorFor(ctx, in.Embedding, memory.JoinNonEmpty(in.Title, in.Body, in.ContextSnippet))
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		batch.Events = append(batch.Events, storage.EventRecord{
			Event: &memory.Event{
				Type:           defaultString(in.Type, "note"),
				Title:          in.Title,
				Body:           in.Body,
				ContextSnippet: in.ContextSnippet,
				SessionID:      in.SessionID,
				Tags:           in.Tags,
				Embedding:      vec,
			},
			ProjectSlug: in.ProjectSlug,
			AgentSlug:   in.AgentSlug,
		})
	}

	counts, err := s.store.IngestBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordIngest(storage.KindEntity, counts.Entities)
	s.metrics.RecordIngest(storage.KindRequirement, counts.Requirements)
	s.metrics.RecordIngest(storage.KindKnowledgeItem, counts.KnowledgeItems)
	s.metrics.RecordIngest(storage.KindEvent, counts.Events)
	s.metrics.RecordChunks(chunks)

	res = &Result{Namespace: req.Namespace, Counts: *counts}
	s.logger.InfoContext(ctx, "ingest committed",
		"namespace", req.Namespace,
		"entities", counts.Entities,
		"requirements", counts.Requirements,
		"knowledge_items", counts.KnowledgeItems,
		"events", counts.Events,
	)
	if s.onDone != nil {
		s.onDone(ctx, res)
	}
	return res, nil
}

func (s *Service) checkExplicit(vec []float32) error {
	if vec == nil {
		return nil
	}
	if err := memory.CheckDimension(vec, s.dimension); err != nil {
		return fmt.Errorf("%w: embedding: %w", memory.ErrValidation, err)
	}
	return nil
}

// vectorFor returns the explicit vector, or embeds text when a provider is
// configured. Blank text and mode none yield nil.
func (s *Service) vectorFor(ctx context.Context, explicit []float32, text string) ([]float32, error) {
	if explicit != nil {
		if err := s.checkExplicit(explicit); err != nil {
			return nil, err
		}
		return explicit, nil
	}
	if strings.TrimSpace(text) == "" || !provider.Available(s.embedder) {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := memory.CheckDimension(vec, s.dimension); err != nil {
		return nil, fmt.Errorf("%w: %w", memory.ErrProviderError, err)
	}
	return vec, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validationError flattens validator output into one ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", memory.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", memory.ErrValidation, strings.Join(msgs, "; "))
}
