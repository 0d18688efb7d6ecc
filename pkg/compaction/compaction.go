// Package compaction summarizes long agent sessions into a single knowledge
// item and archives the summarized events. A Compactor handles one session;
// a Scheduler runs it over every session that crossed a threshold.
package compaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/pkg/chunker"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
)

// Event caps.
const (
	DefaultMaxEvents = 500
	MaxEventsCap     = 2000
)

// Config bounds a single compaction.
type Config struct {
	MaxEvents          int
	MaxTranscriptChars int
	// Chunker splits summaries longer than the knowledge content ceiling
	// into several items.
	Chunker   chunker.Chunker
	Dimension int
}

// SessionRequest selects one session. ProjectSlug takes precedence over ProjectID.
type SessionRequest struct {
	Namespace   string `json:"namespace"`
	SessionID   string `json:"session_id" validate:"required"`
	ProjectSlug string `json:"project_slug,omitempty"`
	ProjectID   string `json:"-"`
	MaxEvents   int    `json:"max_events,omitempty"`
}

// Result describes a completed compaction. SummaryID is the first summary
// item; SummaryIDs lists every chunk in order.
type Result struct {
	Namespace      string   `json:"namespace"`
	SessionID      string   `json:"session_id"`
	ArchivedEvents int      `json:"archived_events"`
	SummaryID      string   `json:"summary_knowledge_item_id"`
	SummaryIDs     []string `json:"summary_knowledge_item_ids"`
}

// Compactor summarizes and archives sessions.
type Compactor struct {
	store      storage.CompactionStore
	summarizer provider.Summarizer
	embedder   provider.Embedder
	cfg        Config
	metrics    *metrics.Manager
	logger     logger.Logger
	onDone     func(ctx context.Context, r *Result)
	now        func() time.Time
}

// Option configures a Compactor.
type Option func(*Compactor)

// OnCompacted registers a callback invoked after every successful compaction.
func OnCompacted(fn func(ctx context.Context, r *Result)) Option {
	return func(c *Compactor) { c.onDone = fn }
}

// NewCompactor creates a Compactor. A nil embedder leaves summaries unembedded.
func NewCompactor(store storage.CompactionStore, summarizer provider.Summarizer, embedder provider.Embedder, cfg Config, m *metrics.Manager, log logger.Logger, opts ...Option) *Compactor {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.MaxTranscriptChars <= 0 {
		cfg.MaxTranscriptChars = 60000
	}
	if summarizer == nil {
		summarizer = provider.NoneSummarizer()
	}
	if embedder == nil {
		embedder = provider.NoneEmbedder()
	}
	if log == nil {
		log = logger.Global()
	}
	c := &Compactor{
		store:      store,
		summarizer: summarizer,
		embedder:   embedder,
		cfg:        cfg,
		metrics:    m,
		logger:     log.With("component", "compaction"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SummarizeSession compacts one session. It fails with ErrNotFound when the
// session has no unarchived events and leaves the session untouched on any
// error.
func (c *Compactor) SummarizeSession(ctx context.Context, req SessionRequest) (res *Result, err error) {
	ctx, span := tracing.Start(ctx, "compaction.SummarizeSession",
		tracing.Namespace(req.Namespace),
		tracing.Session(req.SessionID),
	)
	defer func() {
		archived := 0
		if res != nil {
			archived = res.ArchivedEvents
		}
		c.metrics.RecordCompaction(err, archived)
		tracing.End(span, err)
	}()

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", memory.ErrValidation)
	}
	if !provider.Available(c.summarizer) {
		return nil, fmt.Errorf("%w: llm provider is not configured", memory.ErrProviderUnavailable)
	}
	ok, err := c.store.NamespaceExists(ctx, req.Namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "namespace", ID: req.Namespace}
	}

	projectID := req.ProjectID
	if req.ProjectSlug != "" {
		projectID, err = c.store.EntityIDBySlug(ctx, req.Namespace, req.ProjectSlug)
		if err != nil {
			return nil, fmt.Errorf("project_slug %q: %w", req.ProjectSlug, err)
		}
	}

	limit := req.MaxEvents
	if limit <= 0 {
		limit = c.cfg.MaxEvents
	}
	if limit > MaxEventsCap {
		limit = MaxEventsCap
	}

	events, err := c.store.SessionEvents(ctx, storage.SessionFilter{
		Namespace: req.Namespace,
		SessionID: req.SessionID,
		ProjectID: projectID,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no unarchived events for session_id %q: %w", req.SessionID, memory.ErrNotFound)
	}

	transcript := Transcript(events, c.cfg.MaxTranscriptChars)
	if transcript == "" {
		return nil, fmt.Errorf("%w: session transcript is empty", memory.ErrValidation)
	}

	summary, err := c.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return nil, err
	}
	chunks := c.cfg.Chunker.Split(summary)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: summarizer returned an empty summary", memory.ErrProviderError)
	}

	if projectID == "" {
		projectID = events[0].ProjectID
	}
	created := c.now().UTC()
	items := make([]*memory.KnowledgeItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = &memory.KnowledgeItem{
			Namespace: req.Namespace,
			ProjectID: projectID,
			Content:   chunk,
			Source:    memory.SourceSessionCompaction,
			SourceRef: req.SessionID,
			Tags:      []string{memory.TagSummary, memory.TagCompaction},
			Embedding: c.embedSummary(ctx, chunk),
			CreatedAt: created,
		}
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if err := c.store.ArchiveWithSummary(ctx, items, ids); err != nil {
		return nil, fmt.Errorf("archive session: %w", err)
	}

	res = &Result{
		Namespace:      req.Namespace,
		SessionID:      req.SessionID,
		ArchivedEvents: len(events),
		SummaryID:      items[0].ID,
		SummaryIDs:     make([]string, len(items)),
	}
	for i, it := range items {
		res.SummaryIDs[i] = it.ID
	}
	c.logger.InfoContext(ctx, "compacted session",
		"namespace", res.Namespace,
		"session_id", res.SessionID,
		"archived_events", res.ArchivedEvents,
		"summary_id", res.SummaryID,
		"summary_chunks", len(items),
	)
	if c.onDone != nil {
		c.onDone(ctx, res)
	}
	return res, nil
}

// embedSummary is best effort: a missing or failing embedder leaves the
// summary for backfill.
func (c *Compactor) embedSummary(ctx context.Context, summary string) []float32 {
	if !provider.Available(c.embedder) {
		return nil
	}
	vec, err := c.embedder.Embed(ctx, summary)
	if err == nil && c.cfg.Dimension > 0 {
		err = memory.CheckDimension(vec, c.cfg.Dimension)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "summary embedding skipped", "error", err)
		return nil
	}
	return vec
}
