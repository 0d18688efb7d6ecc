package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// IngestBatch upserts entities by slug, then inserts requirements, knowledge
// items and events, resolving slug references inside the same transaction.
// Any failure rolls back the whole batch. Written rows get their ids and
// timestamps filled in.
func (s *Store) IngestBatch(ctx context.Context, batch *storage.IngestBatch) (*storage.IngestCounts, error) {
	counts := &storage.IngestCounts{}
	ns := batch.Namespace

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := namespaceExists(ctx, tx, ns)
		if err != nil {
			return err
		}
		if !ok {
			return &storage.NotFoundError{EntityType: "namespace", ID: ns}
		}

		r := &slugResolver{tx: tx, namespace: ns, ids: map[string]string{}}

		for _, e := range batch.Entities {
			if err := s.upsertEntity(ctx, tx, ns, e); err != nil {
				return err
			}
			r.ids[e.Slug] = e.ID
			counts.Entities++
		}

		for _, rec := range batch.Requirements {
			req := rec.Requirement
			if req.ProjectID, err = r.resolve(ctx, "project_slug", rec.ProjectSlug); err != nil {
				return err
			}
			if req.OwnerEntityID, err = r.resolve(ctx, "owner_entity_slug", rec.OwnerSlug); err != nil {
				return err
			}
			if err := s.insertRequirement(ctx, tx, ns, req); err != nil {
				return err
			}
			counts.Requirements++
		}

		for _, rec := range batch.KnowledgeItems {
			item := rec.KnowledgeItem
			if item.ProjectID, err = r.resolve(ctx, "project_slug", rec.ProjectSlug); err != nil {
				return err
			}
			if item.EntityID, err = r.resolve(ctx, "entity_slug", rec.EntitySlug); err != nil {
				return err
			}
			if err := s.insertKnowledge(ctx, tx, ns, item); err != nil {
				return err
			}
			counts.KnowledgeItems++
		}

		for _, rec := range batch.Events {
			ev := rec.Event
			if ev.ProjectID, err = r.resolve(ctx, "project_slug", rec.ProjectSlug); err != nil {
				return err
			}
			if ev.AgentID, err = r.resolve(ctx, "agent_slug", rec.AgentSlug); err != nil {
				return err
			}
			if err := s.insertEvent(ctx, tx, ns, ev); err != nil {
				return err
			}
			counts.Events++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

type slugResolver struct {
	tx        *sql.Tx
	namespace string
	ids       map[string]string
}

func (r *slugResolver) resolve(ctx context.Context, field, slug string) (string, error) {
	if slug == "" {
		return "", nil
	}
	if id, ok := r.ids[slug]; ok {
		return id, nil
	}
	id, err := entityIDBySlug(ctx, r.tx, r.namespace, slug)
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			return "", &storage.NotFoundError{EntityType: field, ID: slug}
		}
		return "", err
	}
	r.ids[slug] = id
	return id, nil
}

// EntityIDBySlug resolves a slug within namespace.
func (s *Store) EntityIDBySlug(ctx context.Context, namespace, slug string) (string, error) {
	return entityIDBySlug(ctx, s.db, namespace, slug)
}

func entityIDBySlug(ctx context.Context, q queryer, namespace, slug string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE namespace = ? AND slug = ?`, namespace, slug,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &storage.NotFoundError{EntityType: "entity", ID: slug}
	}
	if err != nil {
		return "", fmt.Errorf("resolve entity: %w", err)
	}
	return id, nil
}

func (s *Store) upsertEntity(ctx context.Context, tx *sql.Tx, ns string, e *memory.Entity) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	now := s.timestamp()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, namespace, slug, type, name, description, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, slug) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			description = excluded.description,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, e.ID, ns, e.Slug, e.Type, e.Name, nullString(e.Description), meta, now, now)
	if err != nil {
		return fmt.Errorf("upsert entity %q: %w", e.Slug, err)
	}

	var created, updated int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM entities WHERE namespace = ? AND slug = ?`, ns, e.Slug,
	).Scan(&e.ID, &created, &updated); err != nil {
		return fmt.Errorf("upsert entity %q: %w", e.Slug, err)
	}
	e.Namespace = ns
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)
	return nil
}

func (s *Store) stamp(t *time.Time) int64 {
	if t.IsZero() {
		*t = fromNanos(s.timestamp())
	}
	return t.UnixNano()
}

func (s *Store) insertRequirement(ctx context.Context, tx *sql.Tx, ns string, r *memory.Requirement) error {
	tags, err := marshalTags(r.Tags)
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Namespace = ns
	created := s.stamp(&r.CreatedAt)
	r.UpdatedAt = r.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requirements
		(id, namespace, project_id, owner_entity_id, title, body, priority, status, context_snippet, tags, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, ns, nullString(r.ProjectID), nullString(r.OwnerEntityID), r.Title, nullString(r.Body),
		r.Priority, r.Status, nullString(r.ContextSnippet), tags, vectorArg(r.Embedding), created, created,
	)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}
	return nil
}

func (s *Store) insertKnowledge(ctx context.Context, q queryer, ns string, k *memory.KnowledgeItem) error {
	tags, err := marshalTags(k.Tags)
	if err != nil {
		return err
	}
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.Namespace = ns
	created := s.stamp(&k.CreatedAt)

	_, err = q.ExecContext(ctx, `
		INSERT INTO knowledge_items
		(id, namespace, project_id, entity_id, content, source, source_ref, tags, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		k.ID, ns, nullString(k.ProjectID), nullString(k.EntityID), k.Content, nullString(k.Source),
		nullString(k.SourceRef), tags, vectorArg(k.Embedding), created,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge item: %w", err)
	}
	return nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, ns string, ev *memory.Event) error {
	tags, err := marshalTags(ev.Tags)
	if err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Namespace = ns
	created := s.stamp(&ev.CreatedAt)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(id, namespace, project_id, agent_id, type, title, body, context_snippet, session_id, tags, is_archived, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ns, nullString(ev.ProjectID), nullString(ev.AgentID), ev.Type, ev.Title, nullString(ev.Body),
		nullString(ev.ContextSnippet), nullString(ev.SessionID), tags, ev.Archived, vectorArg(ev.Embedding), created,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
