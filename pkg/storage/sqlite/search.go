package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

const defaultQueryLimit = 20

// conditions accumulates a WHERE clause and its arguments.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, args ...any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) String() string {
	return strings.Join(c.clauses, " AND ")
}

// likePattern escapes LIKE metacharacters so user text matches literally.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}

func likeAny(columns ...string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + ` LIKE ? ESCAPE '\'`
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Query runs a case-insensitive substring search over entities,
// requirements, knowledge items and events, merged newest first.
func (s *Store) Query(ctx context.Context, f storage.QueryFilter) ([]storage.QueryRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	pattern := ""
	if f.Text != "" {
		pattern = likePattern(f.Text)
	}

	var out []storage.QueryRecord

	// Entities
	{
		c := &conditions{}
		c.add("namespace = ?", f.Namespace)
		if pattern != "" {
			c.add(likeAny("name", "description"), repeat(pattern, 2)...)
		}
		if f.EntityID != "" {
			c.add("id = ?", f.EntityID)
		}
		rows, err := s.db.QueryContext(ctx, `SELECT id, type, name, description, created_at FROM entities
			WHERE `+c.String()+` ORDER BY updated_at DESC, rowid DESC LIMIT ?`, append(c.args, limit)...)
		if err != nil {
			return nil, fmt.Errorf("query entities: %w", err)
		}
		err = scanRows(rows, func() error {
			var (
				rec     storage.QueryRecord
				typ     string
				desc    sql.NullString
				created int64
			)
			if err := rows.Scan(&rec.ID, &typ, &rec.Title, &desc, &created); err != nil {
				return err
			}
			rec.Kind = storage.KindEntity
			rec.Snippet = desc.String
			rec.Tags = []string{typ}
			rec.CreatedAt = fromNanos(created)
			out = append(out, rec)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query entities: %w", err)
		}
	}

	// Requirements
	{
		c := &conditions{}
		c.add("namespace = ?", f.Namespace)
		if pattern != "" {
			c.add(likeAny("title", "body"), repeat(pattern, 2)...)
		}
		if f.ProjectID != "" {
			c.add("project_id = ?", f.ProjectID)
		}
		if f.EntityID != "" {
			c.add("owner_entity_id = ?", f.EntityID)
		}
		rows, err := s.db.QueryContext(ctx, `SELECT id, title, body, context_snippet, tags, created_at FROM requirements
			WHERE `+c.String()+` ORDER BY updated_at DESC, rowid DESC LIMIT ?`, append(c.args, limit)...)
		if err != nil {
			return nil, fmt.Errorf("query requirements: %w", err)
		}
		err = scanRows(rows, func() error {
			var (
				rec          storage.QueryRecord
				body, snip   sql.NullString
				tags         string
				created      int64
			)
			if err := rows.Scan(&rec.ID, &rec.Title, &body, &snip, &tags, &created); err != nil {
				return err
			}
			var err error
			if rec.Tags, err = unmarshalTags(tags); err != nil {
				return err
			}
			rec.Kind = storage.KindRequirement
			rec.Snippet = firstNonEmpty(snip.String, body.String)
			rec.CreatedAt = fromNanos(created)
			out = append(out, rec)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query requirements: %w", err)
		}
	}

	// Knowledge items
	{
		c := &conditions{}
		c.add("namespace = ?", f.Namespace)
		if pattern != "" {
			c.add(likeAny("content", "source", "source_ref"), repeat(pattern, 3)...)
		}
		if f.ProjectID != "" {
			c.add("project_id = ?", f.ProjectID)
		}
		if f.EntityID != "" {
			c.add("entity_id = ?", f.EntityID)
		}
		rows, err := s.db.QueryContext(ctx, `SELECT id, content, source, tags, created_at FROM knowledge_items
			WHERE `+c.String()+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, append(c.args, limit)...)
		if err != nil {
			return nil, fmt.Errorf("query knowledge items: %w", err)
		}
		err = scanRows(rows, func() error {
			var (
				rec     storage.QueryRecord
				source  sql.NullString
				tags    string
				created int64
			)
			if err := rows.Scan(&rec.ID, &rec.Snippet, &source, &tags, &created); err != nil {
				return err
			}
			var err error
			if rec.Tags, err = unmarshalTags(tags); err != nil {
				return err
			}
			rec.Kind = storage.KindKnowledgeItem
			rec.Title = firstNonEmpty(source.String, "knowledge_item")
			rec.CreatedAt = fromNanos(created)
			out = append(out, rec)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query knowledge items: %w", err)
		}
	}

	// Events
	{
		c := &conditions{}
		c.add("namespace = ?", f.Namespace)
		if pattern != "" {
			c.add(likeAny("title", "body"), repeat(pattern, 2)...)
		}
		if f.ProjectID != "" {
			c.add("project_id = ?", f.ProjectID)
		}
		if f.EntityID != "" {
			c.add("agent_id = ?", f.EntityID)
		}
		if !f.IncludeArchived {
			c.add("is_archived = 0")
		}
		rows, err := s.db.QueryContext(ctx, `SELECT id, title, body, context_snippet, tags, created_at FROM events
			WHERE `+c.String()+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, append(c.args, limit)...)
		if err != nil {
			return nil, fmt.Errorf("query events: %w", err)
		}
		err = scanRows(rows, func() error {
			var (
				rec        storage.QueryRecord
				body, snip sql.NullString
				tags       string
				created    int64
			)
			if err := rows.Scan(&rec.ID, &rec.Title, &body, &snip, &tags, &created); err != nil {
				return err
			}
			var err error
			if rec.Tags, err = unmarshalTags(tags); err != nil {
				return err
			}
			rec.Kind = storage.KindEvent
			rec.Snippet = firstNonEmpty(body.String, snip.String)
			rec.CreatedAt = fromNanos(created)
			out = append(out, rec)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query events: %w", err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scanRows calls fn for each row and closes rows.
func scanRows(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// NearestNeighbors ranks rows of one scope by cosine distance to q.Vector.
// Rows without an embedding are never returned.
func (s *Store) NearestNeighbors(ctx context.Context, q storage.NeighborQuery) ([]storage.Candidate, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	vec := memory.EncodeVector(q.Vector)

	c := &conditions{}
	c.add("namespace = ?", q.Namespace)
	c.add("embedding IS NOT NULL")
	// vec is the encoded blob; rows of another dimension are never candidates.
	c.add("length(embedding) = ?", len(vec))

	var (
		table, columns string
		scan           func(rows *sql.Rows) (storage.Candidate, error)
	)

	switch q.Scope {
	case memory.ScopeKnowledge:
		table, columns = "knowledge_items", "id, content, tags, created_at"
		if q.ProjectID != "" {
			c.add("project_id = ?", q.ProjectID)
		}
		if q.EntityID != "" {
			c.add("entity_id = ?", q.EntityID)
		}
		scan = func(rows *sql.Rows) (storage.Candidate, error) {
			var (
				cand    storage.Candidate
				tags    string
				created int64
			)
			if err := rows.Scan(&cand.ID, &cand.Text, &tags, &created, &cand.Distance); err != nil {
				return cand, err
			}
			cand.Snippet = cand.Text
			cand.CreatedAt = fromNanos(created)
			var err error
			cand.Tags, err = unmarshalTags(tags)
			return cand, err
		}

	case memory.ScopeRequirements:
		table, columns = "requirements", "id, title, body, context_snippet, tags, created_at"
		if q.ProjectID != "" {
			c.add("project_id = ?", q.ProjectID)
		}
		if q.EntityID != "" {
			c.add("owner_entity_id = ?", q.EntityID)
		}
		scan = func(rows *sql.Rows) (storage.Candidate, error) {
			var (
				cand       storage.Candidate
				title      string
				body, snip sql.NullString
				tags       string
				created    int64
			)
			if err := rows.Scan(&cand.ID, &title, &body, &snip, &tags, &created, &cand.Distance); err != nil {
				return cand, err
			}
			cand.Text = memory.JoinNonEmpty(title, body.String, snip.String)
			cand.Snippet = firstNonEmpty(snip.String, body.String, title)
			cand.CreatedAt = fromNanos(created)
			var err error
			cand.Tags, err = unmarshalTags(tags)
			return cand, err
		}

	case memory.ScopeEvents:
		table, columns = "events", "id, title, body, context_snippet, tags, created_at"
		if q.ProjectID != "" {
			c.add("project_id = ?", q.ProjectID)
		}
		if q.EntityID != "" {
			c.add("agent_id = ?", q.EntityID)
		}
		if !q.IncludeArchived {
			c.add("is_archived = 0")
		}
		scan = func(rows *sql.Rows) (storage.Candidate, error) {
			var (
				cand       storage.Candidate
				title      string
				body, snip sql.NullString
				tags       string
				created    int64
			)
			if err := rows.Scan(&cand.ID, &title, &body, &snip, &tags, &created, &cand.Distance); err != nil {
				return cand, err
			}
			cand.Text = memory.JoinNonEmpty(title, body.String, snip.String)
			cand.Snippet = firstNonEmpty(body.String, snip.String, title)
			cand.CreatedAt = fromNanos(created)
			var err error
			cand.Tags, err = unmarshalTags(tags)
			return cand, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown scope %q", memory.ErrValidation, q.Scope)
	}

	query := `SELECT ` + columns + `, cosine_distance(embedding, ?) AS distance FROM ` + table +
		` WHERE ` + c.String() + ` ORDER BY distance ASC, created_at DESC, rowid DESC LIMIT ?`
	args := append([]any{vec}, c.args...)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}

	var out []storage.Candidate
	err = scanRows(rows, func() error {
		cand, err := scan(rows)
		if err != nil {
			return err
		}
		cand.Scope = q.Scope
		out = append(out, cand)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	return out, nil
}
