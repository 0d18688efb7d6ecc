package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

var scopeTables = map[memory.Scope]string{
	memory.ScopeKnowledge:    "knowledge_items",
	memory.ScopeRequirements: "requirements",
	memory.ScopeEvents:       "events",
}

func tableFor(scope memory.Scope) (string, error) {
	table, ok := scopeTables[scope]
	if !ok {
		return "", fmt.Errorf("%w: unknown scope %q", memory.ErrValidation, scope)
	}
	return table, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// MissingEmbeddings lists rows of scope lacking a vector, newest first.
// Requirements are ordered by updated_at.
func (s *Store) MissingEmbeddings(ctx context.Context, namespace string, scope memory.Scope, limit, offset int) ([]storage.EmbeddingTarget, error) {
	var query string
	switch scope {
	case memory.ScopeKnowledge:
		query = `SELECT id, content, '', '' FROM knowledge_items
			WHERE namespace = ? AND embedding IS NULL ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	case memory.ScopeRequirements:
		query = `SELECT id, title, COALESCE(body, ''), COALESCE(context_snippet, '') FROM requirements
			WHERE namespace = ? AND embedding IS NULL ORDER BY updated_at DESC, rowid DESC LIMIT ? OFFSET ?`
	case memory.ScopeEvents:
		query = `SELECT id, title, COALESCE(body, ''), COALESCE(context_snippet, '') FROM events
			WHERE namespace = ? AND embedding IS NULL ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", memory.ErrValidation, scope)
	}

	rows, err := s.db.QueryContext(ctx, query, namespace, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("missing embeddings: %w", err)
	}
	var out []storage.EmbeddingTarget
	err = scanRows(rows, func() error {
		var id, a, b, c string
		if err := rows.Scan(&id, &a, &b, &c); err != nil {
			return err
		}
		out = append(out, storage.EmbeddingTarget{ID: id, Text: memory.JoinNonEmpty(a, b, c)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("missing embeddings: %w", err)
	}
	return out, nil
}

// SetEmbeddings writes vectors in one transaction.
func (s *Store) SetEmbeddings(ctx context.Context, scope memory.Scope, vectors map[string][]float32) error {
	table, err := tableFor(scope)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET embedding = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("set embeddings: %w", err)
		}
		defer stmt.Close()
		for id, vec := range vectors {
			if _, err := stmt.ExecContext(ctx, vectorArg(vec), id); err != nil {
				return fmt.Errorf("set embedding %s: %w", id, err)
			}
		}
		return nil
	})
}

// ResetMismatchedEmbeddings nulls every stored vector whose length is not dim.
func (s *Store) ResetMismatchedEmbeddings(ctx context.Context, dim int) (map[memory.Scope]int, error) {
	counts := make(map[memory.Scope]int, len(scopeTables))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for scope, table := range scopeTables {
			res, err := tx.ExecContext(ctx,
				`UPDATE `+table+` SET embedding = NULL WHERE embedding IS NOT NULL AND length(embedding) != ?`, dim*4)
			if err != nil {
				return fmt.Errorf("reset %s embeddings: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			counts[scope] = int(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// KnowledgeItems lists a namespace's knowledge items oldest first.
func (s *Store) KnowledgeItems(ctx context.Context, namespace string, limit int) ([]*memory.KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(project_id, ''), COALESCE(entity_id, ''), content, COALESCE(source, ''),
			COALESCE(source_ref, ''), tags, embedding, created_at
		FROM knowledge_items WHERE namespace = ?
		ORDER BY created_at ASC, rowid ASC LIMIT ?`, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("list knowledge items: %w", err)
	}
	var out []*memory.KnowledgeItem
	err = scanRows(rows, func() error {
		var (
			k       = &memory.KnowledgeItem{Namespace: namespace}
			tags    string
			blob    []byte
			created int64
		)
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.EntityID, &k.Content, &k.Source, &k.SourceRef, &tags, &blob, &created); err != nil {
			return err
		}
		var err error
		if k.Tags, err = unmarshalTags(tags); err != nil {
			return err
		}
		if k.Embedding, err = memory.DecodeVector(blob); err != nil {
			// A corrupt vector behaves like a missing one.
			k.Embedding = nil
		}
		k.CreatedAt = fromNanos(created)
		out = append(out, k)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list knowledge items: %w", err)
	}
	return out, nil
}

// DeleteKnowledgeItems removes ids from namespace in one transaction.
func (s *Store) DeleteKnowledgeItems(ctx context.Context, namespace string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := deleteIDs(ctx, tx, "knowledge_items", namespace, ids)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteItems removes ids from knowledge items, requirements and events of
// namespace in one transaction.
func (s *Store) DeleteItems(ctx context.Context, namespace string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"knowledge_items", "requirements", "events"} {
			n, err := deleteIDs(ctx, tx, table, namespace, ids)
			if err != nil {
				return err
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func deleteIDs(ctx context.Context, q queryer, table, namespace string, ids []string) (int, error) {
	args := append([]any{namespace}, stringArgs(ids)...)
	res, err := q.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE namespace = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Stats counts rows per table.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	st := &storage.Stats{}
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM namespaces),
		(SELECT COUNT(*) FROM api_keys),
		(SELECT COUNT(*) FROM entities),
		(SELECT COUNT(*) FROM requirements),
		(SELECT COUNT(*) FROM knowledge_items),
		(SELECT COUNT(*) FROM events),
		(SELECT COUNT(*) FROM events WHERE is_archived = 1),
		(SELECT COUNT(*) FROM knowledge_items WHERE embedding IS NULL) +
		(SELECT COUNT(*) FROM requirements WHERE embedding IS NULL) +
		(SELECT COUNT(*) FROM events WHERE embedding IS NULL)
	`).Scan(&st.Namespaces, &st.Credentials, &st.Entities, &st.Requirements,
		&st.KnowledgeItems, &st.Events, &st.ArchivedEvents, &st.MissingVectors)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
