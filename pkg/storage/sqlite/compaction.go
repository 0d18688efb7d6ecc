package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// CompactionCandidates groups unarchived session events by namespace, project
// and session, keeping groups at or above either threshold.
func (s *Store) CompactionCandidates(ctx context.Context, eventThreshold, charThreshold int) ([]storage.CompactionCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, COALESCE(project_id, '') AS project, session_id,
			COUNT(*) AS n,
			SUM(length(title) + COALESCE(length(body), 0) + COALESCE(length(context_snippet), 0)) AS chars
		FROM events
		WHERE is_archived = 0 AND session_id IS NOT NULL AND session_id != ''
		GROUP BY namespace, project, session_id
		HAVING n >= ? OR chars >= ?
		ORDER BY MIN(created_at) ASC`, eventThreshold, charThreshold)
	if err != nil {
		return nil, fmt.Errorf("compaction candidates: %w", err)
	}
	var out []storage.CompactionCandidate
	err = scanRows(rows, func() error {
		var c storage.CompactionCandidate
		if err := rows.Scan(&c.Namespace, &c.ProjectID, &c.SessionID, &c.EventCount, &c.CharCount); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compaction candidates: %w", err)
	}
	return out, nil
}

// SessionEvents lists unarchived events of a session oldest first.
func (s *Store) SessionEvents(ctx context.Context, f storage.SessionFilter) ([]*memory.Event, error) {
	c := &conditions{}
	c.add("namespace = ?", f.Namespace)
	c.add("session_id = ?", f.SessionID)
	c.add("is_archived = 0")
	if f.ProjectID != "" {
		c.add("project_id = ?", f.ProjectID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(project_id, ''), COALESCE(agent_id, ''), type, title, COALESCE(body, ''),
			COALESCE(context_snippet, ''), session_id, tags, created_at
		FROM events WHERE `+c.String()+`
		ORDER BY created_at ASC, rowid ASC LIMIT ?`, append(c.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("session events: %w", err)
	}
	var out []*memory.Event
	err = scanRows(rows, func() error {
		var (
			ev      = &memory.Event{Namespace: f.Namespace}
			tags    string
			created int64
		)
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.AgentID, &ev.Type, &ev.Title, &ev.Body,
			&ev.ContextSnippet, &ev.SessionID, &tags, &created); err != nil {
			return err
		}
		var err error
		if ev.Tags, err = unmarshalTags(tags); err != nil {
			return err
		}
		ev.CreatedAt = fromNanos(created)
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session events: %w", err)
	}
	return out, nil
}

// ArchiveWithSummary inserts the summary items and archives eventIDs in one
// transaction. Every item must belong to the namespace of the first. If any
// event is already archived the transaction is rolled back with ErrConflict,
// so concurrent compactions of one session cannot both commit.
func (s *Store) ArchiveWithSummary(ctx context.Context, summary []*memory.KnowledgeItem, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return fmt.Errorf("%w: no events to archive", memory.ErrValidation)
	}
	if len(summary) == 0 {
		return fmt.Errorf("%w: no summary to store", memory.ErrValidation)
	}
	namespace := summary[0].Namespace
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range summary {
			if item.Namespace != namespace {
				return fmt.Errorf("%w: summary spans namespaces", memory.ErrValidation)
			}
			if err := s.insertKnowledge(ctx, tx, namespace, item); err != nil {
				return err
			}
		}
		args := append([]any{namespace}, stringArgs(eventIDs)...)
		res, err := tx.ExecContext(ctx, `UPDATE events SET is_archived = 1
			WHERE namespace = ? AND is_archived = 0 AND id IN (`+placeholders(len(eventIDs))+`)`, args...)
		if err != nil {
			return fmt.Errorf("archive events: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(eventIDs) {
			return fmt.Errorf("%w: archived %d of %d events", memory.ErrConflict, n, len(eventIDs))
		}
		return nil
	})
}
