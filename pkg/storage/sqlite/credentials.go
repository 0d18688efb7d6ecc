package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

const credentialColumns = `id, name, key_hash, role, namespaces, is_active, created_at`

// CreateCredential inserts c. ID and CreatedAt must be set by the caller.
func (s *Store) CreateCredential(ctx context.Context, c *memory.Credential) error {
	return insertCredential(ctx, s.db, c)
}

func insertCredential(ctx context.Context, q queryer, c *memory.Credential) error {
	nsJSON, err := json.Marshal(c.Namespaces)
	if err != nil {
		return &storage.SerializationError{Operation: "marshal namespaces", Cause: err}
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO api_keys (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.Name, c.KeyHash, string(c.Role), string(nsJSON), c.Active, c.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// ListCredentials returns every credential, newest first.
func (s *Store) ListCredentials(ctx context.Context) ([]*memory.Credential, error) {
	return s.queryCredentials(ctx, `SELECT `+credentialColumns+` FROM api_keys ORDER BY created_at DESC, rowid DESC`)
}

// ActiveCredentials returns credentials that may authenticate.
func (s *Store) ActiveCredentials(ctx context.Context) ([]*memory.Credential, error) {
	return s.queryCredentials(ctx, `SELECT `+credentialColumns+` FROM api_keys WHERE is_active = 1 ORDER BY created_at`)
}

func (s *Store) queryCredentials(ctx context.Context, query string) ([]*memory.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var out []*memory.Credential
	for rows.Next() {
		var (
			c       memory.Credential
			role    string
			nsJSON  string
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.KeyHash, &role, &nsJSON, &c.Active, &created); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if err := json.Unmarshal([]byte(nsJSON), &c.Namespaces); err != nil {
			return nil, &storage.SerializationError{Operation: "unmarshal namespaces", Cause: err}
		}
		c.Role = memory.Role(role)
		c.CreatedAt = fromNanos(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeactivateCredential marks id inactive.
func (s *Store) DeactivateCredential(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.NotFoundError{EntityType: "api key", ID: id}
	}
	return nil
}

// CountCredentials returns the number of stored credentials.
func (s *Store) CountCredentials(ctx context.Context) (int, error) {
	return countCredentials(ctx, s.db)
}

func countCredentials(ctx context.Context, q queryer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

// Bootstrap ensures namespaces exist and inserts c only into an empty
// credential table, all in one transaction.
func (s *Store) Bootstrap(ctx context.Context, c *memory.Credential, namespaces []string) (bool, error) {
	inserted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range namespaces {
			if _, err := s.ensureNamespace(ctx, tx, name); err != nil {
				return err
			}
		}
		n, err := countCredentials(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 || c == nil {
			return nil
		}
		if err := insertCredential(ctx, tx, c); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}
