package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/memvault/memvault/pkg/memory"
)

// CreateNamespace inserts name unless it exists and returns the stored row.
func (s *Store) CreateNamespace(ctx context.Context, name string) (*memory.Namespace, error) {
	var ns *memory.Namespace
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ns, err = s.ensureNamespace(ctx, tx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (s *Store) ensureNamespace(ctx context.Context, q queryer, name string) (*memory.Namespace, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO namespaces (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, s.timestamp(),
	); err != nil {
		return nil, fmt.Errorf("create namespace: %w", err)
	}
	var created int64
	if err := q.QueryRowContext(ctx,
		`SELECT created_at FROM namespaces WHERE name = ?`, name,
	).Scan(&created); err != nil {
		return nil, fmt.Errorf("create namespace: %w", err)
	}
	return &memory.Namespace{Name: name, CreatedAt: fromNanos(created)}, nil
}

// ListNamespaces returns all namespaces ordered by name.
func (s *Store) ListNamespaces(ctx context.Context) ([]*memory.Namespace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, created_at FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var out []*memory.Namespace
	for rows.Next() {
		var (
			name    string
			created int64
		)
		if err := rows.Scan(&name, &created); err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		out = append(out, &memory.Namespace{Name: name, CreatedAt: fromNanos(created)})
	}
	return out, rows.Err()
}

// NamespaceExists reports whether name exists.
func (s *Store) NamespaceExists(ctx context.Context, name string) (bool, error) {
	return namespaceExists(ctx, s.db, name)
}

func namespaceExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM namespaces WHERE name = ?`, name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("namespace exists: %w", err)
	}
	return n > 0, nil
}

// MissingNamespaces returns the names that do not exist, in input order.
func (s *Store) MissingNamespaces(ctx context.Context, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		ok, err := s.NamespaceExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
