package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// TestSQLiteStoreSuite runs the full store test suite against Store.
func TestSQLiteStoreSuite(t *testing.T) {
	suite := &storage.StoreTestSuite{
		NewStore: func(t *testing.T) storage.Store {
			return setupTestDB(t)
		},
	}
	suite.RunAllTests(t)
}

func setupTestDB(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "memvault.db")}, opts...)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memvault.db")
	ctx := context.Background()

	s, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.CreateNamespace(ctx, "default"); err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}
	s.Close()

	s, err = Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	ok, err := s.NamespaceExists(ctx, "default")
	if err != nil || !ok {
		t.Errorf("expected namespace to persist, got %v, %v", ok, err)
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected user_version %d, got %d", currentSchemaVersion, version)
	}
}

func TestPing(t *testing.T) {
	s := setupTestDB(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := setupTestDB(t, WithClock(func() time.Time { return fixed }))
	defer s.Close()

	ns, err := s.CreateNamespace(context.Background(), "default")
	if err != nil {
		t.Fatal(err)
	}
	if !ns.CreatedAt.Equal(fixed) {
		t.Errorf("expected clock time %v, got %v", fixed, ns.CreatedAt)
	}
}

func TestCosineDistanceFunc(t *testing.T) {
	a := memory.EncodeVector([]float32{1, 0})
	b := memory.EncodeVector([]float32{0, 1})

	if d := cosineDistance(a, a); d > 1e-9 {
		t.Errorf("identical vectors should have distance 0, got %f", d)
	}
	if d := cosineDistance(a, b); d < 0.999 || d > 1.001 {
		t.Errorf("orthogonal vectors should have distance 1, got %f", d)
	}
	if d := cosineDistance(a, memory.EncodeVector([]float32{1, 0, 0})); d != 2 {
		t.Errorf("mismatched dimensions should sort last, got %f", d)
	}
	if d := cosineDistance([]byte{1, 2, 3}, a); d != 2 {
		t.Errorf("corrupt blob should sort last, got %f", d)
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"plain":   "%plain%",
		"100%":    `%100\%%`,
		"a_b":     `%a\_b%`,
		`back\sl`: `%back\\sl%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNearestNeighbors_UnknownScope(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	_, err := s.NearestNeighbors(context.Background(), storage.NeighborQuery{
		Namespace: "default", Scope: "nope", Vector: []float32{1}, Limit: 1,
	})
	if err == nil {
		t.Fatal("expected error for unknown scope")
	}
}
