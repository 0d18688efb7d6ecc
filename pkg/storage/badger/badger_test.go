package badger

import (
	"context"
	"testing"
	"time"
)

func setupTestCache(t *testing.T, dir string, ttl time.Duration) *Cache {
	t.Helper()
	c, err := NewCache(&Config{
		Path:              dir,
		SyncWrites:        false,   // Faster for tests
		ValueLogFileSize:  1 << 20, // 1MB
		NumVersionsToKeep: 1,
		TTL:               ttl,
	})
	if err != nil {
		t.Fatalf("Failed to create Cache: %v", err)
	}
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := setupTestCache(t, t.TempDir(), 0)
	defer c.Close()
	ctx := context.Background()

	want := []float32{0.25, -1, 3.5}
	if err := c.Set(ctx, "abc", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v, %v", ok, err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d dims, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dim %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestCache_Miss(t *testing.T) {
	c := setupTestCache(t, t.TempDir(), 0)
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := setupTestCache(t, t.TempDir(), 0)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []float32{1})
	_ = c.Set(ctx, "k", []float32{2, 2})

	got, _, _ := c.Get(ctx, "k")
	if len(got) != 2 {
		t.Errorf("expected overwritten vector, got %v", got)
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c := setupTestCache(t, dir, 0)
	if err := c.Set(ctx, "persist", []float32{7}); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c = setupTestCache(t, dir, 0)
	defer c.Close()
	got, ok, err := c.Get(ctx, "persist")
	if err != nil || !ok || got[0] != 7 {
		t.Errorf("expected persisted vector, got %v, %v, %v", got, ok, err)
	}
}

func TestCache_TTL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping TTL test in short mode")
	}
	c := setupTestCache(t, t.TempDir(), time.Second)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "ephemeral", []float32{1})
	time.Sleep(2 * time.Second)

	if _, ok, _ := c.Get(ctx, "ephemeral"); ok {
		t.Error("expected entry to expire")
	}
}
