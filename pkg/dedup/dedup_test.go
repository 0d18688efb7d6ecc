package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
)

type fakeStore struct {
	items     []*memory.KnowledgeItem
	deleteErr error
	deletes   [][]string
}

func (f *fakeStore) KnowledgeItems(_ context.Context, _ string, limit int) ([]*memory.KnowledgeItem, error) {
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeStore) DeleteKnowledgeItems(_ context.Context, _ string, ids []string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deletes = append(f.deletes, ids)
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.items[:0]
	for _, it := range f.items {
		if !drop[it.ID] {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return len(ids), nil
}

func item(id, content string, vec []float32, age int) *memory.KnowledgeItem {
	return &memory.KnowledgeItem{
		ID:        id,
		Content:   content,
		Embedding: vec,
		CreatedAt: time.Date(2026, 1, 1, 0, age, 0, 0, time.UTC),
	}
}

func corpus() []*memory.KnowledgeItem {
	return []*memory.KnowledgeItem{
		item("a", "Deploys go through staging.", nil, 0),
		item("b", "  deploys GO through   staging. ", nil, 1),
		item("c", "The cache is write-through.", []float32{1, 0, 0}, 2),
		item("d", "Cache writes go straight to disk.", []float32{0.999, 0.01, 0}, 3),
		item("e", "Unrelated fact.", []float32{0, 1, 0}, 4),
		item("f", "deploys go through staging.", nil, 5),
	}
}

func TestFindGroups(t *testing.T) {
	groups := FindGroups(corpus(), DefaultDistanceThreshold)
	require.Len(t, groups, 2)

	assert.Equal(t, "a", groups[0].CanonicalID)
	assert.Equal(t, []string{"b", "f"}, groups[0].DuplicateIDs)
	assert.Equal(t, ReasonExact, groups[0].Reason)

	assert.Equal(t, "c", groups[1].CanonicalID)
	assert.Equal(t, []string{"d"}, groups[1].DuplicateIDs)
	assert.Equal(t, ReasonSemantic, groups[1].Reason)
}

func TestFindGroups_ZeroThresholdKeepsNearMisses(t *testing.T) {
	groups := FindGroups(corpus(), 0)
	for _, g := range groups {
		assert.NotEqual(t, "c", g.CanonicalID)
	}
}

func TestFindGroups_IgnoresMismatchedDimensions(t *testing.T) {
	items := []*memory.KnowledgeItem{
		item("x", "one", []float32{1, 0}, 0),
		item("y", "two", []float32{1, 0, 0}, 1),
	}
	assert.Empty(t, FindGroups(items, 1))
}

func TestScan_DryRunParity(t *testing.T) {
	dry := &fakeStore{items: corpus()}
	d := NewDetector(dry, Config{DistanceThreshold: DefaultDistanceThreshold}, nil, logger.Nop())

	preview, err := d.Scan(context.Background(), "default", true)
	require.NoError(t, err)
	assert.True(t, preview.DryRun)
	assert.Empty(t, dry.deletes)
	assert.Len(t, dry.items, 6)

	apply := &fakeStore{items: corpus()}
	d = NewDetector(apply, Config{DistanceThreshold: DefaultDistanceThreshold}, nil, logger.Nop())
	applied, err := d.Scan(context.Background(), "default", false)
	require.NoError(t, err)

	assert.Equal(t, preview.DuplicateGroups, applied.DuplicateGroups)
	assert.Equal(t, preview.Deleted, applied.Deleted)
	assert.Equal(t, preview.Groups, applied.Groups)
	assert.Equal(t, 3, applied.Deleted)
	assert.Len(t, apply.deletes, 2, "each group is deleted separately")
	assert.Len(t, apply.items, 3)

	again, err := d.Scan(context.Background(), "default", false)
	require.NoError(t, err)
	assert.Zero(t, again.DuplicateGroups)
	assert.NotNil(t, again.Groups)
}

func TestScan_DeleteFailure(t *testing.T) {
	store := &fakeStore{items: corpus(), deleteErr: errors.New("disk full")}
	d := NewDetector(store, Config{}, nil, logger.Nop())

	_, err := d.Scan(context.Background(), "default", false)
	assert.ErrorContains(t, err, "disk full")
}
