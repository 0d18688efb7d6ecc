package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/memvault/memvault/pkg/memory"
)

// StoreTestSuite defines a test suite that can be run against any Store implementation.
type StoreTestSuite struct {
	NewStore func(t *testing.T) Store
}

// RunAllTests runs all store tests against the provided implementation.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("Namespaces", s.TestNamespaces)
	t.Run("Credentials", s.TestCredentials)
	t.Run("Bootstrap", s.TestBootstrap)
	t.Run("IngestResolvesSlugs", s.TestIngestResolvesSlugs)
	t.Run("IngestRollsBack", s.TestIngestRollsBack)
	t.Run("EntityUpsert", s.TestEntityUpsert)
	t.Run("Query", s.TestQuery)
	t.Run("NearestNeighbors", s.TestNearestNeighbors)
	t.Run("Embeddings", s.TestEmbeddings)
	t.Run("DeleteItems", s.TestDeleteItems)
	t.Run("Compaction", s.TestCompaction)
	t.Run("ConcurrentIngest", s.TestConcurrentIngest)
}

func mustNamespace(t *testing.T, store Store, name string) {
	t.Helper()
	if _, err := store.CreateNamespace(context.Background(), name); err != nil {
		t.Fatalf("CreateNamespace(%q) failed: %v", name, err)
	}
}

func mustIngest(t *testing.T, store Store, batch *IngestBatch) *IngestCounts {
	t.Helper()
	counts, err := store.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	return counts
}

// TestNamespaces tests create, list and existence checks.
func (s *StoreTestSuite) TestNamespaces(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	first, err := store.CreateNamespace(ctx, "alpha")
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}
	again, err := store.CreateNamespace(ctx, "alpha")
	if err != nil {
		t.Fatalf("CreateNamespace (repeat) failed: %v", err)
	}
	if !first.CreatedAt.Equal(again.CreatedAt) {
		t.Errorf("repeat create should keep created_at: %v vs %v", first.CreatedAt, again.CreatedAt)
	}
	mustNamespace(t, store, "beta")

	list, err := store.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("ListNamespaces failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 namespaces, got %d", len(list))
	}

	ok, err := store.NamespaceExists(ctx, "alpha")
	if err != nil || !ok {
		t.Errorf("expected alpha to exist, got %v, %v", ok, err)
	}
	ok, err = store.NamespaceExists(ctx, "gamma")
	if err != nil || ok {
		t.Errorf("expected gamma to be missing, got %v, %v", ok, err)
	}

	missing, err := store.MissingNamespaces(ctx, []string{"gamma", "alpha", "delta"})
	if err != nil {
		t.Fatalf("MissingNamespaces failed: %v", err)
	}
	if len(missing) != 2 || missing[0] != "gamma" || missing[1] != "delta" {
		t.Errorf("expected [gamma delta], got %v", missing)
	}
}

// TestCredentials tests credential persistence and deactivation.
func (s *StoreTestSuite) TestCredentials(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	for i, role := range []memory.Role{memory.RoleReader, memory.RoleAdmin} {
		c := &memory.Credential{
			ID:         fmt.Sprintf("key-%d", i),
			Name:       string(role),
			KeyHash:    "$2a$10$hash",
			Role:       role,
			Namespaces: []string{"default"},
			Active:     true,
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateCredential(ctx, c); err != nil {
			t.Fatalf("CreateCredential failed: %v", err)
		}
	}

	n, err := store.CountCredentials(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 credentials, got %d, %v", n, err)
	}

	list, err := store.ListCredentials(ctx)
	if err != nil {
		t.Fatalf("ListCredentials failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "key-1" {
		t.Errorf("expected newest first, got %v", list)
	}
	if list[0].Namespaces[0] != "default" || list[0].KeyHash == "" {
		t.Errorf("credential fields not round-tripped: %+v", list[0])
	}

	if err := store.DeactivateCredential(ctx, "key-0"); err != nil {
		t.Fatalf("DeactivateCredential failed: %v", err)
	}
	active, err := store.ActiveCredentials(ctx)
	if err != nil {
		t.Fatalf("ActiveCredentials failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "key-1" {
		t.Errorf("expected only key-1 active, got %v", active)
	}

	err = store.DeactivateCredential(ctx, "missing")
	if !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

// TestBootstrap tests that the bootstrap credential is inserted once.
func (s *StoreTestSuite) TestBootstrap(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	admin := func(id string) *memory.Credential {
		return &memory.Credential{
			ID: id, Name: "bootstrap-admin", KeyHash: "h", Role: memory.RoleAdmin,
			Namespaces: []string{memory.WildcardNamespace}, Active: true, CreatedAt: time.Now(),
		}
	}

	inserted, err := store.Bootstrap(ctx, admin("boot-1"), []string{"default", "ops"})
	if err != nil || !inserted {
		t.Fatalf("expected first bootstrap to insert, got %v, %v", inserted, err)
	}
	inserted, err = store.Bootstrap(ctx, admin("boot-2"), []string{"default"})
	if err != nil || inserted {
		t.Fatalf("expected second bootstrap to skip, got %v, %v", inserted, err)
	}

	if n, _ := store.CountCredentials(ctx); n != 1 {
		t.Errorf("expected 1 credential, got %d", n)
	}
	if ok, _ := store.NamespaceExists(ctx, "ops"); !ok {
		t.Error("bootstrap namespaces should be created")
	}
}

// TestIngestResolvesSlugs tests that records may reference entities from the same batch.
func (s *StoreTestSuite) TestIngestResolvesSlugs(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")

	counts := mustIngest(t, store, &IngestBatch{
		Namespace: "default",
		Entities: []*memory.Entity{
			{Slug: "memvault", Type: "project", Name: "memvault"},
			{Slug: "planner", Type: "agent", Name: "Planner"},
		},
		Requirements: []RequirementRecord{{
			Requirement: &memory.Requirement{Title: "Ship recall", Priority: "high", Status: "draft"},
			ProjectSlug: "memvault",
			OwnerSlug:   "planner",
		}},
		KnowledgeItems: []KnowledgeRecord{{
			KnowledgeItem: &memory.KnowledgeItem{Content: "Recall uses cosine distance."},
			ProjectSlug:   "memvault",
		}},
		Events: []EventRecord{{
			Event:     &memory.Event{Type: "note", Title: "kickoff", SessionID: "s1"},
			AgentSlug: "planner",
		}},
	})

	want := IngestCounts{Entities: 2, Requirements: 1, KnowledgeItems: 1, Events: 1}
	if *counts != want {
		t.Errorf("expected counts %+v, got %+v", want, *counts)
	}

	projectID, err := store.EntityIDBySlug(ctx, "default", "memvault")
	if err != nil {
		t.Fatalf("EntityIDBySlug failed: %v", err)
	}
	records, err := store.Query(ctx, QueryFilter{Namespace: "default", ProjectID: projectID, Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	kinds := map[string]bool{}
	for _, r := range records {
		kinds[r.Kind] = true
	}
	if !kinds[KindRequirement] || !kinds[KindKnowledgeItem] {
		t.Errorf("expected project-linked requirement and knowledge item, got %v", records)
	}

	if _, err := store.EntityIDBySlug(ctx, "default", "nobody"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown slug, got %v", err)
	}
}

// TestIngestRollsBack tests that a failed batch writes nothing.
func (s *StoreTestSuite) TestIngestRollsBack(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")

	_, err := store.IngestBatch(ctx, &IngestBatch{
		Namespace: "default",
		Entities:  []*memory.Entity{{Slug: "memvault", Type: "project", Name: "memvault"}},
		Events: []EventRecord{{
			Event:     &memory.Event{Type: "note", Title: "orphan"},
			AgentSlug: "ghost",
		}},
	})
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown slug, got %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entities != 0 || stats.Events != 0 {
		t.Errorf("failed batch must not write rows, got %+v", stats)
	}

	_, err = store.IngestBatch(ctx, &IngestBatch{Namespace: "nowhere"})
	if !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown namespace, got %v", err)
	}
}

// TestEntityUpsert tests that entities are upserted by slug.
func (s *StoreTestSuite) TestEntityUpsert(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")
	mustNamespace(t, store, "other")

	first := &memory.Entity{Slug: "planner", Type: "agent", Name: "Planner"}
	mustIngest(t, store, &IngestBatch{Namespace: "default", Entities: []*memory.Entity{first}})
	second := &memory.Entity{Slug: "planner", Type: "agent", Name: "Planner v2", Metadata: map[string]any{"v": 2}}
	mustIngest(t, store, &IngestBatch{Namespace: "default", Entities: []*memory.Entity{second}})
	mustIngest(t, store, &IngestBatch{Namespace: "other", Entities: []*memory.Entity{{Slug: "planner", Type: "agent", Name: "x"}}})

	if first.ID != second.ID {
		t.Errorf("upsert should keep the id: %s vs %s", first.ID, second.ID)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Error("updated_at should not move backwards")
	}

	stats, _ := store.Stats(ctx)
	if stats.Entities != 2 {
		t.Errorf("expected one entity per namespace, got %d", stats.Entities)
	}

	records, err := store.Query(ctx, QueryFilter{Namespace: "default", Text: "v2", Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Planner v2" {
		t.Errorf("expected updated entity, got %v", records)
	}
}

// TestQuery tests keyword search ordering, escaping and archive handling.
func (s *StoreTestSuite) TestQuery(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")
	mustNamespace(t, store, "other")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mustIngest(t, store, &IngestBatch{
		Namespace: "default",
		KnowledgeItems: []KnowledgeRecord{
			{KnowledgeItem: &memory.KnowledgeItem{Content: "Deploys go through STAGING first", CreatedAt: base}},
			{KnowledgeItem: &memory.KnowledgeItem{Content: "Coverage is 100% on core", CreatedAt: base.Add(time.Minute)}},
		},
		Events: []EventRecord{
			{Event: &memory.Event{Type: "note", Title: "staging deploy", CreatedAt: base.Add(2 * time.Minute)}},
			{Event: &memory.Event{Type: "note", Title: "staging rollback", Archived: true, CreatedAt: base.Add(3 * time.Minute)}},
		},
	})
	mustIngest(t, store, &IngestBatch{
		Namespace:      "other",
		KnowledgeItems: []KnowledgeRecord{{KnowledgeItem: &memory.KnowledgeItem{Content: "staging secrets"}}},
	})

	records, err := store.Query(ctx, QueryFilter{Namespace: "default", Text: "staging", Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(records), records)
	}
	if records[0].Kind != KindEvent || records[1].Kind != KindKnowledgeItem {
		t.Errorf("expected newest first, got %v", records)
	}
	if records[1].Title != "knowledge_item" {
		t.Errorf("knowledge without source should be titled knowledge_item, got %q", records[1].Title)
	}

	records, _ = store.Query(ctx, QueryFilter{Namespace: "default", Text: "staging", IncludeArchived: true, Limit: 10})
	if len(records) != 3 {
		t.Errorf("expected archived event included, got %d", len(records))
	}

	records, _ = store.Query(ctx, QueryFilter{Namespace: "default", Text: "100%", Limit: 10})
	if len(records) != 1 {
		t.Errorf("expected literal percent match, got %v", records)
	}
	records, _ = store.Query(ctx, QueryFilter{Namespace: "default", Text: "0%o", Limit: 10})
	if len(records) != 0 {
		t.Errorf("percent must not act as a wildcard, got %v", records)
	}

	records, _ = store.Query(ctx, QueryFilter{Namespace: "default", Limit: 1})
	if len(records) != 1 {
		t.Errorf("expected limit to truncate the merged result, got %d", len(records))
	}
}

// TestNearestNeighbors tests vector ordering and isolation.
func (s *StoreTestSuite) TestNearestNeighbors(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")
	mustNamespace(t, store, "other")

	mustIngest(t, store, &IngestBatch{
		Namespace: "default",
		KnowledgeItems: []KnowledgeRecord{
			{KnowledgeItem: &memory.KnowledgeItem{Content: "far", Embedding: []float32{0, 1, 0}}},
			{KnowledgeItem: &memory.KnowledgeItem{Content: "near", Embedding: []float32{1, 0.1, 0}}},
			{KnowledgeItem: &memory.KnowledgeItem{Content: "unembedded"}},
		},
		Events: []EventRecord{
			{Event: &memory.Event{Type: "note", Title: "archived", Archived: true, Embedding: []float32{1, 0, 0}}},
			{Event: &memory.Event{Type: "note", Title: "live", Body: "body", Embedding: []float32{1, 0, 0}}},
		},
	})
	mustIngest(t, store, &IngestBatch{
		Namespace: "other",
		KnowledgeItems: []KnowledgeRecord{
			{KnowledgeItem: &memory.KnowledgeItem{Content: "foreign", Embedding: []float32{1, 0, 0}}},
		},
	})

	cands, err := store.NearestNeighbors(ctx, NeighborQuery{
		Namespace: "default", Scope: memory.ScopeKnowledge, Vector: []float32{1, 0, 0}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("NearestNeighbors failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 embedded candidates, got %d", len(cands))
	}
	if cands[0].Text != "near" || cands[1].Text != "far" {
		t.Errorf("expected ascending distance, got %q then %q", cands[0].Text, cands[1].Text)
	}
	if cands[0].Distance > cands[1].Distance {
		t.Error("distances should be ascending")
	}

	cands, err = store.NearestNeighbors(ctx, NeighborQuery{
		Namespace: "default", Scope: memory.ScopeEvents, Vector: []float32{1, 0, 0}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("NearestNeighbors(events) failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Snippet != "body" {
		t.Errorf("expected only the live event, got %v", cands)
	}

	cands, _ = store.NearestNeighbors(ctx, NeighborQuery{
		Namespace: "default", Scope: memory.ScopeEvents, Vector: []float32{1, 0, 0}, IncludeArchived: true, Limit: 10,
	})
	if len(cands) != 2 {
		t.Errorf("expected archived event with include_archived, got %d", len(cands))
	}

	// Stored vectors are 3-dimensional; a 4-dimensional query matches none.
	for _, scope := range []memory.Scope{memory.ScopeKnowledge, memory.ScopeEvents} {
		cands, err = store.NearestNeighbors(ctx, NeighborQuery{
			Namespace: "default", Scope: scope, Vector: []float32{1, 0, 0, 0}, IncludeArchived: true, Limit: 10,
		})
		if err != nil {
			t.Fatalf("NearestNeighbors(%s, dim 4) failed: %v", scope, err)
		}
		if len(cands) != 0 {
			t.Errorf("rows of another dimension must not be candidates in %s, got %v", scope, cands)
		}
	}
}

// TestEmbeddings tests backfill listing, writing and dimension reset.
func (s *StoreTestSuite) TestEmbeddings(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")

	mustIngest(t, store, &IngestBatch{
		Namespace: "default",
		Requirements: []RequirementRecord{
			{Requirement: &memory.Requirement{Title: "title", Body: "body", Priority: "medium", Status: "draft"}},
		},
		KnowledgeItems: []KnowledgeRecord{
			{KnowledgeItem: &memory.KnowledgeItem{Content: "stale", Embedding: []float32{1, 2}}},
			{KnowledgeItem: &memory.KnowledgeItem{Content: "fresh", Embedding: []float32{1, 2, 3}}},
		},
	})

	reset, err := store.ResetMismatchedEmbeddings(ctx, 3)
	if err != nil {
		t.Fatalf("ResetMismatchedEmbeddings failed: %v", err)
	}
	if reset[memory.ScopeKnowledge] != 1 {
		t.Errorf("expected 1 knowledge vector reset, got %v", reset)
	}

	targets, err := store.MissingEmbeddings(ctx, "default", memory.ScopeKnowledge, 10, 0)
	if err != nil {
		t.Fatalf("MissingEmbeddings failed: %v", err)
	}
	if len(targets) != 1 || targets[0].Text != "stale" {
		t.Fatalf("expected the reset item to need a vector, got %v", targets)
	}

	reqs, _ := store.MissingEmbeddings(ctx, "default", memory.ScopeRequirements, 10, 0)
	if len(reqs) != 1 || reqs[0].Text != "title\nbody" {
		t.Errorf("requirement text should join title and body, got %v", reqs)
	}

	if err := store.SetEmbeddings(ctx, memory.ScopeKnowledge, map[string][]float32{targets[0].ID: {3, 2, 1}}); err != nil {
		t.Fatalf("SetEmbeddings failed: %v", err)
	}
	targets, _ = store.MissingEmbeddings(ctx, "default", memory.ScopeKnowledge, 10, 0)
	if len(targets) != 0 {
		t.Errorf("expected no missing knowledge vectors, got %v", targets)
	}

	items, err := store.KnowledgeItems(ctx, "default", 10)
	if err != nil {
		t.Fatalf("KnowledgeItems failed: %v", err)
	}
	if len(items) != 2 || items[0].Content != "stale" || len(items[0].Embedding) != 3 {
		t.Errorf("expected oldest first with decoded vectors, got %v", items)
	}
}

// TestDeleteItems tests cross-table deletion scoped to a namespace.
func (s *StoreTestSuite) TestDeleteItems(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")
	mustNamespace(t, store, "other")

	k := &memory.KnowledgeItem{Content: "k"}
	ev := &memory.Event{Type: "note", Title: "e"}
	foreign := &memory.KnowledgeItem{Content: "f"}
	mustIngest(t, store, &IngestBatch{
		Namespace:      "default",
		KnowledgeItems: []KnowledgeRecord{{KnowledgeItem: k}},
		Events:         []EventRecord{{Event: ev}},
	})
	mustIngest(t, store, &IngestBatch{Namespace: "other", KnowledgeItems: []KnowledgeRecord{{KnowledgeItem: foreign}}})

	n, err := store.DeleteItems(ctx, "default", []string{k.ID, ev.ID, foreign.ID, "missing"})
	if err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	stats, _ := store.Stats(ctx)
	if stats.KnowledgeItems != 1 || stats.Events != 0 {
		t.Errorf("foreign namespace rows must survive, got %+v", stats)
	}

	n, err = store.DeleteKnowledgeItems(ctx, "other", []string{foreign.ID})
	if err != nil || n != 1 {
		t.Errorf("expected 1 knowledge item deleted, got %d, %v", n, err)
	}
}

// TestCompaction tests candidate grouping and atomic archive.
func (s *StoreTestSuite) TestCompaction(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []EventRecord
	for i := 0; i < 5; i++ {
		events = append(events, EventRecord{Event: &memory.Event{
			Type: "note", Title: fmt.Sprintf("event %d", i), SessionID: "s1", CreatedAt: base.Add(time.Duration(i) * time.Second),
		}})
	}
	events = append(events, EventRecord{Event: &memory.Event{Type: "note", Title: "lonely", SessionID: "s2"}})
	events = append(events, EventRecord{Event: &memory.Event{Type: "note", Title: "sessionless"}})
	mustIngest(t, store, &IngestBatch{Namespace: "default", Events: events})

	cands, err := store.CompactionCandidates(ctx, 5, 1_000_000)
	if err != nil {
		t.Fatalf("CompactionCandidates failed: %v", err)
	}
	if len(cands) != 1 || cands[0].SessionID != "s1" || cands[0].EventCount != 5 {
		t.Fatalf("expected s1 with 5 events, got %v", cands)
	}

	cands, _ = store.CompactionCandidates(ctx, 100, 6)
	if len(cands) != 2 {
		t.Errorf("char threshold should select both sessions, got %v", cands)
	}

	loaded, err := store.SessionEvents(ctx, SessionFilter{Namespace: "default", SessionID: "s1", Limit: 3})
	if err != nil {
		t.Fatalf("SessionEvents failed: %v", err)
	}
	if len(loaded) != 3 || loaded[0].Title != "event 0" {
		t.Fatalf("expected oldest three events, got %v", loaded)
	}

	ids := make([]string, len(loaded))
	for i, ev := range loaded {
		ids[i] = ev.ID
	}
	summary := &memory.KnowledgeItem{
		Namespace: "default",
		Content:   "summary",
		Source:    memory.SourceSessionCompaction,
		SourceRef: "s1",
		Tags:      []string{memory.TagSummary, memory.TagCompaction},
	}
	if err := store.ArchiveWithSummary(ctx, []*memory.KnowledgeItem{summary}, ids); err != nil {
		t.Fatalf("ArchiveWithSummary failed: %v", err)
	}

	remaining, _ := store.SessionEvents(ctx, SessionFilter{Namespace: "default", SessionID: "s1"})
	if len(remaining) != 2 {
		t.Errorf("expected 2 unarchived events left, got %d", len(remaining))
	}

	again := &memory.KnowledgeItem{Namespace: "default", Content: "dup"}
	if err := store.ArchiveWithSummary(ctx, []*memory.KnowledgeItem{again}, ids); !errors.Is(err, memory.ErrConflict) {
		t.Errorf("expected ErrConflict for already archived events, got %v", err)
	}
	stats, _ := store.Stats(ctx)
	if stats.KnowledgeItems != 1 || stats.ArchivedEvents != 3 {
		t.Errorf("conflicting archive must roll back, got %+v", stats)
	}
}

// TestConcurrentIngest tests concurrent writers against one store.
func (s *StoreTestSuite) TestConcurrentIngest(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()
	mustNamespace(t, store, "default")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.IngestBatch(ctx, &IngestBatch{
				Namespace:      "default",
				Entities:       []*memory.Entity{{Slug: "shared", Type: "project", Name: fmt.Sprintf("v%d", i)}},
				KnowledgeItems: []KnowledgeRecord{{KnowledgeItem: &memory.KnowledgeItem{Content: fmt.Sprintf("fact %d", i)}, ProjectSlug: "shared"}},
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent ingest failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entities != 1 || stats.KnowledgeItems != 10 {
		t.Errorf("expected 1 entity and 10 items, got %+v", stats)
	}
}
