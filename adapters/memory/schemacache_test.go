package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeCollectionStore counts reads so tests can tell cache hits from loads.
type fakeCollectionStore struct {
	cols  map[string]schema.Collection // by ID
	reads int
}

func (s *fakeCollectionStore) Get(_ context.Context, id string) (schema.Collection, error) {
	s.reads++
	col, ok := s.cols[id]
	if !ok {
		return schema.Collection{}, ports.ErrNotFound
	}
	return col, nil
}

func (s *fakeCollectionStore) GetBySlug(_ context.Context, workspaceID, slug string) (schema.Collection, error) {
	s.reads++
	for _, col := range s.cols {
		if col.WorkspaceID == workspaceID && col.Slug == slug {
			return col, nil
		}
	}
	return schema.Collection{}, ports.ErrNotFound
}

func (s *fakeCollectionStore) Create(context.Context, schema.Collection) error { return nil }
func (s *fakeCollectionStore) List(context.Context, string) ([]schema.Collection, error) {
	return nil, nil
}
func (s *fakeCollectionStore) Update(context.Context, schema.Collection) error { return nil }
func (s *fakeCollectionStore) Delete(context.Context, string) error            { return nil }
func (s *fakeCollectionStore) BumpVersion(context.Context, string) error       { return nil }

type fakeFieldStore struct {
	fields map[string][]schema.Field // by collection ID
}

func (s *fakeFieldStore) ListByCollection(_ context.Context, collectionID string) ([]schema.Field, error) {
	return s.fields[collectionID], nil
}

func (s *fakeFieldStore) Create(context.Context, schema.Field) error { return nil }
func (s *fakeFieldStore) Get(context.Context, string) (schema.Field, error) {
	return schema.Field{}, ports.ErrNotFound
}
func (s *fakeFieldStore) Update(context.Context, schema.Field) error { return nil }
func (s *fakeFieldStore) Delete(context.Context, string) error       { return nil }

func cacheFixture(ttl time.Duration) (*SchemaCache, *fakeCollectionStore, *fakeClock) {
	cols := &fakeCollectionStore{cols: map[string]schema.Collection{
		"c1": {ID: "c1", WorkspaceID: "ws1", Slug: "tasks", Name: "Tasks"},
		"c2": {ID: "c2", WorkspaceID: "ws1", Slug: "projects", Name: "Projects"},
		"c9": {ID: "c9", WorkspaceID: "ws2", Slug: "tasks", Name: "Tasks"},
	}}
	fields := &fakeFieldStore{fields: map[string][]schema.Field{
		"c1": {{Slug: "title", Type: schema.FieldTypeText}},
		"c2": {{Slug: "code", Type: schema.FieldTypeText}},
	}}
	clk := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewSchemaCache(cols, fields, clk, ttl), cols, clk
}

func TestSchemaCache_HitAfterLoad(t *testing.T) {
	cache, cols, _ := cacheFixture(time.Minute)
	ctx := context.Background()

	var hits, misses int
	cache.Observe(func() { hits++ }, func() { misses++ })

	fs, err := cache.CollectionBySlug(ctx, "ws1", "tasks")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fs == nil || fs.Collection.ID != "c1" {
		t.Fatalf("fs = %+v", fs)
	}
	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("cached read: %v", err)
	}

	if cols.reads != 1 {
		t.Errorf("store reads = %d, want 1", cols.reads)
	}
	if hits != 1 || misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1/1", hits, misses)
	}

	// One load serves both key shapes.
	if _, err := cache.FieldsFor(ctx, "ws1", "c1"); err != nil {
		t.Fatalf("fields for: %v", err)
	}
	if cols.reads != 1 {
		t.Errorf("FieldsFor reloaded: reads = %d", cols.reads)
	}
}

func TestSchemaCache_TTLExpiry(t *testing.T) {
	cache, cols, clk := cacheFixture(time.Minute)
	ctx := context.Background()

	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("load: %v", err)
	}
	clk.advance(59 * time.Second)
	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("read within ttl: %v", err)
	}
	if cols.reads != 1 {
		t.Fatalf("reads = %d before expiry, want 1", cols.reads)
	}

	clk.advance(2 * time.Second)
	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("read after ttl: %v", err)
	}
	if cols.reads != 2 {
		t.Errorf("reads = %d after expiry, want 2", cols.reads)
	}
}

func TestSchemaCache_ZeroTTLNeverExpires(t *testing.T) {
	cache, cols, clk := cacheFixture(0)
	ctx := context.Background()

	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("load: %v", err)
	}
	clk.advance(24 * time.Hour)
	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("read: %v", err)
	}
	if cols.reads != 1 {
		t.Errorf("reads = %d, want 1 with expiry disabled", cols.reads)
	}
}

func TestSchemaCache_InvalidateCollection(t *testing.T) {
	cache, cols, _ := cacheFixture(time.Minute)
	ctx := context.Background()

	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("load: %v", err)
	}
	cache.Invalidate("ws1", "c1")

	// Both the slug and the ID entry are gone.
	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("reload by slug: %v", err)
	}
	if cols.reads != 2 {
		t.Errorf("reads = %d after invalidate, want 2", cols.reads)
	}
}

func TestSchemaCache_InvalidateWorkspace(t *testing.T) {
	cache, cols, _ := cacheFixture(time.Minute)
	ctx := context.Background()

	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if _, err := cache.CollectionBySlug(ctx, "ws1", "projects"); err != nil {
		t.Fatalf("load projects: %v", err)
	}
	if _, err := cache.CollectionBySlug(ctx, "ws2", "tasks"); err != nil {
		t.Fatalf("load ws2 tasks: %v", err)
	}
	cols.reads = 0

	cache.Invalidate("ws1", "")

	if _, err := cache.CollectionBySlug(ctx, "ws1", "tasks"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.CollectionBySlug(ctx, "ws1", "projects"); err != nil {
		t.Fatal(err)
	}
	if cols.reads != 2 {
		t.Errorf("ws1 reads = %d after workspace invalidation, want 2", cols.reads)
	}

	// The other workspace's entries survive.
	if _, err := cache.CollectionBySlug(ctx, "ws2", "tasks"); err != nil {
		t.Fatal(err)
	}
	if cols.reads != 2 {
		t.Errorf("ws2 entry evicted: reads = %d", cols.reads)
	}
}

func TestSchemaCache_MissingCollection(t *testing.T) {
	cache, _, _ := cacheFixture(time.Minute)
	ctx := context.Background()

	fs, err := cache.CollectionBySlug(ctx, "ws1", "ghosts")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if fs != nil {
		t.Errorf("fs = %+v, want nil for a missing collection", fs)
	}
}

func TestSchemaCache_FieldsForWrongWorkspace(t *testing.T) {
	cache, _, _ := cacheFixture(time.Minute)

	_, err := cache.FieldsFor(context.Background(), "ws1", "c9")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for a foreign collection", err)
	}
}
