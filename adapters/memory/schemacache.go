// Package memory provides in-memory adapters: the schema registry cache and
// simple fixtures for tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
)

// SchemaCache implements ports.SchemaRegistry as a read-mostly TTL cache
// over the collection and field stores. Snapshots are keyed per workspace
// and collection; schema mutations invalidate explicitly, the TTL catches
// everything else.
type SchemaCache struct {
	collections ports.CollectionStore
	fields      ports.FieldStore
	clock       ports.Clock
	ttl         time.Duration

	mu     sync.RWMutex
	bySlug map[string]cacheEntry // workspaceID + "\x00" + slug
	byID   map[string]cacheEntry // workspaceID + "\x00" + collectionID

	onHit  func()
	onMiss func()
}

// Observe registers hit/miss callbacks (metrics counters). Either may be nil.
func (c *SchemaCache) Observe(onHit, onMiss func()) {
	c.onHit = onHit
	c.onMiss = onMiss
}

type cacheEntry struct {
	fields  *schema.FieldSet
	expires time.Time
}

// NewSchemaCache creates a schema cache. A zero TTL disables expiry-based
// eviction, leaving only explicit invalidation.
func NewSchemaCache(collections ports.CollectionStore, fields ports.FieldStore, clock ports.Clock, ttl time.Duration) *SchemaCache {
	return &SchemaCache{
		collections: collections,
		fields:      fields,
		clock:       clock,
		ttl:         ttl,
		bySlug:      make(map[string]cacheEntry),
		byID:        make(map[string]cacheEntry),
	}
}

func key(workspaceID, name string) string {
	return workspaceID + "\x00" + name
}

func (c *SchemaCache) lookup(m map[string]cacheEntry, k string) (*schema.FieldSet, bool) {
	c.mu.RLock()
	entry, ok := m[k]
	c.mu.RUnlock()

	if ok && (c.ttl <= 0 || !c.clock.Now().After(entry.expires)) {
		if c.onHit != nil {
			c.onHit()
		}
		return entry.fields, true
	}
	if c.onMiss != nil {
		c.onMiss()
	}
	return nil, false
}

func (c *SchemaCache) store(workspaceID string, fs *schema.FieldSet) {
	entry := cacheEntry{fields: fs, expires: c.clock.Now().Add(c.ttl)}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySlug[key(workspaceID, fs.Collection.Slug)] = entry
	c.byID[key(workspaceID, fs.Collection.ID)] = entry
}

// CollectionBySlug resolves a collection's schema snapshot by slug.
// A (nil, nil) return means the collection does not exist in the workspace.
func (c *SchemaCache) CollectionBySlug(ctx context.Context, workspaceID, slug string) (*schema.FieldSet, error) {
	if fs, ok := c.lookup(c.bySlug, key(workspaceID, slug)); ok {
		return fs, nil
	}

	col, err := c.collections.GetBySlug(ctx, workspaceID, slug)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	fields, err := c.fields.ListByCollection(ctx, col.ID)
	if err != nil {
		return nil, err
	}

	fs := schema.NewFieldSet(col, fields)
	c.store(workspaceID, fs)
	return fs, nil
}

// FieldsFor returns one collection's field definitions.
func (c *SchemaCache) FieldsFor(ctx context.Context, workspaceID, collectionID string) ([]schema.Field, error) {
	if fs, ok := c.lookup(c.byID, key(workspaceID, collectionID)); ok {
		return fs.Fields, nil
	}

	col, err := c.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if col.WorkspaceID != workspaceID {
		return nil, ports.ErrNotFound
	}

	fields, err := c.fields.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	c.store(workspaceID, schema.NewFieldSet(col, fields))
	return fields, nil
}

// Invalidate drops cached snapshots for one collection, or for the whole
// workspace when collectionID is empty.
func (c *SchemaCache) Invalidate(workspaceID, collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if collectionID == "" {
		prefix := workspaceID + "\x00"
		for k := range c.bySlug {
			if strings.HasPrefix(k, prefix) {
				delete(c.bySlug, k)
			}
		}
		for k := range c.byID {
			if strings.HasPrefix(k, prefix) {
				delete(c.byID, k)
			}
		}
		return
	}

	entry, ok := c.byID[key(workspaceID, collectionID)]
	if ok {
		delete(c.bySlug, key(workspaceID, entry.fields.Collection.Slug))
	}
	delete(c.byID, key(workspaceID, collectionID))
}

var _ ports.SchemaRegistry = (*SchemaCache)(nil)

// StaticRegistry is a fixed, pre-populated registry for tests.
type StaticRegistry struct {
	mu   sync.RWMutex
	sets map[string]*schema.FieldSet // workspaceID + "\x00" + slug
}

// NewStaticRegistry creates an empty static registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{sets: make(map[string]*schema.FieldSet)}
}

// Add registers a collection snapshot.
func (r *StaticRegistry) Add(workspaceID string, fs *schema.FieldSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[key(workspaceID, fs.Collection.Slug)] = fs
}

// CollectionBySlug resolves against the registered snapshots.
func (r *StaticRegistry) CollectionBySlug(_ context.Context, workspaceID, slug string) (*schema.FieldSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sets[key(workspaceID, slug)], nil
}

// FieldsFor resolves by collection ID.
func (r *StaticRegistry) FieldsFor(_ context.Context, workspaceID, collectionID string) ([]schema.Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fs := range r.sets {
		if fs.Collection.WorkspaceID == workspaceID && fs.Collection.ID == collectionID {
			return fs.Fields, nil
		}
	}
	return nil, ports.ErrNotFound
}

// Invalidate is a no-op for the static registry.
func (r *StaticRegistry) Invalidate(string, string) {}

var _ ports.SchemaRegistry = (*StaticRegistry)(nil)
