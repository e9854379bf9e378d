// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/domain/record"
	"github.com/fieldbase/fieldbase/domain/schema"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores when a unique constraint is violated.
var ErrDuplicate = errors.New("already exists")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets (user passwords).
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// WorkspaceStore persists workspaces (tenants).
type WorkspaceStore interface {
	Create(ctx context.Context, ws schema.Workspace) error
	Get(ctx context.Context, id string) (schema.Workspace, error)
	GetBySlug(ctx context.Context, slug string) (schema.Workspace, error)
	Update(ctx context.Context, ws schema.Workspace) error
}

// CollectionStore persists collection definitions.
type CollectionStore interface {
	Create(ctx context.Context, col schema.Collection) error
	Get(ctx context.Context, id string) (schema.Collection, error)
	GetBySlug(ctx context.Context, workspaceID, slug string) (schema.Collection, error)
	List(ctx context.Context, workspaceID string) ([]schema.Collection, error)

	// Update replaces mutable attributes and bumps the version counter.
	Update(ctx context.Context, col schema.Collection) error
	Delete(ctx context.Context, id string) error

	// BumpVersion increments the version counter alone, recording that the
	// collection's field schema mutated.
	BumpVersion(ctx context.Context, id string) error
}

// FieldStore persists field definitions within collections.
type FieldStore interface {
	Create(ctx context.Context, f schema.Field) error
	Get(ctx context.Context, id string) (schema.Field, error)
	ListByCollection(ctx context.Context, collectionID string) ([]schema.Field, error)
	Update(ctx context.Context, f schema.Field) error
	Delete(ctx context.Context, id string) error
}

// RecordStore persists record payloads.
type RecordStore interface {
	Create(ctx context.Context, rec record.Record) error
	Get(ctx context.Context, workspaceID, id string) (record.Record, error)
	List(ctx context.Context, workspaceID, collectionID string, limit, offset int) ([]record.Record, error)
	// Update merges rec.Data into the stored payload: a nil value clears
	// that key, keys absent from rec.Data are kept as stored.
	Update(ctx context.Context, rec record.Record) error
	Delete(ctx context.Context, workspaceID, id string) error
}

// CompositionStore persists composition definitions.
type CompositionStore interface {
	Create(ctx context.Context, comp composition.Composition) error
	Get(ctx context.Context, id string) (composition.Composition, error)
	GetBySlug(ctx context.Context, workspaceID, slug string) (composition.Composition, error)
	List(ctx context.Context, workspaceID string) ([]composition.Composition, error)
	Update(ctx context.Context, comp composition.Composition) error
	Delete(ctx context.Context, id string) error
}

// User represents a workspace member account.
type User struct {
	ID           string
	WorkspaceID  string
	Email        string
	Name         string
	PasswordHash []byte // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists workspace member accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}

// -----------------------------------------------------------------------------
// Query Engine Ports
// -----------------------------------------------------------------------------

// SchemaRegistry is the read model of collection schemas consumed by the
// record validator and the composition compiler. Implementations may cache;
// Invalidate drops any cached snapshot after a schema mutation.
type SchemaRegistry interface {
	composition.SchemaResolver

	// FieldsFor returns the field definitions of one collection.
	FieldsFor(ctx context.Context, workspaceID, collectionID string) ([]schema.Field, error)

	// Invalidate drops the cached snapshot for one collection, or for the
	// whole workspace when collectionID is empty.
	Invalidate(workspaceID, collectionID string)
}

// ExecutionResult carries the rows produced by one plan execution.
type ExecutionResult struct {
	Rows  []map[string]any
	Count int
}

// QueryExecutor runs a compiled plan against the record store. Every named
// hole in the plan must be bound from params using parameterized statements
// only; a missing or malformed param surfaces as *composition.ParamError.
type QueryExecutor interface {
	Execute(ctx context.Context, plan *composition.QueryPlan, params map[string]any) (ExecutionResult, error)
}
