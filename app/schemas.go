package app

import (
	"context"
	"fmt"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// SchemaService manages collections and their fields. Every mutation bumps
// the collection version and invalidates the schema registry cache so
// subsequent compiles and validations see the fresh schema.
type SchemaService struct {
	collections ports.CollectionStore
	fields      ports.FieldStore
	registry    ports.SchemaRegistry
	idgen       ports.IDGenerator
	logger      zerolog.Logger
}

// NewSchemaService creates the schema management service.
func NewSchemaService(collections ports.CollectionStore, fields ports.FieldStore, registry ports.SchemaRegistry, idgen ports.IDGenerator, logger zerolog.Logger) *SchemaService {
	return &SchemaService{
		collections: collections,
		fields:      fields,
		registry:    registry,
		idgen:       idgen,
		logger:      logger.With().Str("service", "schema").Logger(),
	}
}

// CreateCollection creates an empty collection.
func (s *SchemaService) CreateCollection(ctx context.Context, workspaceID, slug, name string) (schema.Collection, error) {
	col := schema.Collection{
		ID:          s.idgen.New(),
		WorkspaceID: workspaceID,
		Slug:        slug,
		Name:        name,
		Version:     1,
	}
	if err := s.collections.Create(ctx, col); err != nil {
		return schema.Collection{}, err
	}
	return s.collections.Get(ctx, col.ID)
}

// UpdateCollection renames or re-slugs a collection.
func (s *SchemaService) UpdateCollection(ctx context.Context, col schema.Collection) (schema.Collection, error) {
	current, err := s.collections.Get(ctx, col.ID)
	if err != nil {
		return schema.Collection{}, err
	}
	if current.WorkspaceID != col.WorkspaceID {
		return schema.Collection{}, ports.ErrNotFound
	}

	if err := s.collections.Update(ctx, col); err != nil {
		return schema.Collection{}, err
	}
	s.registry.Invalidate(col.WorkspaceID, col.ID)
	return s.collections.Get(ctx, col.ID)
}

// DeleteCollection removes a collection with its fields and records.
func (s *SchemaService) DeleteCollection(ctx context.Context, workspaceID, id string) error {
	current, err := s.collections.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.WorkspaceID != workspaceID {
		return ports.ErrNotFound
	}

	if err := s.collections.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.Invalidate(workspaceID, id)
	return nil
}

// ListCollections returns a workspace's collections.
func (s *SchemaService) ListCollections(ctx context.Context, workspaceID string) ([]schema.Collection, error) {
	return s.collections.List(ctx, workspaceID)
}

// GetCollection returns one collection with its fields.
func (s *SchemaService) GetCollection(ctx context.Context, workspaceID, id string) (schema.Collection, []schema.Field, error) {
	col, err := s.collections.Get(ctx, id)
	if err != nil {
		return schema.Collection{}, nil, err
	}
	if col.WorkspaceID != workspaceID {
		return schema.Collection{}, nil, ports.ErrNotFound
	}

	fields, err := s.fields.ListByCollection(ctx, id)
	if err != nil {
		return schema.Collection{}, nil, err
	}
	return col, fields, nil
}

// CreateField adds a field to a collection.
func (s *SchemaService) CreateField(ctx context.Context, workspaceID string, f schema.Field) (schema.Field, error) {
	col, err := s.collections.Get(ctx, f.CollectionID)
	if err != nil {
		return schema.Field{}, err
	}
	if col.WorkspaceID != workspaceID {
		return schema.Field{}, ports.ErrNotFound
	}

	f.ID = s.idgen.New()
	if err := s.fields.Create(ctx, f); err != nil {
		return schema.Field{}, err
	}
	return f, s.schemaMutated(ctx, workspaceID, f.CollectionID)
}

// UpdateField modifies a field definition.
func (s *SchemaService) UpdateField(ctx context.Context, workspaceID string, f schema.Field) (schema.Field, error) {
	current, err := s.fields.Get(ctx, f.ID)
	if err != nil {
		return schema.Field{}, err
	}
	col, err := s.collections.Get(ctx, current.CollectionID)
	if err != nil {
		return schema.Field{}, err
	}
	if col.WorkspaceID != workspaceID {
		return schema.Field{}, ports.ErrNotFound
	}

	f.CollectionID = current.CollectionID
	if err := s.fields.Update(ctx, f); err != nil {
		return schema.Field{}, err
	}
	return f, s.schemaMutated(ctx, workspaceID, f.CollectionID)
}

// DeleteField removes a field definition. Stored record values under the
// field's slug become unknown keys and surface on the next validation.
func (s *SchemaService) DeleteField(ctx context.Context, workspaceID, id string) error {
	current, err := s.fields.Get(ctx, id)
	if err != nil {
		return err
	}
	col, err := s.collections.Get(ctx, current.CollectionID)
	if err != nil {
		return err
	}
	if col.WorkspaceID != workspaceID {
		return ports.ErrNotFound
	}

	if err := s.fields.Delete(ctx, id); err != nil {
		return err
	}
	return s.schemaMutated(ctx, workspaceID, current.CollectionID)
}

// schemaMutated bumps the collection version and drops cached snapshots.
func (s *SchemaService) schemaMutated(ctx context.Context, workspaceID, collectionID string) error {
	if err := s.collections.BumpVersion(ctx, collectionID); err != nil {
		return fmt.Errorf("bump collection version: %w", err)
	}
	s.registry.Invalidate(workspaceID, collectionID)
	return nil
}
