package app

import (
	"context"
	"fmt"

	"github.com/fieldbase/fieldbase/domain/record"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// ValidationError wraps the field errors produced by record validation.
// It is a caller fault, distinct from infrastructure failures.
type ValidationError struct {
	Errors []record.FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("record validation failed with %d error(s)", len(e.Errors))
}

// RecordService validates record payloads against the live schema and
// persists the normalized result.
type RecordService struct {
	records  ports.RecordStore
	registry ports.SchemaRegistry
	idgen    ports.IDGenerator
	clock    ports.Clock
	logger   zerolog.Logger
}

// NewRecordService creates the record service.
func NewRecordService(records ports.RecordStore, registry ports.SchemaRegistry, idgen ports.IDGenerator, clock ports.Clock, logger zerolog.Logger) *RecordService {
	return &RecordService{
		records:  records,
		registry: registry,
		idgen:    idgen,
		clock:    clock,
		logger:   logger.With().Str("service", "records").Logger(),
	}
}

// Create validates data against the collection's schema and stores the
// normalized payload. Returns *ValidationError on invalid input.
func (s *RecordService) Create(ctx context.Context, workspaceID, collectionID string, data map[string]any) (record.Record, error) {
	fields, err := s.registry.FieldsFor(ctx, workspaceID, collectionID)
	if err != nil {
		return record.Record{}, err
	}

	result := record.Validate(data, fields, false)
	if !result.Valid {
		return record.Record{}, &ValidationError{Errors: result.Errors}
	}

	now := s.clock.Now().UTC()
	rec := record.Record{
		ID:           s.idgen.New(),
		WorkspaceID:  workspaceID,
		CollectionID: collectionID,
		Data:         result.Normalized,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return record.Record{}, fmt.Errorf("store record: %w", err)
	}
	return rec, nil
}

// Update validates a partial payload and merges it over the stored record.
func (s *RecordService) Update(ctx context.Context, workspaceID, id string, data map[string]any) (record.Record, error) {
	current, err := s.records.Get(ctx, workspaceID, id)
	if err != nil {
		return record.Record{}, err
	}

	fields, err := s.registry.FieldsFor(ctx, workspaceID, current.CollectionID)
	if err != nil {
		return record.Record{}, fmt.Errorf("resolve collection schema: %w", err)
	}

	result := record.Validate(data, fields, true)
	if !result.Valid {
		return record.Record{}, &ValidationError{Errors: result.Errors}
	}

	// Keys the caller set to null come back through Normalized as nil and
	// clear the stored value on merge.
	payload := result.Normalized
	current.Data = payload
	if err := s.records.Update(ctx, current); err != nil {
		return record.Record{}, err
	}
	return s.records.Get(ctx, workspaceID, id)
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, workspaceID, id string) (record.Record, error) {
	return s.records.Get(ctx, workspaceID, id)
}

// List returns a page of a collection's records.
func (s *RecordService) List(ctx context.Context, workspaceID, collectionID string, limit, offset int) ([]record.Record, error) {
	if _, err := s.registry.FieldsFor(ctx, workspaceID, collectionID); err != nil {
		return nil, err
	}
	return s.records.List(ctx, workspaceID, collectionID, limit, offset)
}

// Delete removes a record.
func (s *RecordService) Delete(ctx context.Context, workspaceID, id string) error {
	return s.records.Delete(ctx, workspaceID, id)
}
