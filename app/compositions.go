package app

import (
	"context"
	"fmt"

	"github.com/fieldbase/fieldbase/domain/access"
	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// CompositionService manages saved composition definitions. Configs are
// stored as written, including ones that do not currently compile; compile
// errors surface on preview and execution, so a builder can save a draft
// against a schema that is still being shaped.
type CompositionService struct {
	compositions ports.CompositionStore
	idgen        ports.IDGenerator
	clock        ports.Clock
	logger       zerolog.Logger
}

// NewCompositionService creates the composition management service.
func NewCompositionService(compositions ports.CompositionStore, idgen ports.IDGenerator, clock ports.Clock, logger zerolog.Logger) *CompositionService {
	return &CompositionService{
		compositions: compositions,
		idgen:        idgen,
		clock:        clock,
		logger:       logger.With().Str("service", "compositions").Logger(),
	}
}

// Create stores a new composition.
func (s *CompositionService) Create(ctx context.Context, comp composition.Composition) (composition.Composition, error) {
	if comp.AccessLevel == "" {
		comp.AccessLevel = string(access.LevelPrivate)
	}
	if !access.Level(comp.AccessLevel).Valid() {
		return composition.Composition{}, fmt.Errorf("invalid access level %q", comp.AccessLevel)
	}

	now := s.clock.Now().UTC()
	comp.ID = s.idgen.New()
	comp.Active = true
	comp.CreatedAt = now
	comp.UpdatedAt = now

	if err := s.compositions.Create(ctx, comp); err != nil {
		return composition.Composition{}, err
	}
	return comp, nil
}

// Update replaces a composition's mutable attributes.
func (s *CompositionService) Update(ctx context.Context, comp composition.Composition) (composition.Composition, error) {
	current, err := s.compositions.Get(ctx, comp.ID)
	if err != nil {
		return composition.Composition{}, err
	}
	if current.WorkspaceID != comp.WorkspaceID {
		return composition.Composition{}, ports.ErrNotFound
	}
	if comp.AccessLevel != "" && !access.Level(comp.AccessLevel).Valid() {
		return composition.Composition{}, fmt.Errorf("invalid access level %q", comp.AccessLevel)
	}

	comp.UpdatedAt = s.clock.Now().UTC()
	if err := s.compositions.Update(ctx, comp); err != nil {
		return composition.Composition{}, err
	}
	return s.compositions.Get(ctx, comp.ID)
}

// Get returns one composition.
func (s *CompositionService) Get(ctx context.Context, workspaceID, id string) (composition.Composition, error) {
	comp, err := s.compositions.Get(ctx, id)
	if err != nil {
		return composition.Composition{}, err
	}
	if comp.WorkspaceID != workspaceID {
		return composition.Composition{}, ports.ErrNotFound
	}
	return comp, nil
}

// List returns a workspace's compositions.
func (s *CompositionService) List(ctx context.Context, workspaceID string) ([]composition.Composition, error) {
	return s.compositions.List(ctx, workspaceID)
}

// Delete removes a composition.
func (s *CompositionService) Delete(ctx context.Context, workspaceID, id string) error {
	comp, err := s.compositions.Get(ctx, id)
	if err != nil {
		return err
	}
	if comp.WorkspaceID != workspaceID {
		return ports.ErrNotFound
	}
	return s.compositions.Delete(ctx, id)
}
